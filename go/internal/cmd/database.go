package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/config"
	"github.com/roscoeevans/Skulking/go/internal/midnight/localstore"
	"github.com/roscoeevans/Skulking/go/internal/midnight/pgprobe"
	"github.com/roscoeevans/Skulking/go/internal/midnight/session"
)

// Databases holds the device-local stores and the optional Postgres pool.
type Databases struct {
	Durable *localstore.SQLiteStore
	Session *localstore.MemoryStore
	Pool    *pgxpool.Pool
}

func (d *Databases) Stores() session.Stores {
	return session.Stores{Durable: d.Durable, Session: d.Session}
}

func (d *Databases) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if err := d.Durable.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close local store")
	}
}

func setupDatabases(ctx context.Context, cfg *config.Config) (*Databases, error) {
	durable, err := localstore.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	dbs := &Databases{Durable: durable, Session: localstore.NewMemoryStore()}

	// The pool is only needed for a direct version probe.
	if cfg.Sync.ProbeTable == "" {
		return dbs, nil
	}
	pool, err := pgprobe.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		dbs.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	dbs.Pool = pool

	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Database).
		Str("table", cfg.Sync.ProbeTable).
		Msg("connected to database for version probe")
	return dbs, nil
}
