// Package pgprobe reads engine bookkeeping straight from Postgres.
package pgprobe

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
)

// Probe reads the state version column without fetching the rest of
// the record. It serves the resume path when the engine's tables are
// reachable directly.
type Probe struct {
	pool  *pgxpool.Pool
	table string
	id    int64
}

var _ engine.VersionReader = (*Probe)(nil)

// NewProbe reads state_version from the row with the given id.
func NewProbe(pool *pgxpool.Pool, table string, id int64) *Probe {
	return &Probe{pool: pool, table: table, id: id}
}

// Connect opens a pool and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (p *Probe) StateVersion(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT state_version FROM %s WHERE id = $1", pgx.Identifier{p.table}.Sanitize())
	var v int64
	err := p.pool.QueryRow(ctx, query, p.id).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &engine.ValidationError{Op: "state-version", Reason: "no game state row"}
	}
	if err != nil {
		return 0, &engine.NetworkError{Op: "state-version", Err: err}
	}
	return v, nil
}
