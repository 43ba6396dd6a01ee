package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type PostgresConfig struct {
	DatabaseURL          string        // Postgres DSN for LISTEN/NOTIFY
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MinReconnectInterval: 10 * time.Second,
		MaxReconnectInterval: time.Minute,
		PingInterval:         90 * time.Second,
	}
}

// PostgresNotifier listens on one channel per table. Triggers on the engine
// tables NOTIFY on a channel named after the table.
type PostgresNotifier struct {
	listener *pq.Listener
	reg      *registry
	cfg      PostgresConfig
}

func NewPostgresNotifier(cfg PostgresConfig) *PostgresNotifier {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnectInterval,
		cfg.MaxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	return &PostgresNotifier{listener: l, reg: newRegistry(), cfg: cfg}
}

func (n *PostgresNotifier) Subscribe(_ context.Context, table Table, h Handler) (Subscription, error) {
	id, first := n.reg.add(table, h)
	if first {
		if err := n.listener.Listen(string(table)); err != nil && !errors.Is(err, pq.ErrChannelAlreadyOpen) {
			n.reg.remove(table, id)
			return nil, fmt.Errorf("failed to listen to channel %s: %w", table, err)
		}
		log.Info().Str("channel", string(table)).Msg("listening for notifications")
	}
	return &handle{table: table, id: id, drop: n.drop}, nil
}

func (n *PostgresNotifier) drop(table Table, id uint64) error {
	if !n.reg.remove(table, id) {
		return nil
	}
	if err := n.listener.Unlisten(string(table)); err != nil && !errors.Is(err, pq.ErrChannelNotOpen) {
		return fmt.Errorf("failed to unlisten channel %s: %w", table, err)
	}
	return nil
}

// Start dispatches notifications until ctx is cancelled, then closes the
// listener.
func (n *PostgresNotifier) Start(ctx context.Context) error {
	log.Info().Dur("ping_interval", n.cfg.PingInterval).Msg("postgres notifier started")

	pingTicker := time.NewTicker(n.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("postgres notifier shutting down")
			return n.listener.Close()
		case note := <-n.listener.Notify:
			if note == nil {
				// reconnected; anything could have changed while we were away
				n.reg.dispatchAll()
				continue
			}
			n.reg.dispatch(Table(note.Channel))
		case <-pingTicker.C:
			if err := n.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// PostgresPublisher issues pg_notify on the table's channel.
type PostgresPublisher struct {
	pool *pgxpool.Pool
}

func NewPostgresPublisher(pool *pgxpool.Pool) *PostgresPublisher {
	return &PostgresPublisher{pool: pool}
}

func (p *PostgresPublisher) Publish(ctx context.Context, table Table) error {
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, '')", string(table)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", table, err)
	}
	return nil
}
