package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS transport.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns local development settings.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "midnight.changes",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// ConnectNATS dials NATS with logging handlers installed.
func ConnectNATS(cfg NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("midnight-notify"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

func subject(prefix string, table Table) string {
	return prefix + "." + string(table)
}

// NATSNotifier subscribes to change signals published on NATS core
// subjects.
type NATSNotifier struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSNotifier wraps an open connection.
func NewNATSNotifier(nc *nats.Conn, prefix string) *NATSNotifier {
	return &NATSNotifier{nc: nc, prefix: prefix}
}

func (n *NATSNotifier) Subscribe(_ context.Context, table Table, h Handler) (Subscription, error) {
	subj := subject(n.prefix, table)
	sub, err := n.nc.Subscribe(subj, func(*nats.Msg) { h(table) })
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subj, err)
	}
	log.Debug().Str("subject", subj).Msg("subscribed to change signals")
	return sub, nil
}

// NATSPublisher publishes change signals on NATS core subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher wraps an open connection.
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

func (p *NATSPublisher) Publish(_ context.Context, table Table) error {
	subj := subject(p.prefix, table)
	if err := p.nc.Publish(subj, []byte(table)); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	return nil
}
