package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/config"
	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/notify"
	"github.com/roscoeevans/Skulking/go/internal/midnight/pgprobe"
	"github.com/roscoeevans/Skulking/go/internal/midnight/statesync"
)

type Services struct {
	Engine   *engine.Client
	Notifier notify.Notifier
	Sync     *statesync.Client
	Metrics  *statesync.CountingMetrics

	// background holds the transport loops to run for the process lifetime.
	background []func(ctx context.Context)
	nc         *nats.Conn
}

// Start launches the transport loops.
func (s *Services) Start(ctx context.Context) {
	for _, run := range s.background {
		go run(ctx)
	}
}

func (s *Services) Close() {
	s.Sync.Close()
	if s.nc != nil {
		s.nc.Close()
	}
}

func setupServices(cfg *config.Config, dbs *Databases, clock clockwork.Clock) (*Services, error) {
	// Wire up dependency injection chain
	// Transport → Engine client → Sync client
	svc := &Services{
		Engine:  engine.NewClient(http.DefaultClient, cfg.Engine.URL, cfg.Engine.Timeout),
		Metrics: &statesync.CountingMetrics{},
	}

	switch cfg.Notify.Transport {
	case config.TransportWebSocket:
		n := notify.NewWebSocketNotifier(cfg.Notify.WebSocketURL, cfg.Notify.ReconnectWait)
		svc.Notifier = n
		svc.background = append(svc.background, n.Start)
	case config.TransportNATS:
		natsCfg := notify.DefaultNATSConfig()
		natsCfg.URL = cfg.Notify.NATSURL
		natsCfg.SubjectPrefix = cfg.Notify.SubjectPrefix
		natsCfg.ReconnectWait = cfg.Notify.ReconnectWait
		nc, err := notify.ConnectNATS(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		svc.nc = nc
		svc.Notifier = notify.NewNATSNotifier(nc, natsCfg.SubjectPrefix)
	case config.TransportPostgres:
		pgCfg := notify.DefaultPostgresConfig()
		pgCfg.DatabaseURL = cfg.Database.DSN()
		n := notify.NewPostgresNotifier(pgCfg)
		svc.Notifier = n
		svc.background = append(svc.background, func(ctx context.Context) {
			if err := n.Start(ctx); err != nil {
				log.Error().Err(err).Msg("postgres notifier stopped")
			}
		})
	}

	opts := []statesync.Option{statesync.WithMetrics(svc.Metrics)}
	if dbs.Pool != nil {
		opts = append(opts, statesync.WithProbe(pgprobe.NewProbe(dbs.Pool, cfg.Sync.ProbeTable, cfg.Sync.ProbeRowID)))
	}
	svc.Sync = statesync.NewClient(svc.Engine, svc.Notifier, clock, syncConfig(cfg), opts...)

	log.Info().
		Str("engine_url", cfg.Engine.URL).
		Str("transport", cfg.Notify.Transport).
		Bool("version_probe", dbs.Pool != nil).
		Msg("services configured")
	return svc, nil
}
