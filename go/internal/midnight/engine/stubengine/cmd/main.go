package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/roscoeevans/Skulking/go/internal/config"
	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/engine/stubengine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/notify"
	"github.com/roscoeevans/Skulking/go/internal/midnight/pgprobe"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	seed := flag.Uint64("seed", 0, "deal seed, 0 for random")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway := notify.NewGateway(notify.DefaultGatewayConfig())
	go gateway.Start(ctx)

	publishers := notify.Fanout{gateway}
	switch cfg.Notify.Transport {
	case config.TransportNATS:
		natsCfg := notify.DefaultNATSConfig()
		natsCfg.URL = cfg.Notify.NATSURL
		natsCfg.SubjectPrefix = cfg.Notify.SubjectPrefix
		nc, err := notify.ConnectNATS(natsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Close()
		publishers = append(publishers, notify.NewNATSPublisher(nc, natsCfg.SubjectPrefix))
	case config.TransportPostgres:
		pool, err := pgprobe.Connect(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		publishers = append(publishers, notify.NewPostgresPublisher(pool))
	}

	eng := stubengine.New(clockwork.NewRealClock(), publishers, *seed)

	mux := http.NewServeMux()
	path, handler := engine.NewHandler(eng)
	mux.Handle(path, handler)
	mux.Handle("/ws/changes", gateway)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		version, _ := eng.StateVersion(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service":     "midnight-stub-engine",
			"version":     version,
			"connections": gateway.Connections(),
			"transport":   cfg.Notify.Transport,
		})
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("transport", cfg.Notify.Transport).
			Msg("stub engine listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down stub engine")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("stub engine stopped")
}
