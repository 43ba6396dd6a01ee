// Command nightbot is a headless participant. It joins a game on the
// configured engine and plays it through a session the same way a person
// at the screen would.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/config"
	"github.com/roscoeevans/Skulking/go/internal/midnight/session"
)

func main() {
	flags := parseFlags()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("nightbot failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, flags Flags) error {
	clock := clockwork.NewRealClock()

	dbs, err := setupDatabases(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbs.Close()

	services, err := setupServices(cfg, dbs, clock)
	if err != nil {
		return err
	}
	defer services.Close()
	services.Start(ctx)

	name := flags.Name
	if name == "" {
		name = fmt.Sprintf("bot-%s", uuid.NewString()[:6])
	}
	self, err := services.Engine.Join(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}
	log.Info().Str("name", self.Name).Str("participant_id", self.ID.String()).Bool("admin", self.IsAdmin).Msg("joined game")

	sess, err := session.Open(ctx, services.Sync, clock, self, dbs.Stores(), sessionConfig(cfg, flags.Seed))
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close(context.Background())

	bot := newBot(sess, clock, flags)

	if flags.StatusAddr != "" {
		server := setupServer(flags.StatusAddr, bot, services)
		go func() {
			log.Info().Str("addr", flags.StatusAddr).Msg("status server listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("status server shutdown error")
			}
		}()
	}

	if err := bot.Run(ctx); err != nil {
		return err
	}
	log.Info().Int("games", bot.Games()).Msg("nightbot finished")
	return nil
}
