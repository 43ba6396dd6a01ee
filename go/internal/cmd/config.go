package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/config"
	"github.com/roscoeevans/Skulking/go/internal/midnight/activity"
	"github.com/roscoeevans/Skulking/go/internal/midnight/countdown"
	"github.com/roscoeevans/Skulking/go/internal/midnight/night"
	"github.com/roscoeevans/Skulking/go/internal/midnight/session"
	"github.com/roscoeevans/Skulking/go/internal/midnight/statesync"
)

// Flags are the per-process settings that do not belong in the shared
// config file.
type Flags struct {
	ConfigPath string
	Name       string
	Preset     string
	Players    int
	Games      int
	StatusAddr string
	Seed       uint64
}

func parseFlags() Flags {
	var f Flags
	flag.StringVar(&f.ConfigPath, "config", "", "path to a YAML config file")
	flag.StringVar(&f.Name, "name", "", "display name, random when empty")
	flag.StringVar(&f.Preset, "preset", "standard", "role preset used when this bot is admin")
	flag.IntVar(&f.Players, "players", 3, "participants to wait for before configuring")
	flag.IntVar(&f.Games, "games", 1, "games to play before exiting")
	flag.StringVar(&f.StatusAddr, "status-addr", "", "serve /health and /status on this address")
	flag.Uint64Var(&f.Seed, "seed", 0, "seed for bot choices, 0 for random")
	flag.Parse()
	return f
}

func setupLogging(cfg *config.Config) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func syncConfig(cfg *config.Config) statesync.Config {
	sc := statesync.DefaultConfig()
	if cfg.Sync.FetchTimeout > 0 {
		sc.FetchTimeout = cfg.Sync.FetchTimeout
	}
	sc.PollInterval = cfg.Sync.PollInterval
	// Without a push transport the poll is the only way to see other
	// participants' moves.
	if cfg.Notify.Transport == config.TransportNone && sc.PollInterval == 0 {
		sc.PollInterval = 2 * time.Second
	}
	return sc
}

func sessionConfig(cfg *config.Config, seed uint64) session.Config {
	return session.Config{
		Night: night.Config{
			Lock:          cfg.Night.Lock,
			ToastDuration: cfg.Night.ToastDuration,
		},
		Activity: activity.Config{
			AdvanceMin: cfg.Activity.AdvanceMin,
			AdvanceMax: cfg.Activity.AdvanceMax,
			Seed:       seed,
		},
		Countdown: countdown.Config{
			UrgentThreshold: cfg.Countdown.UrgentThreshold,
		},
		AutoAdvance: true,
	}
}
