// Package config loads client settings from a YAML file with environment
// overrides. Environment variables win over the file, which wins over
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roscoeevans/Skulking/go/internal/dbconfig"
)

// Notify transports.
const (
	TransportNone      = "none"
	TransportNATS      = "nats"
	TransportPostgres  = "postgres"
	TransportWebSocket = "websocket"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	Engine struct {
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"engine"`

	Notify struct {
		Transport     string        `yaml:"transport"`
		NATSURL       string        `yaml:"nats_url"`
		SubjectPrefix string        `yaml:"subject_prefix"`
		WebSocketURL  string        `yaml:"websocket_url"`
		ReconnectWait time.Duration `yaml:"reconnect_wait"`
	} `yaml:"notify"`

	Sync struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		// ProbeTable enables reading the version straight from Postgres.
		ProbeTable string `yaml:"probe_table"`
		ProbeRowID int64  `yaml:"probe_row_id"`
	} `yaml:"sync"`

	Night struct {
		Lock          time.Duration `yaml:"lock"`
		ToastDuration time.Duration `yaml:"toast_duration"`
	} `yaml:"night"`

	Activity struct {
		AdvanceMin time.Duration `yaml:"advance_min"`
		AdvanceMax time.Duration `yaml:"advance_max"`
	} `yaml:"activity"`

	Countdown struct {
		UrgentThreshold int `yaml:"urgent_threshold"`
	} `yaml:"countdown"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database dbconfig.Config `yaml:"database"`
}

// DefaultConfig returns settings for a local development stack.
func DefaultConfig() *Config {
	var c Config
	c.LogLevel = "info"
	c.Engine.URL = "http://localhost:8090"
	c.Engine.Timeout = 10 * time.Second
	c.Notify.Transport = TransportWebSocket
	c.Notify.NATSURL = "nats://localhost:4222"
	c.Notify.SubjectPrefix = "midnight.changes"
	c.Notify.WebSocketURL = "ws://localhost:8090/ws/changes"
	c.Notify.ReconnectWait = 2 * time.Second
	c.Sync.FetchTimeout = 10 * time.Second
	c.Sync.ProbeRowID = 1
	c.Night.Lock = 1500 * time.Millisecond
	c.Night.ToastDuration = 3 * time.Second
	c.Activity.AdvanceMin = 500 * time.Millisecond
	c.Activity.AdvanceMax = 1500 * time.Millisecond
	c.Countdown.UrgentThreshold = 10
	c.Store.Path = "data/midnight.db"
	c.Server.Port = "8090"
	c.Database = dbconfig.Default()
	return &c
}

// Load reads path over the defaults, then applies MS_* and DB_*
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("MS_LOG_LEVEL", c.LogLevel)
	c.Engine.URL = getEnv("MS_ENGINE_URL", c.Engine.URL)
	c.Engine.Timeout = getEnvAsDuration("MS_ENGINE_TIMEOUT", c.Engine.Timeout)
	c.Notify.Transport = getEnv("MS_NOTIFY_TRANSPORT", c.Notify.Transport)
	c.Notify.NATSURL = getEnv("NATS_URL", c.Notify.NATSURL)
	c.Notify.WebSocketURL = getEnv("MS_WEBSOCKET_URL", c.Notify.WebSocketURL)
	c.Sync.PollInterval = getEnvAsDuration("MS_POLL_INTERVAL", c.Sync.PollInterval)
	c.Sync.ProbeTable = getEnv("MS_PROBE_TABLE", c.Sync.ProbeTable)
	c.Countdown.UrgentThreshold = getEnvAsInt("MS_URGENT_THRESHOLD", c.Countdown.UrgentThreshold)
	c.Store.Path = getEnv("MS_STORE_PATH", c.Store.Path)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Database = dbconfig.FromEnv(c.Database)
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Notify.Transport {
	case TransportNone, TransportNATS, TransportPostgres, TransportWebSocket:
	default:
		errs = append(errs, fmt.Errorf("unknown notify transport %q", c.Notify.Transport))
	}
	if c.Engine.URL == "" {
		errs = append(errs, errors.New("engine url is required"))
	}
	if c.Activity.AdvanceMax < c.Activity.AdvanceMin {
		errs = append(errs, errors.New("activity advance_max is below advance_min"))
	}
	if c.Sync.PollInterval < 0 {
		errs = append(errs, errors.New("poll interval must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
