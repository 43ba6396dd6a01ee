package dbconfig

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds Postgres connection settings for the LISTEN/NOTIFY transport
// and the version probe.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// Default returns local development settings.
func Default() Config {
	return Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "midnight",
		SSLMode:  "disable",
	}
}

// FromEnv overrides base with any DB_* environment variables that are set.
func FromEnv(base Config) Config {
	base.Host = getEnv("DB_HOST", base.Host)
	if port, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		base.Port = port
	}
	base.User = getEnv("DB_USER", base.User)
	base.Password = getEnv("DB_PASSWORD", base.Password)
	base.Database = getEnv("DB_NAME", base.Database)
	base.SSLMode = getEnv("DB_SSLMODE", base.SSLMode)
	return base
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
