package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is the environment-variable namespace of spec.md §6, expanded
// with the ambient knobs SPEC_FULL.md's B1/B2/B4 components need. Parsed
// with the teacher's caarlos0/env/v11 + go-playground/validator/v10 pair.
type Config struct {
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// DatabaseURI is a postgres:// or sqlite:// DSN; sqlite ":memory:"
	// forces a single-connection pool (store.Open), per spec.md §6.
	DatabaseURI   string `env:"DATABASE_URI,required" validate:"required"`
	DatabaseTable string `env:"DATABASE_TABLE" envDefault:"jobcore_objects" validate:"required"`

	// ServerType selects which loops this process runs: "web" runs the
	// HTTP Transport (B2), "scheduler" runs the Scheduler (C5) and
	// Execution Server (C7/C8) loops, per spec.md §6.
	ServerType string `env:"SERVER_TYPE" envDefault:"web" validate:"required,oneof=web scheduler"`

	Port        string `env:"PORT" envDefault:"8080" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090" validate:"required"`

	// SchedulerProcessCount is the number of Worker Threads an Execution
	// Server hosts, per spec.md §6's SCHEDULER_PROCESS_COUNT.
	SchedulerProcessCount int `env:"SCHEDULER_PROCESS_COUNT" envDefault:"5" validate:"min=1,max=100"`
	SchedulerTickSeconds  int `env:"SCHEDULER_TICK_INTERVAL_SEC" envDefault:"1" validate:"min=1,max=60"`
	SchedulerLeaseSeconds int `env:"SCHEDULER_LEASE_TTL_SEC" envDefault:"10" validate:"min=1,max=300"`
	QueueCapacity         int `env:"QUEUE_CAPACITY" envDefault:"256" validate:"min=1"`

	// JWTSecret signs/verifies the bearer-identity adapter of B2. Empty
	// disables auth (local dev only — spec.md excludes login/session
	// management, so there is no issuance path to wire this to in prod).
	JWTSecret string `env:"JWT_SECRET"`

	// AdminDefaultUsername/Password bootstrap the system user of §4.4,
	// applied only when no system user exists yet, per spec.md §6.
	AdminDefaultUsername string `env:"ADMIN_DEFAULT_USERNAME" envDefault:"admin"`
	AdminDefaultPassword string `env:"ADMIN_DEFAULT_PASSWORD" envDefault:"changeme" validate:"min=8"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) SchedulerTickInterval() time.Duration {
	return time.Duration(c.SchedulerTickSeconds) * time.Second
}

func (c *Config) SchedulerLeaseTTL() time.Duration {
	return time.Duration(c.SchedulerLeaseSeconds) * time.Second
}
