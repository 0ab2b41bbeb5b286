// Package config loads the fundledger server configuration from the
// environment, optionally seeded from dotenv files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backends accepted by FUNDLEDGER_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
)

// Config is the server configuration.
type Config struct {
	Addr     string `env:"FUNDLEDGER_ADDR" envDefault:":8080"`
	Backend  string `env:"FUNDLEDGER_BACKEND" envDefault:"memory"`
	DSN      string `env:"FUNDLEDGER_DSN"`
	MongoDB  string `env:"FUNDLEDGER_MONGO_DATABASE" envDefault:"fundledger"`
	LogLevel string `env:"FUNDLEDGER_LOG_LEVEL" envDefault:"info"`

	LockTimeout  time.Duration `env:"FUNDLEDGER_LOCK_TIMEOUT" envDefault:"5s"`
	MaxRetries   uint          `env:"FUNDLEDGER_MAX_RETRIES" envDefault:"5"`
	RetryInitial time.Duration `env:"FUNDLEDGER_RETRY_INITIAL" envDefault:"10ms"`
	RetryMax     time.Duration `env:"FUNDLEDGER_RETRY_MAX" envDefault:"250ms"`
	HookTimeout  time.Duration `env:"FUNDLEDGER_HOOK_TIMEOUT" envDefault:"2s"`

	MetricsPath  string `env:"FUNDLEDGER_METRICS_PATH" envDefault:"/metrics"`
	OTelEndpoint string `env:"FUNDLEDGER_OTEL_ENDPOINT"`

	ShutdownTimeout time.Duration `env:"FUNDLEDGER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads dotenv files (missing files are ignored, existing variables are
// never overridden) and then parses the environment into a Config.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite, BackendMongo:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("config: FUNDLEDGER_DSN is required for backend %q", c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	if c.RetryInitial > c.RetryMax {
		return errors.New("config: FUNDLEDGER_RETRY_INITIAL exceeds FUNDLEDGER_RETRY_MAX")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
