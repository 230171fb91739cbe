// Package config loads jornada settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the CLI
type Config struct {
	DBPath       string        `env:"JORNADA_DB_PATH"`
	User         string        `env:"JORNADA_USER"`
	StaleAfter   time.Duration `env:"JORNADA_STALE_AFTER" envDefault:"24h"`
	MaxSession   time.Duration `env:"JORNADA_MAX_SESSION" envDefault:"48h"`
	TickInterval time.Duration `env:"JORNADA_TICK_INTERVAL" envDefault:"1s"`
	Locale       string        `env:"JORNADA_LOCALE" envDefault:"es"`
	LogLevel     string        `env:"JORNADA_LOG_LEVEL" envDefault:"warn"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and fills in derived defaults
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.DBPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(homeDir, ".jornada", "jornada.db")
	}
	if cfg.StaleAfter <= 0 {
		return Config{}, fmt.Errorf("JORNADA_STALE_AFTER must be positive, got %s", cfg.StaleAfter)
	}
	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("JORNADA_TICK_INTERVAL must be positive, got %s", cfg.TickInterval)
	}

	return cfg, nil
}
