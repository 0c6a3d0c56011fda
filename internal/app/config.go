package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds everything an App instance needs to run. Environment
// variables provide the defaults; CLI flags override them.
type Config struct {
	CatalogPath string `env:"MODKIT_CATALOG"`

	LogFormat       string        `env:"MODKIT_LOG_FORMAT" envDefault:"text"`
	LogLevel        string        `env:"MODKIT_LOG_LEVEL" envDefault:"info"`
	Workers         int           `env:"MODKIT_WORKERS" envDefault:"1"`
	LoadTimeout     time.Duration `env:"MODKIT_LOAD_TIMEOUT"`
	HealthcheckPort int           `env:"MODKIT_HEALTHCHECK_PORT"`
	DryRun          bool
}

// DefaultConfig builds a Config from the environment.
func DefaultConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("reading environment config: %w", err)
	}
	return cfg, nil
}

// NewConfig validates a fully assembled Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.CatalogPath == "" {
		return nil, errors.New("CatalogPath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("Workers must be at least 1, got %d", cfg.Workers)
	}
	if cfg.LoadTimeout < 0 {
		return nil, fmt.Errorf("LoadTimeout must not be negative, got %s", cfg.LoadTimeout)
	}
	return &cfg, nil
}
