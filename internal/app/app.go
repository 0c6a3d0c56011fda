package app

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vk/modkit/internal/catalog"
	"github.com/vk/modkit/internal/metrics"
)

// App encapsulates the CLI's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	source    catalog.Source
	registry  *prometheus.Registry
	collector *metrics.Collector
}

// New is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and metrics
// registry.
func New(outW io.Writer, cfg *Config, source catalog.Source) *App {
	registry := prometheus.NewRegistry()
	return &App{
		outW:      outW,
		logger:    newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config:    cfg,
		source:    source,
		registry:  registry,
		collector: metrics.NewCollector(registry),
	}
}

// Logger returns the application's logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}
