// Package app assembles the catalog engine from configuration. It is shared
// by the catalogd server and the catalogctl tool.
package app

import (
	"fmt"
	"time"

	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/config"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/service"
	"github.com/devrev/catalogd/internal/store"
	"github.com/devrev/catalogd/internal/util/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const poolStopTimeout = 5 * time.Second

// Runtime holds the long-lived components built from a Config
type Runtime struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Source   client.CatalogSource
	Pool     *workerpool.Pool
	Fallback *store.FallbackTable
	Cache    *store.OptionCache
	Sessions *service.SessionManager
	logger   *zap.Logger
}

// NewLogger builds the process logger from the logging section
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// New wires the source, pool, option stores and session manager.
// Metrics are registered on reg.
func New(cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) (*Runtime, error) {
	m := metrics.NewMetrics(reg)

	source, err := NewSource(cfg, m, logger)
	if err != nil {
		return nil, err
	}

	fallback, err := NewFallback(cfg.Filters)
	if err != nil {
		return nil, err
	}

	pool := workerpool.New(&workerpool.Config{
		Name:       "fetch",
		MaxWorkers: cfg.Workers.MaxWorkers,
		QueueSize:  cfg.Workers.QueueSize,
		Logger:     logger,
	})
	cache := store.NewOptionCache(cfg.Filters.OptionCacheTTL)

	sessions := service.NewSessionManager(&service.SessionManagerConfig{
		Session: service.SessionConfig{
			DebounceWindow: cfg.Filters.DebounceWindow,
			EmptyResultTTL: cfg.Filters.EmptyResultTTL,
			FetchTimeout:   cfg.Remote.Timeout,
			MaxEntries:     cfg.Results.MaxEntries,
			PageSize:       cfg.Results.PageSize,
		},
		IdleTTL:      cfg.Sessions.IdleTTL,
		MaxSessions:  cfg.Sessions.MaxSessions,
		PrimeTimeout: cfg.Sessions.PrimeTimeout,
	}, source, pool, fallback, cache, m, logger)

	return &Runtime{
		Config:   cfg,
		Metrics:  m,
		Source:   source,
		Pool:     pool,
		Fallback: fallback,
		Cache:    cache,
		Sessions: sessions,
		logger:   logger,
	}, nil
}

// NewSource returns the HTTP client when remote.base_url is set, otherwise
// an in-memory catalog loaded from catalog.seed_file
func NewSource(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (client.CatalogSource, error) {
	if cfg.Remote.BaseURL != "" {
		src, err := client.NewHTTPCatalogSource(client.HTTPSourceConfig{
			BaseURL:           cfg.Remote.BaseURL,
			Timeout:           cfg.Remote.Timeout,
			MaxAttempts:       cfg.Remote.MaxAttempts,
			RetryBaseDelay:    cfg.Remote.RetryBaseDelay,
			MaxRetryDelay:     cfg.Remote.MaxRetryDelay,
			RequestsPerSecond: cfg.Remote.RequestsPerSecond,
			Burst:             cfg.Remote.Burst,
		}, m, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Using remote catalog", zap.String("base_url", cfg.Remote.BaseURL))
		return src, nil
	}

	if cfg.Catalog.SeedFile == "" {
		logger.Warn("No remote base_url or seed file configured, serving an empty catalog")
		return client.NewMemorySource(nil), nil
	}

	entries, err := client.LoadSeedFile(cfg.Catalog.SeedFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Using in-memory catalog",
		zap.String("seed_file", cfg.Catalog.SeedFile),
		zap.Int("entries", len(entries)))
	return client.NewMemorySource(entries), nil
}

// NewFallback loads the configured fallback file or returns the built-in table
func NewFallback(cfg config.FiltersConfig) (*store.FallbackTable, error) {
	if cfg.FallbackFile == "" {
		return store.DefaultFallbackTable(), nil
	}
	return store.LoadFallbackFile(cfg.FallbackFile)
}

// Close ends every session and stops the worker pool
func (r *Runtime) Close() {
	r.Sessions.CloseAll()
	if err := r.Pool.Stop(poolStopTimeout); err != nil {
		r.logger.Warn("Worker pool did not stop cleanly", zap.Error(err))
	}
}
