package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/devrev/catalogd/internal/app"
	"github.com/devrev/catalogd/internal/client"
	"github.com/devrev/catalogd/internal/config"
	"github.com/devrev/catalogd/internal/metrics"
	"github.com/devrev/catalogd/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seed = `
entries:
  - id: "1"
    make: Toyota
    model: Corolla
    price: 12000
    year: 2018
    added_at: 2024-03-01T10:00:00Z
`

func TestNewLogger(t *testing.T) {
	logger, err := app.NewLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = app.NewLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = app.NewLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	seedPath := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0644))

	cfg := config.Default()
	cfg.Catalog.SeedFile = seedPath
	src, err := app.NewSource(cfg, metrics.NewNop(), zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &client.MemorySource{}, src)

	res, err := src.Search(context.Background(), model.NewFilterState(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)

	cfg.Remote.BaseURL = "http://localhost:7000/api"
	src, err = app.NewSource(cfg, metrics.NewNop(), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &client.HTTPCatalogSource{}, src)

	cfg = config.Default()
	cfg.Catalog.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = app.NewSource(cfg, metrics.NewNop(), zap.NewNop())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	rt, err := app.New(config.Default(), prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	s, err := rt.Sessions.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rt.Sessions.Len())

	makes, err := s.OptionSet(model.DimensionManufacturer)
	require.NoError(t, err)
	assert.Equal(t, []model.Option{{Value: model.AnyToken, Label: "Any"}}, makes.Options, "an empty catalog only offers any")
}

func TestNew_BadFallbackFile(t *testing.T) {
	cfg := config.Default()
	cfg.Filters.FallbackFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := app.New(cfg, prometheus.NewRegistry(), zap.NewNop())
	assert.Error(t, err)
}
