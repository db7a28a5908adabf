package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devrev/catalogd/internal/app"
	"github.com/devrev/catalogd/internal/config"
	"github.com/devrev/catalogd/internal/health"
	"github.com/devrev/catalogd/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration; a missing default file means defaults only
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("./config.yaml"); err == nil {
			configPath = "./config.yaml"
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("config_path", configPath),
		zap.String("addr", cfg.Addr()),
		zap.Duration("debounce_window", cfg.Filters.DebounceWindow),
		zap.Int("max_entries", cfg.Results.MaxEntries))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := app.New(cfg, reg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize catalog engine", zap.Error(err))
	}
	defer rt.Close()

	healthCheck := health.NewHealthChecker(&health.HealthCheckConfig{}, rt.Sessions, rt.Pool, logger)
	httpServer := server.NewServer(cfg, rt.Sessions, healthCheck, reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		rt.Sessions.RunCleanup(gctx, cfg.Sessions.SweepInterval)
		return nil
	})
	if cfg.Filters.OptionCacheTTL > 0 {
		g.Go(func() error {
			rt.Cache.RunCleanup(gctx, cfg.Filters.OptionCacheTTL)
			return nil
		})
	}
	g.Go(func() error {
		healthCheck.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Catalog service stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Catalog service shutdown complete")
}
