// Package main rebuilds the Redis order projection from PostgreSQL.
// Run it while the order service is not accepting writes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/ordersync/internal/cache"
	"github.com/abgdnv/ordersync/internal/config"
	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/abgdnv/ordersync/internal/reconcile"
	"github.com/abgdnv/ordersync/internal/store"
	"github.com/abgdnv/ordersync/pkg/bootstrap"
	"github.com/abgdnv/ordersync/pkg/config/configloader"
	"github.com/abgdnv/ordersync/pkg/telemetry"
)

// The command shares the order service configuration and its ORDER_ env prefix.
const serviceName = "order"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		if errors.Is(err, ordererrors.ErrReconcileInProgress) {
			log.Printf("skipped: %v", err)
			os.Exit(2)
		}
		log.Printf("reconciliation failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}

	logger := bootstrap.NewLogger(cfg.Log).With("component", "reconcile")
	slog.SetDefault(logger)

	if cfg.Telemetry.TracesEnabled() {
		tp, err := telemetry.NewTracerProvider(ctx, serviceName+"-reconcile", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shut down tracer provider", slog.String("error", err.Error()))
			}
		}()
	}

	dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database connection pool: %w", err)
	}
	defer dbPool.Close()

	rdb, err := bootstrap.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer func() { _ = rdb.Close() }()

	job := reconcile.NewJob(
		store.NewPgStore(dbPool),
		cache.NewRedisProjector(rdb),
		cache.NewLocker(rdb),
		cfg.Reconcile,
		logger,
	)
	count, err := job.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Cache rebuilt", slog.Int("orders", count))
	return nil
}
