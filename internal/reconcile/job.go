// Package reconcile rebuilds the cached order view from the order store.
//
// The rebuild resets the units-sold counters, so it must not overlap with live order
// writes: a projection that lands between the reset and the replay of its order is
// counted twice. Run it in a maintenance window. Concurrent rebuilds are prevented by a
// Redis lock, concurrent writes are not.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/ordersync/internal/cache"
	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/abgdnv/ordersync/internal/store"
	"github.com/abgdnv/ordersync/internal/store/db"
	"github.com/abgdnv/ordersync/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// LockKey guards against two rebuilds running at the same time.
const LockKey = "lock:reconcile"

// Rebuilder is the part of the cache a rebuild writes to.
type Rebuilder interface {
	Reset(ctx context.Context) error
	ProjectCreate(ctx context.Context, p cache.OrderProjection) error
}

// Locker serialises rebuilds.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Job struct {
	orderStore store.OrderStore
	cache      Rebuilder
	locker     Locker
	cfg        config.ReconcileConfig
	logger     *slog.Logger

	replayed metric.Int64Counter
	duration metric.Float64Histogram
}

func NewJob(orderStore store.OrderStore, rebuilder Rebuilder, locker Locker, cfg config.ReconcileConfig, logger *slog.Logger) *Job {
	meter := otel.Meter("order-reconcile")
	replayed, err := meter.Int64Counter("reconcile_orders_replayed", metric.WithDescription("Orders replayed into the cache"))
	if err != nil {
		panic(fmt.Sprintf("failed to create reconcile_orders_replayed counter: %v", err))
	}
	duration, err := meter.Float64Histogram("reconcile_duration_seconds",
		metric.WithDescription("Duration of a full cache rebuild"), metric.WithUnit("s"))
	if err != nil {
		panic(fmt.Sprintf("failed to create reconcile_duration_seconds histogram: %v", err))
	}
	return &Job{
		orderStore: orderStore,
		cache:      rebuilder,
		locker:     locker,
		cfg:        cfg,
		logger:     logger,
		replayed:   replayed,
		duration:   duration,
	}
}

// Run clears the cached view and replays every order, newest first.
// It returns the number of orders projected. On any failure it returns 0 and the error;
// the orders replayed so far stay in the cache.
func (j *Job) Run(ctx context.Context) (count int, err error) {
	start := time.Now()
	ctx, span := otel.Tracer("order-reconcile").Start(ctx, "Reconcile")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("orders", count))
		span.End()
	}()

	token, ok, err := j.locker.TryLock(ctx, LockKey, j.cfg.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !ok {
		return 0, ordererrors.ErrReconcileInProgress
	}
	defer func() {
		// the run context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := j.locker.Release(releaseCtx, LockKey, token); err != nil {
			j.logger.Warn("Failed to release reconcile lock", slog.String("error", err.Error()))
		}
	}()

	if err := j.cache.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset cache: %w", err)
	}
	j.logger.Info("Cache cleared, replaying orders", slog.Int("batch_size", j.cfg.BatchSize), slog.Int("workers", j.cfg.Workers))

	var beforeID int64
	for {
		orders, err := j.orderStore.ListOrders(ctx, beforeID, int32(j.cfg.BatchSize))
		if err != nil {
			return 0, err
		}
		if len(orders) == 0 {
			break
		}
		if err := j.replayBatch(ctx, orders); err != nil {
			return 0, err
		}
		count += len(orders)
		beforeID = orders[len(orders)-1].ID
		j.logger.Debug("Batch replayed", slog.Int("orders", count), slog.Int64("last_id", beforeID))
		if len(orders) < j.cfg.BatchSize {
			break
		}
	}

	j.duration.Record(ctx, time.Since(start).Seconds())
	j.logger.Info("Reconciliation finished", slog.Int("orders", count), slog.Duration("took", time.Since(start)))
	return count, nil
}

func (j *Job) replayBatch(ctx context.Context, orders []db.Order) error {
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := j.orderStore.FindOrderItems(ctx, ids)
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Workers)
	for _, o := range orders {
		g.Go(func() error {
			if err := j.cache.ProjectCreate(gCtx, toProjection(o, items[o.ID])); err != nil {
				return fmt.Errorf("replay order %d: %w", o.ID, err)
			}
			j.replayed.Add(gCtx, 1)
			return nil
		})
	}
	return g.Wait()
}

func toProjection(o db.Order, items []db.OrderItem) cache.OrderProjection {
	p := cache.OrderProjection{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount,
		Items:       make([]cache.ItemProjection, len(items)),
	}
	for i, item := range items {
		p.Items[i] = cache.ItemProjection{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return p
}
