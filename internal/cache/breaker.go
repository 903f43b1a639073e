package cache

import (
	"context"
	"errors"
	"fmt"

	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/abgdnv/ordersync/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// ErrCacheUnavailable is returned while the breaker is open and projection is skipped.
var ErrCacheUnavailable = errors.New("cache projection suspended")

// BreakerProjector guards a Projector with a circuit breaker, so a failing Redis is
// not hit by every write while it is down. A skipped projection is drift that
// only reconciliation repairs.
type BreakerProjector struct {
	next Projector
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerProjector(next Projector, cfg config.CircuitBreakerConfig) *BreakerProjector {
	st := gobreaker.Settings{
		Name:        "cache-projection-cb",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			// malformed entries are a data problem, Redis itself answered
			return err == nil || errors.Is(err, ordererrors.ErrMalformedCacheEntry)
		},
	}
	return &BreakerProjector{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](st)}
}

func (b *BreakerProjector) ProjectCreate(ctx context.Context, p OrderProjection) error {
	return b.execute(func() error { return b.next.ProjectCreate(ctx, p) })
}

func (b *BreakerProjector) ProjectDelete(ctx context.Context, orderID int64) error {
	return b.execute(func() error { return b.next.ProjectDelete(ctx, orderID) })
}

// State reports the breaker state.
func (b *BreakerProjector) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerProjector) execute(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	return err
}
