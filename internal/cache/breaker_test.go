package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/abgdnv/ordersync/pkg/config"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProjector returns queued errors, one per call. Not thread-safe.
type mockProjector struct {
	calls     int
	responses []error
}

func (m *mockProjector) next() error {
	m.calls++
	if len(m.responses) == 0 {
		return nil
	}
	err := m.responses[0]
	m.responses = m.responses[1:]
	return err
}

func (m *mockProjector) ProjectCreate(context.Context, OrderProjection) error { return m.next() }
func (m *mockProjector) ProjectDelete(context.Context, int64) error { return m.next() }

func TestBreakerProjector(t *testing.T) {
	cfg := config.CircuitBreakerConfig{
		ConsecutiveFailures: 3,
		ErrorRatePercent:    100,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	}
	redisDown := errors.New("connection refused")
	malformed := &ordererrors.DecodeError{Key: "order:1:item:1", Field: "quantity", Err: errors.New("bad")}

	testCases := []struct {
		name      string
		responses []error
		calls     int
		wantState gobreaker.State
		wantCalls int
		lastErrIs error
	}{
		{
			name:      "Opens after consecutive failures and skips calls",
			responses: []error{redisDown, redisDown, redisDown},
			calls:     5,
			wantState: gobreaker.StateOpen,
			wantCalls: 3,
			lastErrIs: ErrCacheUnavailable,
		},
		{
			name:      "Decode errors do not trip",
			responses: []error{malformed, malformed, malformed, malformed},
			calls:     4,
			wantState: gobreaker.StateClosed,
			wantCalls: 4,
			lastErrIs: ordererrors.ErrMalformedCacheEntry,
		},
		{
			name:      "Success passes through",
			calls:     2,
			wantState: gobreaker.StateClosed,
			wantCalls: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			mock := &mockProjector{responses: tc.responses}
			b := NewBreakerProjector(mock, cfg)

			// when
			var err error
			for range tc.calls {
				err = b.ProjectDelete(context.Background(), 1)
			}

			// then
			assert.Equal(t, tc.wantState, b.State())
			assert.Equal(t, tc.wantCalls, mock.calls)
			if tc.lastErrIs != nil {
				require.ErrorIs(t, err, tc.lastErrIs)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
