package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/abgdnv/ordersync/internal/cache"
	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/abgdnv/ordersync/internal/store"
	"github.com/abgdnv/ordersync/internal/store/db"
	"github.com/abgdnv/ordersync/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrderStore struct {
	mock.Mock
}

func (m *mockOrderStore) InTx(context.Context, func(tx store.Tx) error) error {
	panic("reconcile never writes")
}

func (m *mockOrderStore) ListOrders(_ context.Context, beforeID int64, limit int32) ([]db.Order, error) {
	args := m.Called(beforeID, limit)
	orders, _ := args.Get(0).([]db.Order)
	return orders, args.Error(1)
}

func (m *mockOrderStore) FindOrderItems(_ context.Context, orderIDs []int64) (map[int64][]db.OrderItem, error) {
	args := m.Called(orderIDs)
	items, _ := args.Get(0).(map[int64][]db.OrderItem)
	return items, args.Error(1)
}

func order(id, userID int64, total string) db.Order {
	return db.Order{ID: id, UserID: userID, TotalAmount: decimal.RequireFromString(total)}
}

func item(orderID, productID int64, qty string) db.OrderItem {
	return db.OrderItem{OrderID: orderID, ProductID: productID, Quantity: decimal.RequireFromString(qty), UnitPrice: decimal.NewFromInt(1)}
}

var testCfg = config.ReconcileConfig{BatchSize: 2, Workers: 2, LockTTL: time.Minute}

func newJob(t *testing.T, st store.OrderStore) (*Job, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJob(st, cache.NewRedisProjector(client), cache.NewLocker(client), testCfg, logger), mr, client
}

func TestRun_RebuildsFromScratch(t *testing.T) {
	// given
	st := new(mockOrderStore)
	st.On("ListOrders", int64(0), int32(2)).Return([]db.Order{order(3, 1, "20"), order(2, 2, "5")}, nil).Once()
	st.On("FindOrderItems", []int64{3, 2}).Return(map[int64][]db.OrderItem{
		3: {item(3, 10, "2")},
		2: {item(2, 10, "1"), item(2, 20, "4")},
	}, nil).Once()
	st.On("ListOrders", int64(2), int32(2)).Return([]db.Order{order(1, 1, "7.5")}, nil).Once()
	st.On("FindOrderItems", []int64{1}).Return(map[int64][]db.OrderItem{
		1: {item(1, 20, "1")},
	}, nil).Once()

	job, mr, client := newJob(t, st)
	// stale state a previous run or a drifted projection left behind
	mr.Set("product_sold:10", "100")
	mr.Set("product_sold:99", "3")
	mr.HSet("order:77", "id", "77", "user_id", "1", "total_amount", "1")

	// when
	count, err := job.Run(context.Background())

	// then
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	st.AssertExpectations(t)

	sales, err := cache.NewReader(client).GetBestSellingProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []cache.ProductSales{{ProductID: 20, Quantity: 5}, {ProductID: 10, Quantity: 3}}, sales)

	orders, err := cache.NewReader(client).GetOrders(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, int64(3), orders[0].ID)
	assert.False(t, mr.Exists("order:77"))
	assert.False(t, mr.Exists(LockKey), "lock must be released")
}

func TestRun_IsRepeatable(t *testing.T) {
	// given
	st := new(mockOrderStore)
	st.On("ListOrders", int64(0), int32(2)).Return([]db.Order{order(1, 1, "3")}, nil)
	st.On("FindOrderItems", []int64{1}).Return(map[int64][]db.OrderItem{1: {item(1, 5, "3")}}, nil)
	job, mr, _ := newJob(t, st)

	// when
	for range 3 {
		count, err := job.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, count)
	}

	// then
	sold, err := mr.Get("product_sold:5")
	require.NoError(t, err)
	assert.Equal(t, "3", sold, "counters must not accumulate across runs")
}

func TestRun_EmptyStore(t *testing.T) {
	st := new(mockOrderStore)
	st.On("ListOrders", int64(0), int32(2)).Return([]db.Order{}, nil).Once()
	job, mr, _ := newJob(t, st)
	mr.Set("product_sold:1", "9")

	count, err := job.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, mr.Keys())
}

func TestRun_Failures(t *testing.T) {
	storeDown := ordererrors.Durable(ordererrors.ErrFailedToFindOrders, errors.New("connection refused"))

	testCases := []struct {
		name        string
		setup       func(st *mockOrderStore)
		expectError error
	}{
		{
			name: "List fails on the first page",
			setup: func(st *mockOrderStore) {
				st.On("ListOrders", int64(0), int32(2)).Return(nil, storeDown).Once()
			},
			expectError: ordererrors.ErrDurableStore,
		},
		{
			name: "List fails after a replayed page",
			setup: func(st *mockOrderStore) {
				st.On("ListOrders", int64(0), int32(2)).Return([]db.Order{order(4, 1, "1"), order(3, 1, "1")}, nil).Once()
				st.On("FindOrderItems", []int64{4, 3}).Return(map[int64][]db.OrderItem{}, nil).Once()
				st.On("ListOrders", int64(3), int32(2)).Return(nil, storeDown).Once()
			},
			expectError: ordererrors.ErrDurableStore,
		},
		{
			name: "Items lookup fails",
			setup: func(st *mockOrderStore) {
				st.On("ListOrders", int64(0), int32(2)).Return([]db.Order{order(1, 1, "1")}, nil).Once()
				st.On("FindOrderItems", []int64{1}).
					Return(nil, ordererrors.Durable(ordererrors.ErrFailedToFindOrderItems, errors.New("timeout"))).Once()
			},
			expectError: ordererrors.ErrFailedToFindOrderItems,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			st := new(mockOrderStore)
			tc.setup(st)
			job, mr, _ := newJob(t, st)

			// when
			count, err := job.Run(context.Background())

			// then
			require.ErrorIs(t, err, tc.expectError)
			assert.Zero(t, count)
			assert.False(t, mr.Exists(LockKey), "lock must be released on failure")
			st.AssertExpectations(t)
		})
	}
}

func TestRun_RefusesWhileLocked(t *testing.T) {
	// given
	st := new(mockOrderStore)
	job, mr, _ := newJob(t, st)
	mr.Set(LockKey, "other-run")
	mr.Set("product_sold:1", "9")

	// when
	count, err := job.Run(context.Background())

	// then
	require.ErrorIs(t, err, ordererrors.ErrReconcileInProgress)
	assert.Zero(t, count)
	sold, _ := mr.Get("product_sold:1")
	assert.Equal(t, "9", sold, "cache must be untouched")
	st.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything)
}
