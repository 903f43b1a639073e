package cache

import (
	"context"
	"fmt"
	"testing"

	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderIDs(orders []OrderView) []int64 {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestGetOrders(t *testing.T) {
	testCases := []struct {
		name    string
		limit   int
		wantIDs []int64
	}{
		{name: "Limit two returns newest two", limit: 2, wantIDs: []int64{3, 2}},
		{name: "Limit above size returns all", limit: 10, wantIDs: []int64{3, 2, 1}},
		{name: "Zero limit returns all", limit: 0, wantIDs: []int64{3, 2, 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			_, client := newTestRedis(t)
			p := NewRedisProjector(client)
			ctx := context.Background()
			for id := int64(1); id <= 3; id++ {
				require.NoError(t, p.ProjectCreate(ctx, OrderProjection{
					OrderID: id, UserID: id * 10, TotalAmount: dec("1.25"),
					Items: []ItemProjection{{ProductID: 1, Quantity: dec("1")}},
				}))
			}

			// when
			orders, err := NewReader(client).GetOrders(ctx, tc.limit)

			// then
			require.NoError(t, err)
			assert.Equal(t, tc.wantIDs, orderIDs(orders))
			assert.Equal(t, int64(30), orders[0].UserID)
			assert.True(t, orders[0].TotalAmount.Equal(dec("1.25")))
		})
	}
}

func TestGetOrders_EmptyCache(t *testing.T) {
	_, client := newTestRedis(t)

	orders, err := NewReader(client).GetOrders(context.Background(), 5)

	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestGetOrders_MalformedSummary(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.HSet("order:1", "id", "1", "user_id", "x", "total_amount", "1")

	_, err := NewReader(client).GetOrders(context.Background(), 0)

	require.ErrorIs(t, err, ordererrors.ErrMalformedCacheEntry)
}

func TestGetOrder(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.HSet("order:4", "id", "4", "user_id", "9", "total_amount", "12.30")
	r := NewReader(client)
	ctx := context.Background()

	o, err := r.GetOrder(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(9), o.UserID)
	assert.True(t, o.TotalAmount.Equal(dec("12.3")))

	_, err = r.GetOrder(ctx, 5)
	require.ErrorIs(t, err, ordererrors.ErrOrderNotFound)
}

func TestGetHighestSpendingUsers(t *testing.T) {
	t.Run("Aggregates per user and sorts by spend", func(t *testing.T) {
		// given
		mr, client := newTestRedis(t)
		mr.HSet("order:1", "id", "1", "user_id", "1", "total_amount", "10.00")
		mr.HSet("order:2", "id", "2", "user_id", "2", "total_amount", "30.00")
		mr.HSet("order:3", "id", "3", "user_id", "1", "total_amount", "25.50")
		mr.HSet("order:3:item:1", "product_id", "1", "quantity", "1")

		// when
		spends, err := NewReader(client).GetHighestSpendingUsers(context.Background())

		// then
		require.NoError(t, err)
		require.Len(t, spends, 2)
		assert.Equal(t, int64(1), spends[0].UserID)
		assert.True(t, spends[0].Total.Equal(dec("35.50")))
		assert.Equal(t, int64(2), spends[1].UserID)
		assert.True(t, spends[1].Total.Equal(dec("30")))
	})

	t.Run("Returns at most ten users", func(t *testing.T) {
		// given
		mr, client := newTestRedis(t)
		for i := 1; i <= 15; i++ {
			mr.HSet(fmt.Sprintf("order:%d", i),
				"id", fmt.Sprint(i), "user_id", fmt.Sprint(i), "total_amount", fmt.Sprint(i))
		}

		// when
		spends, err := NewReader(client).GetHighestSpendingUsers(context.Background())

		// then
		require.NoError(t, err)
		require.Len(t, spends, TopSpendersLimit)
		assert.Equal(t, int64(15), spends[0].UserID)
		assert.Equal(t, int64(6), spends[9].UserID)
	})
}

func TestGetBestSellingProducts(t *testing.T) {
	t.Run("Sorted by quantity then product id, never truncated", func(t *testing.T) {
		// given
		mr, client := newTestRedis(t)
		mr.Set("product_sold:1", "2")
		mr.Set("product_sold:2", "7")
		mr.Set("product_sold:3", "2")
		mr.Set("product_sold:4", "0")

		// when
		sales, err := NewReader(client).GetBestSellingProducts(context.Background())

		// then
		require.NoError(t, err)
		assert.Equal(t, []ProductSales{
			{ProductID: 2, Quantity: 7},
			{ProductID: 1, Quantity: 2},
			{ProductID: 3, Quantity: 2},
			{ProductID: 4, Quantity: 0},
		}, sales)
	})

	t.Run("No counters", func(t *testing.T) {
		_, client := newTestRedis(t)

		sales, err := NewReader(client).GetBestSellingProducts(context.Background())

		require.NoError(t, err)
		assert.Empty(t, sales)
	})

	t.Run("Malformed counter", func(t *testing.T) {
		mr, client := newTestRedis(t)
		mr.Set("product_sold:1", "lots")

		_, err := NewReader(client).GetBestSellingProducts(context.Background())

		require.ErrorIs(t, err, ordererrors.ErrMalformedCacheEntry)
	})
}
