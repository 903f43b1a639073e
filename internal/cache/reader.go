package cache

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// TopSpendersLimit is how many users GetHighestSpendingUsers returns.
const TopSpendersLimit = 10

// UserSpend is the aggregate cached spend of one user.
type UserSpend struct {
	UserID int64           `json:"user_id"`
	Total  decimal.Decimal `json:"total"`
}

// ProductSales is the cached units-sold counter of one product.
type ProductSales struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// Reader serves reporting queries from the cache only. It never touches the durable store,
// so results reflect whatever the projector or the last reconciliation left behind.
type Reader struct {
	client redis.Cmdable
}

func NewReader(client redis.Cmdable) *Reader {
	return &Reader{client: client}
}

// GetOrders returns cached orders newest first. A non-positive limit returns all of them.
func (r *Reader) GetOrders(ctx context.Context, limit int) ([]OrderView, error) {
	orders, err := r.allOrders(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(orders, func(a, b OrderView) int { return cmp.Compare(b.ID, a.ID) })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// GetOrder returns one cached order summary.
func (r *Reader) GetOrder(ctx context.Context, orderID int64) (OrderView, error) {
	key := OrderKey(orderID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return OrderView{}, fmt.Errorf("read %s: %w", key, err)
	}
	if len(fields) == 0 {
		return OrderView{}, ordererrors.ErrOrderNotFound
	}
	return decodeOrder(key, fields)
}

// GetHighestSpendingUsers sums total_amount per user over every cached order and returns
// the TopSpendersLimit biggest spenders. Equal totals keep the order in which users were first seen.
func (r *Reader) GetHighestSpendingUsers(ctx context.Context) ([]UserSpend, error) {
	orders, err := r.allOrders(ctx)
	if err != nil {
		return nil, err
	}

	var spends []UserSpend
	index := make(map[int64]int)
	for _, o := range orders {
		if i, ok := index[o.UserID]; ok {
			spends[i].Total = spends[i].Total.Add(o.TotalAmount)
			continue
		}
		index[o.UserID] = len(spends)
		spends = append(spends, UserSpend{UserID: o.UserID, Total: o.TotalAmount})
	}

	slices.SortStableFunc(spends, func(a, b UserSpend) int { return b.Total.Cmp(a.Total) })
	if len(spends) > TopSpendersLimit {
		spends = spends[:TopSpendersLimit]
	}
	return spends, nil
}

// GetBestSellingProducts returns every units-sold counter, highest first.
// Equal quantities are ordered by product id.
func (r *Reader) GetBestSellingProducts(ctx context.Context) ([]ProductSales, error) {
	keys, err := scanKeys(ctx, r.client, productSoldPattern)
	if err != nil {
		return nil, fmt.Errorf("scan product counters: %w", err)
	}
	if len(keys) == 0 {
		return []ProductSales{}, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read product counters: %w", err)
	}

	sales := make([]ProductSales, 0, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted after the scan
			continue
		}
		s, err := decodeCounter(keys[i], raw)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}

	slices.SortFunc(sales, func(a, b ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return sales, nil
}

// allOrders decodes every order summary in SCAN order. Summaries that vanish between
// the scan and the read are skipped.
func (r *Reader) allOrders(ctx context.Context) ([]OrderView, error) {
	keys, err := scanKeys(ctx, r.client, orderPattern)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	summaryKeys := slices.DeleteFunc(keys, func(k string) bool {
		_, ok := parseOrderKey(k)
		return !ok
	})

	fields, err := hashes(ctx, r.client, summaryKeys)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	orders := make([]OrderView, 0, len(summaryKeys))
	for i, key := range summaryKeys {
		if len(fields[i]) == 0 {
			continue
		}
		o, err := decodeOrder(key, fields[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
