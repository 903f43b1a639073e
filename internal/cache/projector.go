package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/abgdnv/ordersync/internal/money"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// scanCount is the COUNT hint passed to SCAN.
const scanCount = 500

// OrderProjection is everything the cache needs to mirror a committed order.
type OrderProjection struct {
	OrderID     int64
	UserID      int64
	TotalAmount decimal.Decimal
	Items       []ItemProjection
}

// ItemProjection is one requested line. Several lines may name the same product.
type ItemProjection struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// Projector mirrors durable order changes into the cache.
type Projector interface {
	ProjectCreate(ctx context.Context, p OrderProjection) error
	ProjectDelete(ctx context.Context, orderID int64) error
}

// RedisProjector writes the order view with plain Redis commands.
// Counter updates use INCRBY/DECRBY, so concurrent projections of different orders never lose updates.
type RedisProjector struct {
	client redis.Cmdable
}

func NewRedisProjector(client redis.Cmdable) *RedisProjector {
	return &RedisProjector{client: client}
}

// ProjectCreate writes the order summary, one item hash per distinct product and
// increments every touched units-sold counter. Lines naming the same product are merged
// so the item hash holds the full quantity for that product.
func (p *RedisProjector) ProjectCreate(ctx context.Context, o OrderProjection) error {
	merged := mergeItems(o.Items)

	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, OrderKey(o.OrderID),
			fieldID, strconv.FormatInt(o.OrderID, 10),
			fieldUserID, strconv.FormatInt(o.UserID, 10),
			fieldTotalAmount, o.TotalAmount.String(),
		)
		for _, item := range merged {
			pipe.HSet(ctx, OrderItemKey(o.OrderID, item.ProductID),
				fieldProductID, strconv.FormatInt(item.ProductID, 10),
				fieldQuantity, item.Quantity.String(),
			)
			pipe.IncrBy(ctx, ProductSoldKey(item.ProductID), money.CounterDelta(item.Quantity))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("project order %d: %w", o.OrderID, err)
	}
	return nil
}

// ProjectDelete reverses the counter contributions of the cached items and removes
// the order and item hashes. An order that was never cached is a no-op.
// Items that cannot be decoded are still removed but their counters are left untouched;
// the decode errors are returned so the caller can report the drift.
func (p *RedisProjector) ProjectDelete(ctx context.Context, orderID int64) error {
	itemKeys, err := scanKeys(ctx, p.client, orderItemPattern(orderID))
	if err != nil {
		return fmt.Errorf("scan items of order %d: %w", orderID, err)
	}

	hashes, err := hashes(ctx, p.client, itemKeys)
	if err != nil {
		return fmt.Errorf("read items of order %d: %w", orderID, err)
	}

	var decodeErrs []error
	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range itemKeys {
			if len(hashes[i]) == 0 {
				continue
			}
			item, err := decodeItem(key, hashes[i])
			if err != nil {
				decodeErrs = append(decodeErrs, err)
				continue
			}
			pipe.DecrBy(ctx, ProductSoldKey(item.ProductID), money.CounterDelta(item.Quantity))
		}
		pipe.Del(ctx, append([]string{OrderKey(orderID)}, itemKeys...)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("unproject order %d: %w", orderID, err)
	}
	return errors.Join(decodeErrs...)
}

// Reset deletes every order, item and counter key.
func (p *RedisProjector) Reset(ctx context.Context) error {
	for _, pattern := range []string{orderPattern, productSoldPattern} {
		keys, err := scanKeys(ctx, p.client, pattern)
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		for start := 0; start < len(keys); start += scanCount {
			end := min(start+scanCount, len(keys))
			if err := p.client.Del(ctx, keys[start:end]...).Err(); err != nil {
				return fmt.Errorf("delete %s: %w", pattern, err)
			}
		}
	}
	return nil
}

func mergeItems(items []ItemProjection) []ItemProjection {
	merged := make([]ItemProjection, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(item.Quantity)
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// scanKeys walks the keyspace with SCAN. SCAN may report a key more than once, so results are deduplicated.
func scanKeys(ctx context.Context, client redis.Cmdable, pattern string) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	iter := client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// hashes fetches every hash in one pipeline. A key deleted in the meantime yields an empty map.
func hashes(ctx context.Context, client redis.Cmdable, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(keys))
	for i, cmd := range cmds {
		out[i] = cmd.Val()
	}
	return out, nil
}
