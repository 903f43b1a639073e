// Package store provides the durable, transactional order store.
package store

import (
	"context"

	"github.com/abgdnv/ordersync/internal/store/db"
	"github.com/shopspring/decimal"
)

// OrderStore is the source of truth for orders and order items.
// It exclusively owns order identity: ids are assigned here and never reused.
type OrderStore interface {
	// InTx runs fn inside one transaction. The transaction commits only when fn returns nil;
	// on any error it is rolled back and the error is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// ListOrders returns at most limit orders with id < beforeID, newest first.
	// A zero beforeID starts from the newest order.
	ListOrders(ctx context.Context, beforeID int64, limit int32) ([]db.Order, error)

	// FindOrderItems returns the items of the given orders grouped by order id.
	// Orders without items are absent from the map.
	FindOrderItems(ctx context.Context, orderIDs []int64) (map[int64][]db.OrderItem, error)
}

// Tx is the unit of work handed to InTx callbacks.
type Tx interface {
	// ProductPrices resolves the current price of every known id in one query.
	// Unknown ids are simply missing from the result.
	ProductPrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error)

	// InsertOrder inserts an order row and returns it with its generated id.
	InsertOrder(ctx context.Context, userID int64, total decimal.Decimal) (*db.Order, error)

	// InsertOrderItem inserts one line of an order.
	InsertOrderItem(ctx context.Context, params db.CreateOrderItemParams) (*db.OrderItem, error)

	// DeleteOrder removes an order and, by cascade, its items.
	// Returns ErrOrderNotFound if no order exists with the given id.
	DeleteOrder(ctx context.Context, id int64) (*db.Order, error)
}
