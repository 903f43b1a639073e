package db

import (
	"context"
)

type Querier interface {
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error)
	DeleteOrder(ctx context.Context, id int64) (Order, error)
	FindOrderByID(ctx context.Context, id int64) (Order, error)
	FindOrderItemsByOrderID(ctx context.Context, orderID int64) ([]OrderItem, error)
	FindOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]OrderItem, error)
	FindProductPrices(ctx context.Context, ids []int64) ([]ProductPrice, error)
	ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error)
}

var _ Querier = (*Queries)(nil)
