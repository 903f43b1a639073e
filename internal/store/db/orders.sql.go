package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...any) error
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (user_id, total_amount)
VALUES ($1, $2::numeric)
RETURNING id, user_id, total_amount::text, created_at
`

type CreateOrderParams struct {
	UserID      int64
	TotalAmount decimal.Decimal
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder, arg.UserID, arg.TotalAmount.String())
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, quantity, unit_price)
VALUES ($1, $2, $3::numeric, $4::numeric)
RETURNING id, order_id, product_id, quantity::text, unit_price::text
`

type CreateOrderItemParams struct {
	OrderID   int64
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.Quantity.String(),
		arg.UnitPrice.String(),
	)
	return scanOrderItem(row)
}

const deleteOrder = `-- name: DeleteOrder :one
DELETE FROM orders
WHERE id = $1
RETURNING id, user_id, total_amount::text, created_at
`

// DeleteOrder removes the order row; order_items rows go with it (ON DELETE CASCADE).
func (q *Queries) DeleteOrder(ctx context.Context, id int64) (Order, error) {
	row := q.db.QueryRow(ctx, deleteOrder, id)
	return scanOrder(row)
}

const findOrderByID = `-- name: FindOrderByID :one
SELECT id, user_id, total_amount::text, created_at
FROM orders
WHERE id = $1
`

func (q *Queries) FindOrderByID(ctx context.Context, id int64) (Order, error) {
	row := q.db.QueryRow(ctx, findOrderByID, id)
	return scanOrder(row)
}

const findOrderItemsByOrderID = `-- name: FindOrderItemsByOrderID :many
SELECT id, order_id, product_id, quantity::text, unit_price::text
FROM order_items
WHERE order_id = $1
ORDER BY id
`

func (q *Queries) FindOrderItemsByOrderID(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, findOrderItemsByOrderID, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const findOrderItemsByOrderIDs = `-- name: FindOrderItemsByOrderIDs :many
SELECT id, order_id, product_id, quantity::text, unit_price::text
FROM order_items
WHERE order_id = ANY($1::bigint[])
ORDER BY order_id, id
`

func (q *Queries) FindOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, findOrderItemsByOrderIDs, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const findProductPrices = `-- name: FindProductPrices :many
SELECT id, price::text
FROM products
WHERE id = ANY($1::bigint[])
FOR SHARE
`

// FindProductPrices locks the matched product rows for the rest of the transaction,
// so the prices read here cannot change before the order is committed.
func (q *Queries) FindProductPrices(ctx context.Context, ids []int64) ([]ProductPrice, error) {
	rows, err := q.db.Query(ctx, findProductPrices, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	prices := []ProductPrice{}
	for rows.Next() {
		var (
			p   ProductPrice
			raw string
		)
		if err := rows.Scan(&p.ID, &raw); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("product %d price %q: %w", p.ID, raw, err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}

const listOrders = `-- name: ListOrders :many
SELECT id, user_id, total_amount::text, created_at
FROM orders
WHERE ($1::bigint = 0 OR id < $1::bigint)
ORDER BY id DESC
LIMIT $2
`

type ListOrdersParams struct {
	// BeforeID is an exclusive upper bound on id; zero starts from the newest order.
	BeforeID int64
	Limit    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.BeforeID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row scanner) (Order, error) {
	var (
		o         Order
		total     string
		createdAt time.Time
	)
	if err := row.Scan(&o.ID, &o.UserID, &total, &createdAt); err != nil {
		return o, err
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return o, fmt.Errorf("order %d total_amount %q: %w", o.ID, total, err)
	}
	o.TotalAmount = amount
	o.CreatedAt = &createdAt
	return o, nil
}

func scanOrderItem(row scanner) (OrderItem, error) {
	var (
		i         OrderItem
		quantity  string
		unitPrice string
	)
	if err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &quantity, &unitPrice); err != nil {
		return i, err
	}
	var err error
	if i.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return i, fmt.Errorf("order item %d quantity %q: %w", i.ID, quantity, err)
	}
	if i.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return i, fmt.Errorf("order item %d unit_price %q: %w", i.ID, unitPrice, err)
	}
	return i, nil
}
