package store

import (
	"context"
	"errors"

	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/abgdnv/ordersync/internal/store/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgStore struct {
	db *pgxpool.Pool
	q  *db.Queries
}

// NewPgStore creates a new instance of OrderStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
		q:  db.New(dbp),
	}
}

func (p *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return p.withTransaction(ctx, func(qtx *db.Queries) error {
		return fn(&pgTx{q: qtx})
	})
}

func (p *PgStore) ListOrders(ctx context.Context, beforeID int64, limit int32) ([]db.Order, error) {
	// single statement, no transaction needed
	orders, err := p.q.ListOrders(ctx, db.ListOrdersParams{BeforeID: beforeID, Limit: limit})
	if err != nil {
		return nil, ordererrors.Durable(ordererrors.ErrFailedToFindOrders, err)
	}
	return orders, nil
}

func (p *PgStore) FindOrderItems(ctx context.Context, orderIDs []int64) (map[int64][]db.OrderItem, error) {
	if len(orderIDs) == 0 {
		return map[int64][]db.OrderItem{}, nil
	}
	items, err := p.q.FindOrderItemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, ordererrors.Durable(ordererrors.ErrFailedToFindOrderItems, err)
	}
	byOrder := make(map[int64][]db.OrderItem, len(orderIDs))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, nil
}

// withTransaction acquires a transaction, runs fn and always releases it:
// commit when fn succeeds, rollback on every other path.
func (p *PgStore) withTransaction(ctx context.Context, fn func(qtx *db.Queries) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return ordererrors.Durable(ordererrors.ErrTransactionBegin, err)
	}
	qtx := p.q.WithTx(tx)

	err = fn(qtx)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, ordererrors.Durable(ordererrors.ErrTransactionRollback, rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return ordererrors.Durable(ordererrors.ErrTransactionCommit, err)
	}

	return nil
}

// pgTx maps query results and driver errors onto the store contract.
type pgTx struct {
	q *db.Queries
}

func (t *pgTx) ProductPrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	rows, err := t.q.FindProductPrices(ctx, ids)
	if err != nil {
		return nil, ordererrors.Durable(ordererrors.ErrFailedToFindProducts, err)
	}
	prices := make(map[int64]decimal.Decimal, len(rows))
	for _, row := range rows {
		prices[row.ID] = row.Price
	}
	return prices, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, userID int64, total decimal.Decimal) (*db.Order, error) {
	order, err := t.q.CreateOrder(ctx, db.CreateOrderParams{UserID: userID, TotalAmount: total})
	if err != nil {
		return nil, ordererrors.Durable(ordererrors.ErrCreateOrder, err)
	}
	return &order, nil
}

func (t *pgTx) InsertOrderItem(ctx context.Context, params db.CreateOrderItemParams) (*db.OrderItem, error) {
	item, err := t.q.CreateOrderItem(ctx, params)
	if err != nil {
		return nil, ordererrors.Durable(ordererrors.ErrCreateOrderItem, err)
	}
	return &item, nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, id int64) (*db.Order, error) {
	order, err := t.q.DeleteOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ordererrors.ErrOrderNotFound
		}
		return nil, ordererrors.Durable(ordererrors.ErrDeleteOrder, err)
	}
	return &order, nil
}
