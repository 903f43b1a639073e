// Package service implements the order write path: durable commit first, cache projection second.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/abgdnv/ordersync/internal/cache"
	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/abgdnv/ordersync/internal/money"
	"github.com/abgdnv/ordersync/internal/store"
	"github.com/abgdnv/ordersync/internal/store/db"
	"github.com/abgdnv/ordersync/pkg/messaging"
	"github.com/abgdnv/ordersync/pkg/messaging/events"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("order-service")

// OrderService defines the write operations on orders.
type OrderService interface {
	// CreateOrder validates and prices the items, stores the order and projects it into the cache.
	// Returns the id assigned by the durable store.
	CreateOrder(ctx context.Context, userID int64, items []ItemInput) (int64, error)

	// DeleteOrder removes the order and its cached view.
	// Returns false without error if no such order exists.
	DeleteOrder(ctx context.Context, orderID int64) (bool, error)
}

// ItemInput is one requested order line as received from the client.
// Both fields are parsed and validated by CreateOrder.
type ItemInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  string `json:"quantity" validate:"required"`
}

// Service implements OrderService.
type Service struct {
	orderStore store.OrderStore
	projector  cache.Projector
	publisher  messaging.Publisher

	ordersCreated     metric.Int64Counter
	ordersDeleted     metric.Int64Counter
	projectionFailure metric.Int64Counter
}

// NewService creates a new instance of OrderService.
func NewService(orderStore store.OrderStore, projector cache.Projector, publisher messaging.Publisher) *Service {
	meter := otel.Meter("order-service")
	ordersCreated, err := meter.Int64Counter("orders_created", metric.WithDescription("Total number of created orders"))
	if err != nil {
		panic(fmt.Sprintf("failed to create orders_created counter: %v", err))
	}
	ordersDeleted, err := meter.Int64Counter("orders_deleted", metric.WithDescription("Total number of deleted orders"))
	if err != nil {
		panic(fmt.Sprintf("failed to create orders_deleted counter: %v", err))
	}
	projectionFailure, err := meter.Int64Counter("cache_projection_failures",
		metric.WithDescription("Cache projections that failed after a durable commit"))
	if err != nil {
		panic(fmt.Sprintf("failed to create cache_projection_failures counter: %v", err))
	}
	return &Service{
		orderStore:        orderStore,
		projector:         projector,
		publisher:         publisher,
		ordersCreated:     ordersCreated,
		ordersDeleted:     ordersDeleted,
		projectionFailure: projectionFailure,
	}
}

type parsedItem struct {
	productID int64
	quantity  decimal.Decimal
}

// CreateOrder runs validation, pricing and both inserts in one transaction.
// Nothing is written to the cache unless the transaction commits.
func (s *Service) CreateOrder(ctx context.Context, userID int64, items []ItemInput) (_ int64, err error) {
	ctx, span := tracer.Start(ctx, "CreateOrder", trace.WithAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int("items", len(items)),
	))
	defer func() { endSpan(span, err) }()

	parsed, err := parseItems(userID, items)
	if err != nil {
		return 0, err
	}

	var (
		order      *db.Order
		itemRows   []db.OrderItem
		productIDs = uniqueProductIDs(parsed)
	)
	err = s.orderStore.InTx(ctx, func(tx store.Tx) error {
		prices, err := tx.ProductPrices(ctx, productIDs)
		if err != nil {
			return err
		}
		for _, id := range productIDs {
			if _, ok := prices[id]; !ok {
				return ordererrors.Validation(ordererrors.ErrUnknownProduct, "product %d", id)
			}
		}

		lines := make([]money.Line, len(parsed))
		for i, item := range parsed {
			lines[i] = money.Line{UnitPrice: prices[item.productID], Quantity: item.quantity}
		}

		order, err = tx.InsertOrder(ctx, userID, money.OrderTotal(lines))
		if err != nil {
			return err
		}
		itemRows = make([]db.OrderItem, 0, len(parsed))
		for i, item := range parsed {
			row, err := tx.InsertOrderItem(ctx, db.CreateOrderItemParams{
				OrderID:   order.ID,
				ProductID: item.productID,
				Quantity:  item.quantity,
				UnitPrice: lines[i].UnitPrice,
			})
			if err != nil {
				return err
			}
			itemRows = append(itemRows, *row)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ordererrors.ErrValidation) {
			slog.ErrorContext(ctx, "Failed to create order", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		}
		return 0, err
	}
	s.ordersCreated.Add(ctx, 1)

	projection := cache.OrderProjection{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       make([]cache.ItemProjection, len(itemRows)),
	}
	for i, row := range itemRows {
		projection.Items[i] = cache.ItemProjection{ProductID: row.ProductID, Quantity: row.Quantity}
	}
	span.SetAttributes(attribute.Int64("order_id", order.ID))
	if err := s.projector.ProjectCreate(ctx, projection); err != nil {
		s.reportDrift(ctx, "create", order.ID, err)
	}

	s.publish(ctx, events.OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       toEventItems(itemRows),
		CreatedAt:   createdAt(order),
	})

	return order.ID, nil
}

// DeleteOrder removes the order inside a transaction and then its cached view.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) (_ bool, err error) {
	ctx, span := tracer.Start(ctx, "DeleteOrder", trace.WithAttributes(attribute.Int64("order_id", orderID)))
	defer func() { endSpan(span, err) }()

	var deleted *db.Order
	err = s.orderStore.InTx(ctx, func(tx store.Tx) error {
		var err error
		deleted, err = tx.DeleteOrder(ctx, orderID)
		return err
	})
	if errors.Is(err, ordererrors.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to delete order", slog.Int64("order_id", orderID), slog.String("error", err.Error()))
		return false, err
	}
	s.ordersDeleted.Add(ctx, 1)

	if err := s.projector.ProjectDelete(ctx, orderID); err != nil {
		s.reportDrift(ctx, "delete", orderID, err)
	}

	s.publish(ctx, events.OrderDeletedEvent{
		OrderID:   deleted.ID,
		UserID:    deleted.UserID,
		DeletedAt: time.Now().UTC(),
	})

	return true, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// reportDrift records a projection failure. The durable record is already committed,
// so the cache stays behind until the next reconciliation.
func (s *Service) reportDrift(ctx context.Context, op string, orderID int64, err error) {
	trace.SpanFromContext(ctx).AddEvent("cache drift", trace.WithAttributes(attribute.String("error", err.Error())))
	s.projectionFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	slog.ErrorContext(ctx, "Cache projection failed, cache has drifted from the order store",
		slog.String("op", op),
		slog.Int64("order_id", orderID),
		slog.String("error", err.Error()),
	)
}

func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event", slog.String("subject", event.Subject()), slog.String("error", err.Error()))
	}
}

// parseItems checks everything that can be checked without the database,
// in the order the client is expected to fix it.
func parseItems(userID int64, items []ItemInput) ([]parsedItem, error) {
	if userID <= 0 {
		return nil, ordererrors.Validation(ordererrors.ErrMissingUser, "user_id %d", userID)
	}
	if len(items) == 0 {
		return nil, ordererrors.Validation(ordererrors.ErrEmptyOrder, "items is empty")
	}
	parsed := make([]parsedItem, len(items))
	for i, item := range items {
		pid, err := strconv.ParseInt(strings.TrimSpace(item.ProductID), 10, 64)
		if err != nil {
			return nil, ordererrors.Validation(ordererrors.ErrInvalidProductID, "%q", item.ProductID)
		}
		qty, err := money.ParseQuantity(item.Quantity)
		if err != nil {
			return nil, ordererrors.Validation(ordererrors.ErrInvalidQuantity, "product %d: %q", pid, item.Quantity)
		}
		parsed[i] = parsedItem{productID: pid, quantity: qty}
	}
	return parsed, nil
}

// uniqueProductIDs keeps the first-seen order so an unknown-product error always names the same id.
func uniqueProductIDs(items []parsedItem) []int64 {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.productID]; ok {
			continue
		}
		seen[item.productID] = struct{}{}
		ids = append(ids, item.productID)
	}
	return ids
}

func toEventItems(rows []db.OrderItem) []events.OrderItem {
	out := make([]events.OrderItem, len(rows))
	for i, row := range rows {
		out[i] = events.OrderItem{ProductID: row.ProductID, Quantity: row.Quantity, UnitPrice: row.UnitPrice}
	}
	return out
}

func createdAt(order *db.Order) time.Time {
	if order.CreatedAt == nil {
		return time.Now().UTC()
	}
	return *order.CreatedAt
}
