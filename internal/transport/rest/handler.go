// Package rest provides HTTP handlers for order writes and cache-backed reports.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/ordersync/internal/cache"
	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/abgdnv/ordersync/internal/service"
	"github.com/abgdnv/ordersync/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// OrderReader serves the read side from the cache.
type OrderReader interface {
	GetOrders(ctx context.Context, limit int) ([]cache.OrderView, error)
	GetOrder(ctx context.Context, orderID int64) (cache.OrderView, error)
	GetHighestSpendingUsers(ctx context.Context) ([]cache.UserSpend, error)
	GetBestSellingProducts(ctx context.Context) ([]cache.ProductSales, error)
}

// CreateOrderRequest is the body of POST /api/v1/orders.
type CreateOrderRequest struct {
	UserID int64               `json:"user_id" validate:"required"`
	Items  []service.ItemInput `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderResponse carries the id assigned by the order store.
type CreateOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

type Handler struct {
	service  service.OrderService
	reader   OrderReader
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(service service.OrderService, reader OrderReader, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		reader:   reader,
		validate: validator.New(),

		logger: logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the order service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.FindOrders)
			r.Post("/", h.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.FindByID)
				r.Delete("/", h.Delete)
			})
		})
		r.Route("/reports", func(r chi.Router) {
			r.Get("/top-spenders", h.TopSpenders)
			r.Get("/best-sellers", h.BestSellers)
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// Create handles the creation of a new order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to create order", "user_id", req.UserID, "items", len(req.Items))
	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return
		}
		mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.service.CreateOrder(r.Context(), req.UserID, req.Items)
	if err != nil {
		switch {
		case errors.Is(err, ordererrors.ErrValidation):
			mLogger.WarnContext(r.Context(), "Order rejected", "error", err)
			web.RespondError(w, mLogger, http.StatusBadRequest, err.Error())
		case errors.Is(err, ordererrors.ErrDurableStore):
			web.RespondError(w, mLogger, http.StatusServiceUnavailable, "Order store unavailable")
		default:
			mLogger.ErrorContext(r.Context(), "Error creating order", "error", err)
			web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to create order")
		}
		return
	}
	mLogger.InfoContext(r.Context(), "Order created successfully", slog.Int64("ID", id))
	web.RespondJSON(w, mLogger, http.StatusCreated, CreateOrderResponse{OrderID: id})
}

// Delete removes an order and its cached view.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, ordererrors.ErrDurableStore) {
			web.RespondError(w, mLogger, http.StatusServiceUnavailable, "Order store unavailable")
			return
		}
		mLogger.ErrorContext(r.Context(), "Error deleting order", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to delete order with ID %d", id))
		return
	}
	if !deleted {
		mLogger.WarnContext(r.Context(), "Order not found for delete", "ID", id)
		web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %d not found", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Order deleted successfully", slog.Int64("ID", id))
	w.WriteHeader(http.StatusNoContent)
}

// FindOrders lists cached orders, newest first.
func (h *Handler) FindOrders(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	limit, ok := web.ParseOptionalInt(r, w, mLogger, "limit", 0, web.Gte(0))
	if !ok {
		return
	}

	list, err := h.reader.GetOrders(r.Context(), limit)
	if err != nil {
		h.respondReadError(w, r, mLogger, err, "Failed to fetch orders")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved order list", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, nonNil(list))
}

// FindByID retrieves one cached order.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	found, err := h.reader.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, ordererrors.ErrOrderNotFound) {
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Order with ID %d not found", id))
			return
		}
		h.respondReadError(w, r, mLogger, err, fmt.Sprintf("Failed to retrieve order with ID %d", id))
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// TopSpenders reports the users with the highest cached spend.
func (h *Handler) TopSpenders(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	users, err := h.reader.GetHighestSpendingUsers(r.Context())
	if err != nil {
		h.respondReadError(w, r, mLogger, err, "Failed to build top spenders report")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, nonNil(users))
}

// BestSellers reports units sold per product.
func (h *Handler) BestSellers(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	products, err := h.reader.GetBestSellingProducts(r.Context())
	if err != nil {
		h.respondReadError(w, r, mLogger, err, "Failed to build best sellers report")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, nonNil(products))
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) respondReadError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, message string) {
	if errors.Is(err, ordererrors.ErrMalformedCacheEntry) {
		logger.ErrorContext(r.Context(), "Malformed cache entry, reconciliation required", "error", err)
		web.RespondError(w, logger, http.StatusInternalServerError, "Cached data is malformed")
		return
	}
	logger.ErrorContext(r.Context(), message, "error", err)
	web.RespondError(w, logger, http.StatusServiceUnavailable, message)
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID, _ := web.GetRequestID(r.Context())
	return h.logger.With("request_id", reqID)
}

// nonNil keeps empty reports as [] on the wire.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
