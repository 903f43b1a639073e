// Package errors provides custom error types for order-related operations.
package errors

import (
	"errors"
	"fmt"
)

// Validation failures. Every one of them matches ErrValidation as well as its own sentinel.
var ErrValidation = errors.New("validation failed")
var ErrMissingUser = errors.New("a user is required")
var ErrEmptyOrder = errors.New("at least one item is required")
var ErrInvalidProductID = errors.New("invalid product id")
var ErrInvalidQuantity = errors.New("quantity must be greater than zero")
var ErrUnknownProduct = errors.New("product does not exist")

// Durable store failures. Every one of them is reported together with ErrDurableStore.
var ErrDurableStore = errors.New("durable store failure")

var ErrCreateOrder = errors.New("failed to create order")
var ErrCreateOrderItem = errors.New("failed to create order item")
var ErrDeleteOrder = errors.New("failed to delete order")

var ErrOrderNotFound = errors.New("order not found")
var ErrFailedToFindOrders = errors.New("failed to find orders")
var ErrFailedToFindOrderItems = errors.New("failed to find order items")
var ErrFailedToFindProducts = errors.New("failed to find products")

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")

// Cache failures.
var ErrMalformedCacheEntry = errors.New("malformed cache entry")
var ErrReconcileInProgress = errors.New("reconciliation already in progress")

// Validation joins ErrValidation with a specific reason and a human readable detail.
func Validation(reason error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrValidation, reason, fmt.Sprintf(format, args...))
}

// Durable joins ErrDurableStore with a specific store sentinel and the driver error.
func Durable(reason error, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %w", ErrDurableStore, reason)
	}
	return fmt.Errorf("%w: %w: %w", ErrDurableStore, reason, cause)
}

// DecodeError reports a cache entry that could not be converted into its typed form.
type DecodeError struct {
	Key   string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: key %q: %v", ErrMalformedCacheEntry, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: key %q field %q: %v", ErrMalformedCacheEntry, e.Key, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every DecodeError match ErrMalformedCacheEntry.
func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedCacheEntry
}
