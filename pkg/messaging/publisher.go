// Package messaging defines domain events and the publisher contract.
package messaging

import (
	"context"
)

const (
	OrdersCreatedSubject = "orders.created"
	OrdersDeletedSubject = "orders.deleted"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}
