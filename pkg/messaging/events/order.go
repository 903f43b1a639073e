package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/ordersync/pkg/messaging"
	"github.com/shopspring/decimal"
)

type OrderCreatedEvent struct {
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (o OrderCreatedEvent) Subject() string {
	return messaging.OrdersCreatedSubject
}

func (o OrderCreatedEvent) Payload() ([]byte, error) {
	return json.Marshal(o)
}

type OrderDeletedEvent struct {
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

func (o OrderDeletedEvent) Subject() string {
	return messaging.OrdersDeletedSubject
}

func (o OrderDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(o)
}
