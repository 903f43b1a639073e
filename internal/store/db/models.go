package db

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID          int64
	UserID      int64
	TotalAmount decimal.Decimal
	CreatedAt   *time.Time
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// ProductPrice is the slice of the catalog the order store reads: the current price.
type ProductPrice struct {
	ID    int64
	Price decimal.Decimal
}
