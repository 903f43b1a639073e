package cache

import (
	"fmt"
	"strconv"

	ordererrors "github.com/abgdnv/ordersync/internal/errors"
	"github.com/shopspring/decimal"
)

// OrderView is an order reconstructed from its cached summary.
type OrderView struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ItemView is an order line reconstructed from its cached item hash.
type ItemView struct {
	ProductID int64
	Quantity  decimal.Decimal
}

func decodeOrder(key string, fields map[string]string) (OrderView, error) {
	var (
		v   OrderView
		err error
	)
	if v.ID, err = int64Field(key, fields, fieldID); err != nil {
		return OrderView{}, err
	}
	if keyID, ok := parseOrderKey(key); ok && keyID != v.ID {
		return OrderView{}, &ordererrors.DecodeError{
			Key:   key,
			Field: fieldID,
			Err:   fmt.Errorf("id %d does not match key", v.ID),
		}
	}
	if v.UserID, err = int64Field(key, fields, fieldUserID); err != nil {
		return OrderView{}, err
	}
	if v.TotalAmount, err = decimalField(key, fields, fieldTotalAmount); err != nil {
		return OrderView{}, err
	}
	return v, nil
}

func decodeItem(key string, fields map[string]string) (ItemView, error) {
	var (
		v   ItemView
		err error
	)
	if v.ProductID, err = int64Field(key, fields, fieldProductID); err != nil {
		return ItemView{}, err
	}
	if v.Quantity, err = decimalField(key, fields, fieldQuantity); err != nil {
		return ItemView{}, err
	}
	return v, nil
}

func decodeCounter(key, raw string) (ProductSales, error) {
	pid, ok := parseProductSoldKey(key)
	if !ok {
		return ProductSales{}, &ordererrors.DecodeError{Key: key, Err: fmt.Errorf("not a product counter key")}
	}
	qty, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ProductSales{}, &ordererrors.DecodeError{Key: key, Err: err}
	}
	return ProductSales{ProductID: pid, Quantity: qty}, nil
}

func int64Field(key string, fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, &ordererrors.DecodeError{Key: key, Field: name, Err: fmt.Errorf("missing")}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &ordererrors.DecodeError{Key: key, Field: name, Err: err}
	}
	return v, nil
}

func decimalField(key string, fields map[string]string, name string) (decimal.Decimal, error) {
	raw, ok := fields[name]
	if !ok {
		return decimal.Zero, &ordererrors.DecodeError{Key: key, Field: name, Err: fmt.Errorf("missing")}
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ordererrors.DecodeError{Key: key, Field: name, Err: err}
	}
	return v, nil
}
