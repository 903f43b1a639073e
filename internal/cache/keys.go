// Package cache maintains the denormalized Redis view of orders: order summaries,
// order items and per-product units-sold counters.
//
// The view is disposable. Every key is derived from a durable identifier and may be
// deleted and rebuilt at any time from the order store.
package cache

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	orderPrefix       = "order:"
	itemSegment       = ":item:"
	productSoldPrefix = "product_sold:"

	orderPattern       = orderPrefix + "*"
	productSoldPattern = productSoldPrefix + "*"
)

// Hash fields of an order summary.
const (
	fieldID          = "id"
	fieldUserID      = "user_id"
	fieldTotalAmount = "total_amount"
)

// Hash fields of an order item.
const (
	fieldProductID = "product_id"
	fieldQuantity  = "quantity"
)

// OrderKey is the hash holding the order summary: order:{id}.
func OrderKey(orderID int64) string {
	return fmt.Sprintf("%s%d", orderPrefix, orderID)
}

// OrderItemKey is the hash holding one product line of an order: order:{id}:item:{pid}.
func OrderItemKey(orderID, productID int64) string {
	return fmt.Sprintf("%s%d%s%d", orderPrefix, orderID, itemSegment, productID)
}

// ProductSoldKey is the integer counter of units sold for a product: product_sold:{pid}.
func ProductSoldKey(productID int64) string {
	return fmt.Sprintf("%s%d", productSoldPrefix, productID)
}

func orderItemPattern(orderID int64) string {
	return fmt.Sprintf("%s%d%s*", orderPrefix, orderID, itemSegment)
}

// parseOrderKey recognises order summary keys. Item keys share the prefix and are rejected.
func parseOrderKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, orderPrefix)
	if !ok || strings.Contains(rest, ":") {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseProductSoldKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, productSoldPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
