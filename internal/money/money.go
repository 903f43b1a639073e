// Package money computes order line and order totals with fixed-point decimals.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Line is a priced order line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return LineTotal(l.UnitPrice, l.Quantity)
}

// LineTotal returns the contribution of a single line to the order total.
func LineTotal(unitPrice, quantity decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(quantity)
}

// OrderTotal sums the totals of all lines. An empty slice totals to zero.
func OrderTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

// ParseQuantity parses a client supplied quantity and requires it to be strictly positive.
func ParseQuantity(raw string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse quantity %q: %w", raw, err)
	}
	if !q.IsPositive() {
		return decimal.Zero, fmt.Errorf("quantity %s is not positive", q)
	}
	return q, nil
}

// CounterDelta converts a quantity into the integer step applied to a units-sold counter.
// The fractional part is dropped, so the same quantity always yields the same step.
func CounterDelta(quantity decimal.Decimal) int64 {
	return quantity.IntPart()
}
