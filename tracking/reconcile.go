package tracking

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Reconciliation is the result of comparing a worker's known on-hand quantity
// with the quantity they report after a job.
type Reconciliation struct {
	Before decimal.Decimal
	After  decimal.Decimal
	Used   decimal.Decimal
	Valid  bool
}

// Consumed reports whether anything should be recorded.
func (r Reconciliation) Consumed() bool {
	return r.Valid && r.Used.IsPositive()
}

// Reconcile derives the consumed quantity from before and the reported after.
// Valid is false when after is malformed or negative. Used is never negative:
// a report higher than before yields zero, not a replenishment.
func Reconcile(before decimal.Decimal, after string) Reconciliation {
	a, err := ParseQuantity(after)
	if err != nil {
		return Reconciliation{Before: before, Used: decimal.Zero}
	}
	used := before.Sub(a)
	if used.IsNegative() {
		used = decimal.Zero
	}
	return Reconciliation{Before: before, After: a, Used: used, Valid: true}
}

// ParseQuantity parses a non-negative decimal quantity.
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidQuantity
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidQuantity
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidQuantity
	}
	return d, nil
}
