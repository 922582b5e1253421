package cart

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNegativeOverride is returned when an admin supplies a negative price.
var ErrNegativeOverride = errors.New("override price must not be negative")

// OverrideSet carries per-line-item price overrides for manually created
// admin orders. It is an explicit parameter object passed through the
// pricing pipeline rather than ambient state, so concurrent requests can
// never observe each other's overrides. Overrides replace the unit price
// used for total computation; the catalog record is never touched.
//
// A nil *OverrideSet is valid and means "no overrides".
type OverrideSet struct {
	prices map[string]decimal.Decimal
}

// NewOverrideSet returns an empty override set.
func NewOverrideSet() *OverrideSet {
	return &OverrideSet{prices: make(map[string]decimal.Decimal)}
}

// Set records an override for the given line item ID.
func (o *OverrideSet) Set(itemID string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrNegativeOverride
	}
	o.prices[itemID] = price
	return nil
}

// Reset clears all overrides for the in-progress order.
func (o *OverrideSet) Reset() {
	clear(o.prices)
}

// UnitPrice returns the effective unit price for the item: the override when
// one exists, otherwise the item's catalog price.
func (o *OverrideSet) UnitPrice(item LineItem) decimal.Decimal {
	if o == nil {
		return item.UnitPrice
	}
	if p, ok := o.prices[item.ID]; ok {
		return p
	}
	return item.UnitPrice
}

// Overridden reports whether the given item ID has an override.
func (o *OverrideSet) Overridden(itemID string) bool {
	if o == nil {
		return false
	}
	_, ok := o.prices[itemID]
	return ok
}

// Apply returns a copy of items with override prices substituted, so later
// pipeline stages (discount computation in particular) see effective prices.
func (o *OverrideSet) Apply(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	if o == nil {
		return out
	}
	for i := range out {
		if p, ok := o.prices[out[i].ID]; ok {
			out[i].UnitPrice = p
		}
	}
	return out
}
