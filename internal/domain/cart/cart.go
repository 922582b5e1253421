// Package cart holds the in-session cart state for a checkout: ordered line
// items, quantities, and admin price overrides. It owns no persistence;
// draft-cart snapshots are written by a separate collaborator.
package cart

import (
	"github.com/shopspring/decimal"
)

// Kind distinguishes single meals from fixed multi-meal bundles.
type Kind string

const (
	KindMeal    Kind = "meal"
	KindPackage Kind = "package"
)

// LineItem is one cart entry. For packages, Contents maps meal IDs to the
// quantity included in the bundle; the bundle price is the package's own
// UnitPrice, not the sum of its parts.
type LineItem struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Kind      Kind
	Contents  map[string]int
}

// LineTotal returns UnitPrice * Quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart aggregates line items for a single checkout session. It is not safe
// for concurrent use; one cart belongs to one session.
type Cart struct {
	items []LineItem
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// AddItem appends a line item, merging quantities when an item with the same
// ID is already present. Non-positive quantities are ignored.
func (c *Cart) AddItem(item LineItem) {
	if item.Quantity <= 0 {
		return
	}
	for i := range c.items {
		if c.items[i].ID == item.ID {
			c.items[i].Quantity += item.Quantity
			return
		}
	}
	c.items = append(c.items, item)
}

// UpdateQuantity sets the quantity for the given item. A quantity of zero or
// less removes the item.
func (c *Cart) UpdateQuantity(id string, qty int) {
	if qty <= 0 {
		c.RemoveItem(id)
		return
	}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Quantity = qty
			return
		}
	}
}

// RemoveItem deletes the item with the given ID, preserving the order of the
// remaining items.
func (c *Cart) RemoveItem(id string) {
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the current line items in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Subtotal returns the raw subtotal of the cart at catalog prices.
func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.items, nil)
}

// Subtotal sums price * quantity across items, using override prices where
// present. This is the entry point for the pricing pipeline: pass the
// override set from a manual admin order, or nil for customer checkouts.
func Subtotal(items []LineItem, ov *OverrideSet) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		price := ov.UnitPrice(item)
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}
