// Package catalog defines the purchasable items: single meals and fixed
// multi-meal packages.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested catalog item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Item is a meal or package available for purchase. For packages, Contents
// maps meal IDs to bundled quantities; the package carries its own price and
// the bundled meals are not independently priced for the customer.
type Item struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Kind     string
	Category string
	Contents map[string]int
}

// Repository defines read operations for the catalog.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
}
