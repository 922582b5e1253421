// Package order holds the pricing pipeline and the checkout service: it
// turns a cart, a fulfillment selection, and a set of discount instruments
// into a single authoritative charge amount, settles it with the payment
// collaborator, and persists the resulting order.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyItems          = fmt.Errorf("items required")
	ErrBelowMinimumCharge  = fmt.Errorf("order total below minimum charge")
	ErrMissingClientSecret = fmt.Errorf("client secret required for paid orders")
)

// ItemNotFoundError indicates a requested catalog item does not exist.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found", e.ItemID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.ItemID)
}

// ReconciliationError indicates the charge succeeded but the order could not
// be persisted. This is the most damaging failure mode in this domain: it
// must reach an operator, and the checkout must not be retried because a
// retry would double-charge.
type ReconciliationError struct {
	OrderID   string
	ChargeRef string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment %s confirmed but order %s not persisted: %v", e.ChargeRef, e.OrderID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// Order is a persisted customer order with its full pricing breakdown.
type Order struct {
	ID                   string
	Items                []Item
	Subtotal             decimal.Decimal
	Fee                  decimal.Decimal
	SubscriptionDiscount decimal.Decimal
	CouponDiscount       decimal.Decimal
	GiftCardApplied      decimal.Decimal
	TotalMinorUnits      int64
	Currency             string
	CouponCode           string
	GiftCardCode         string
	Fulfillment          fulfillment.Selection
	ChargeRef            string
	Manual               bool
	Redemptions          []Redemption
	CreatedAt            time.Time
}

// Item is a single priced line in an order. UnitPrice is the effective
// price: the admin override when one was applied.
type Item struct {
	ItemID          string
	Name            string
	UnitPrice       decimal.Decimal
	Quantity        int
	Kind            string
	PriceOverridden bool
}

// Instrument names for redemption audit records.
const (
	InstrumentCoupon   = "coupon"
	InstrumentGiftCard = "gift_card"
)

// Redemption is an audit record of value consumed from an instrument
// against this order.
type Redemption struct {
	Instrument string
	Code       string
	Amount     decimal.Decimal
}

// Repository persists orders. Create writes the order, its line items, its
// redemption records, the gift card balance decrement, and the coupon usage
// increment as a single transaction: an abandoned or failed checkout commits
// nothing.
type Repository interface {
	Create(ctx context.Context, o *Order) error
}
