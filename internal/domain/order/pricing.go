package order

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/cart"
	"github.com/feastbox/checkout-api/internal/domain/discount"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
)

// MinimumChargeMinorUnits mirrors the payment processor's minimum charge.
// Totals between zero and this value cannot be settled.
const MinimumChargeMinorUnits = 50

// ErrInvalidFulfillment is returned when fee resolution did not produce a
// valid fee; pricing must not proceed past it.
var ErrInvalidFulfillment = errors.New("fulfillment fee not resolved")

// Quote is the complete pricing breakdown for one checkout. All component
// amounts are decimal; TotalMinorUnits is the single integer amount handed
// to the payment collaborator.
type Quote struct {
	Subtotal             decimal.Decimal
	Fee                  decimal.Decimal
	SubscriptionDiscount decimal.Decimal
	CouponDiscount       decimal.Decimal
	GiftCardApplied      decimal.Decimal
	FreeDelivery         bool
	TotalMinorUnits      int64
}

// BuildQuote runs the pricing pipeline: admin overrides, then fee, then the
// discount engine, then one conversion to minor units. This is the only
// place totals are computed, for both the preview and the charge path.
func BuildQuote(items []cart.LineItem, ov *cart.OverrideSet, feeRes fulfillment.FeeResult, method fulfillment.Method, dctx discount.Context) (Quote, error) {
	if !feeRes.Valid {
		return Quote{}, ErrInvalidFulfillment
	}

	// Overrides apply before the fee and discount stages, so discounts
	// compute off the overridden subtotal.
	effective := ov.Apply(items)
	subtotal := cart.Subtotal(effective, nil)
	fee := feeRes.Fee

	bd := discount.Compute(effective, subtotal, fee, method, dctx)
	if bd.FreeDelivery {
		fee = decimal.Zero
	}

	total := subtotal.
		Add(fee).
		Sub(bd.SubscriptionDiscount).
		Sub(bd.CouponDiscount).
		Sub(bd.GiftCardApplied)

	return Quote{
		Subtotal:             subtotal,
		Fee:                  fee,
		SubscriptionDiscount: bd.SubscriptionDiscount,
		CouponDiscount:       bd.CouponDiscount,
		GiftCardApplied:      bd.GiftCardApplied,
		FreeDelivery:         bd.FreeDelivery,
		TotalMinorUnits:      ToMinorUnits(total),
	}, nil
}

// ToMinorUnits converts a decimal currency amount to integer minor units,
// clamped at zero. This is the single rounding in the pipeline; rounding
// anywhere earlier makes the displayed and charged totals drift apart.
func ToMinorUnits(amount decimal.Decimal) int64 {
	if amount.IsNegative() {
		return 0
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
