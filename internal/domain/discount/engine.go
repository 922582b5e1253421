package discount

import (
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/cart"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
)

var hundred = decimal.NewFromInt(100)

// Context carries the instruments active for one checkout. At most one
// coupon and one gift card; the subscription discount is independent and
// always stacks beneath them. SubscriptionPercent is injected per session
// from settings, keeping Compute free of global state.
type Context struct {
	SubscriptionPercent decimal.Decimal
	Coupon              *Coupon
	GiftCard            *GiftCard
}

// Breakdown is the computed discount amounts for one checkout. Amounts are
// unrounded; the total reconciler performs the single rounding to minor
// units at the payment boundary.
type Breakdown struct {
	SubscriptionDiscount decimal.Decimal
	CouponDiscount       decimal.Decimal
	GiftCardApplied      decimal.Decimal
	// FreeDelivery is set by a free_delivery coupon. The caller zeroes the
	// fee only when the fulfillment method is delivery.
	FreeDelivery bool
}

// Compute applies the instruments in fixed precedence, each step operating
// on the already-reduced running total:
//
//  1. subscription percentage off the subtotal
//  2. the coupon (percentage, fixed amount, free delivery, or free item)
//  3. the gift card, consuming min(balance, remaining total + fee)
//
// The gift card goes last so it can cover the fee and never reduces a total
// that a later step would inflate again. Compute is pure and is called
// exactly once per reconciliation, so re-submitting the same coupon can
// never compound its discount.
func Compute(items []cart.LineItem, subtotal, fee decimal.Decimal, method fulfillment.Method, dctx Context) Breakdown {
	var bd Breakdown
	running := subtotal

	if dctx.SubscriptionPercent.IsPositive() {
		bd.SubscriptionDiscount = clampToZero(running.Mul(dctx.SubscriptionPercent).Div(hundred))
		running = running.Sub(bd.SubscriptionDiscount)
	}

	if c := dctx.Coupon; c != nil {
		switch c.Kind {
		case CouponPercentage:
			bd.CouponDiscount = clampToZero(running.Mul(c.Value).Div(hundred))
		case CouponFixedAmount:
			bd.CouponDiscount = clampToZero(decimal.Min(c.Value, running))
		case CouponFreeDelivery:
			bd.FreeDelivery = method == fulfillment.MethodDelivery
		case CouponFreeItem:
			bd.CouponDiscount = freeItemDiscount(items, c.FreeItemID, running)
		}
		running = running.Sub(bd.CouponDiscount)
	}

	effectiveFee := fee
	if bd.FreeDelivery {
		effectiveFee = decimal.Zero
	}

	if gc := dctx.GiftCard; gc != nil && gc.Balance.IsPositive() {
		owed := clampToZero(running.Add(effectiveFee))
		bd.GiftCardApplied = decimal.Min(gc.Balance, owed)
	}

	return bd
}

// freeItemDiscount zeroes exactly one unit of the first line item matching
// itemID: with quantity 3 at 8.00 the line contributes 16.00, not 0.
func freeItemDiscount(items []cart.LineItem, itemID string, running decimal.Decimal) decimal.Decimal {
	for _, item := range items {
		if item.ID == itemID && item.Quantity >= 1 {
			return clampToZero(decimal.Min(item.UnitPrice, running))
		}
	}
	return decimal.Zero
}

func clampToZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
