// Package discount holds the coupon and gift card instruments and the
// discount engine that applies them, in fixed precedence, to a checkout
// total. The engine itself is a pure function so the preview (quote) path
// and the authoritative charge path cannot drift apart.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// CouponKind enumerates the supported coupon behaviours.
type CouponKind string

const (
	// CouponPercentage reduces the running total by Value percent.
	CouponPercentage CouponKind = "percentage"
	// CouponFixedAmount reduces the running total by Value, capped at the
	// running total.
	CouponFixedAmount CouponKind = "fixed_amount"
	// CouponFreeDelivery zeroes the delivery fee; it has no effect on
	// collection fees.
	CouponFreeDelivery CouponKind = "free_delivery"
	// CouponFreeItem zeroes the price of exactly one unit of the named item.
	CouponFreeItem CouponKind = "free_item"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is unknown or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its validity window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// Coupon is a validated coupon rule. Instruments are read-only for the
// client; usage counting happens server-side at redemption time.
type Coupon struct {
	Code        string
	Kind        CouponKind
	Value       decimal.Decimal
	FreeItemID  string
	Description string
	Active      bool
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	MaxUses     int
	Uses        int
}

// CouponRepository provides coupon rule lookup.
type CouponRepository interface {
	// FindByCode returns the coupon for the code (case-insensitive), or
	// ErrInvalidCoupon when no active coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}

// CouponValidator checks a coupon's liveness against the persisted catalog.
// Validation is read-only: it never consumes a use. Callers re-validate at
// redemption time because the two calls may be minutes apart.
type CouponValidator struct {
	repo CouponRepository
	now  func() time.Time
}

// NewCouponValidator creates a CouponValidator backed by the repository.
func NewCouponValidator(repo CouponRepository) *CouponValidator {
	return &CouponValidator{repo: repo, now: time.Now}
}

// Validate looks up the code and checks active status, validity window, and
// usage limit. An invalid instrument yields a descriptive error and leaves
// the caller's total untouched.
func (v *CouponValidator) Validate(ctx context.Context, code string) (*Coupon, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !c.Active {
		return nil, ErrInvalidCoupon
	}

	now := v.now()
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if c.MaxUses > 0 && c.Uses >= c.MaxUses {
		return nil, ErrCouponUsageLimitReached
	}

	return c, nil
}
