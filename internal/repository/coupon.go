package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/discount"
)

const getCouponByCodeSQL = `SELECT code, kind, value, free_item_id, active,
	valid_from, valid_until, max_uses, uses
	FROM coupons WHERE UPPER(code) = UPPER($1)`

var _ discount.CouponRepository = (*CouponRepository)(nil)

// CouponRepository implements discount.CouponRepository backed by PostgreSQL.
// Eligibility (active flag, validity window, usage limit) is judged by the
// domain validator, not here.
type CouponRepository struct {
	pool DB
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool DB) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive). Returns
// discount.ErrInvalidCoupon when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*discount.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (discount.Coupon, error) {
	var (
		c          discount.Coupon
		kind       string
		value      decimal.Decimal
		validFrom  *time.Time
		validUntil *time.Time
		maxUses    int32
		uses       int32
	)
	err := row.Scan(
		&c.Code, &kind, &value, &c.FreeItemID, &c.Active,
		&validFrom, &validUntil, &maxUses, &uses,
	)
	c.Kind = discount.CouponKind(kind)
	c.Value = value
	c.ValidFrom = validFrom
	c.ValidUntil = validUntil
	c.MaxUses = int(maxUses)
	c.Uses = int(uses)
	return c, err
}
