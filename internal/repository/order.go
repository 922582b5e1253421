package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/discount"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
	"github.com/feastbox/checkout-api/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, subtotal, fee, subscription_discount, coupon_discount,
		gift_card_applied, total_minor_units, currency, coupon_code, gift_card_code,
		fulfillment_method, postcode, collection_point_id, requested_date, charge_ref, manual)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, position, item_id, name, unit_price, quantity, kind, price_overridden)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertRedemptionSQL = `INSERT INTO redemptions (order_id, instrument, code, amount)
		VALUES ($1, $2, $3, $4)`

	// Compare-and-set: only succeeds while the card is still active and holds
	// enough balance. A concurrent redemption makes this affect zero rows.
	redeemGiftCardSQL = `UPDATE gift_cards
		SET balance = balance - $2,
		    status = CASE WHEN balance - $2 <= 0 THEN 'redeemed' ELSE 'active' END
		WHERE code = $1 AND status = 'active' AND balance >= $2`

	consumeCouponSQL = `UPDATE coupons SET uses = uses + 1
		WHERE UPPER(code) = UPPER($1) AND active = TRUE AND (max_uses = 0 OR uses < max_uses)`

	getOrderSQL = `SELECT id, subtotal, fee, subscription_discount, coupon_discount,
		gift_card_applied, total_minor_units, currency, coupon_code, gift_card_code,
		fulfillment_method, postcode, collection_point_id, requested_date, charge_ref, manual, created_at
		FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT id, subtotal, fee, subscription_discount, coupon_discount,
		gift_card_applied, total_minor_units, currency, coupon_code, gift_card_code,
		fulfillment_method, postcode, collection_point_id, requested_date, charge_ref, manual, created_at
		FROM orders ORDER BY created_at DESC LIMIT $1`

	getOrderItemsSQL = `SELECT item_id, name, unit_price, quantity, kind, price_overridden
		FROM order_items WHERE order_id = $1 ORDER BY position`

	getRedemptionsSQL = `SELECT instrument, code, amount
		FROM redemptions WHERE order_id = $1 ORDER BY id`
)

// ErrOrderNotFound is returned when a requested order does not exist.
var ErrOrderNotFound = errors.New("order not found")

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool DB
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool DB) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order, its line items, and its redemption records, and
// consumes the redeemed instruments, all in one transaction. A gift card
// whose balance was consumed concurrently makes the whole transaction fail
// with discount.ErrGiftCardConflict; a coupon past its usage limit fails with
// discount.ErrCouponUsageLimitReached.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.Subtotal, o.Fee, o.SubscriptionDiscount, o.CouponDiscount,
		o.GiftCardApplied, o.TotalMinorUnits, o.Currency, o.CouponCode, o.GiftCardCode,
		string(o.Fulfillment.Method), o.Fulfillment.Postcode, o.Fulfillment.CollectionPointID,
		o.Fulfillment.RequestedDate, o.ChargeRef, o.Manual,
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	for i, it := range o.Items {
		_, err = tx.Exec(ctx, insertOrderItemSQL,
			o.ID, i, it.ItemID, it.Name, it.UnitPrice, it.Quantity, it.Kind, it.PriceOverridden,
		)
		if err != nil {
			return fmt.Errorf("inserting order item %q: %w", it.ItemID, err)
		}
	}

	for _, red := range o.Redemptions {
		_, err = tx.Exec(ctx, insertRedemptionSQL, o.ID, red.Instrument, red.Code, red.Amount)
		if err != nil {
			return fmt.Errorf("inserting redemption for %q: %w", red.Code, err)
		}

		switch red.Instrument {
		case order.InstrumentGiftCard:
			tag, err := tx.Exec(ctx, redeemGiftCardSQL, red.Code, red.Amount)
			if err != nil {
				return fmt.Errorf("redeeming gift card: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return discount.ErrGiftCardConflict
			}
		case order.InstrumentCoupon:
			tag, err := tx.Exec(ctx, consumeCouponSQL, red.Code)
			if err != nil {
				return fmt.Errorf("consuming coupon %q: %w", red.Code, err)
			}
			if tag.RowsAffected() == 0 {
				return discount.ErrCouponUsageLimitReached
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order with its line items and redemption records.
// Returns ErrOrderNotFound when it does not exist.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}

	redRows, err := r.pool.Query(ctx, getRedemptionsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting redemptions for order %q: %w", id, err)
	}
	o.Redemptions, err = pgx.CollectRows(redRows, scanRedemption)
	if err != nil {
		return nil, fmt.Errorf("getting redemptions for order %q: %w", id, err)
	}

	return &o, nil
}

// List returns the most recent orders without their line items.
func (r *OrderRepository) List(ctx context.Context, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		method string
	)
	err := row.Scan(
		&o.ID, &o.Subtotal, &o.Fee, &o.SubscriptionDiscount, &o.CouponDiscount,
		&o.GiftCardApplied, &o.TotalMinorUnits, &o.Currency, &o.CouponCode, &o.GiftCardCode,
		&method, &o.Fulfillment.Postcode, &o.Fulfillment.CollectionPointID,
		&o.Fulfillment.RequestedDate, &o.ChargeRef, &o.Manual, &o.CreatedAt,
	)
	o.Fulfillment.Method = fulfillment.Method(method)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it    order.Item
		price decimal.Decimal
	)
	err := row.Scan(&it.ItemID, &it.Name, &price, &it.Quantity, &it.Kind, &it.PriceOverridden)
	it.UnitPrice = price
	return it, err
}

func scanRedemption(row pgx.CollectableRow) (order.Redemption, error) {
	var (
		red    order.Redemption
		amount decimal.Decimal
	)
	err := row.Scan(&red.Instrument, &red.Code, &amount)
	red.Amount = amount
	return red, err
}
