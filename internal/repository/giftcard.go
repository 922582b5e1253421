package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/discount"
)

const getGiftCardByCodeSQL = `SELECT id, code, balance, status
	FROM gift_cards WHERE code = $1`

var _ discount.GiftCardRepository = (*GiftCardRepository)(nil)

// GiftCardRepository implements discount.GiftCardRepository backed by
// PostgreSQL. Balance decrements happen inside the order transaction, not
// here.
type GiftCardRepository struct {
	pool DB
}

// NewGiftCardRepository returns a GiftCardRepository that uses the given pool.
func NewGiftCardRepository(pool DB) *GiftCardRepository {
	return &GiftCardRepository{pool: pool}
}

// FindByCode looks up a gift card by its code. Returns
// discount.ErrInvalidGiftCard when no such card exists.
func (r *GiftCardRepository) FindByCode(ctx context.Context, code string) (*discount.GiftCard, error) {
	rows, err := r.pool.Query(ctx, getGiftCardByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding gift card by code: %w", err)
	}

	gc, err := pgx.CollectExactlyOneRow(rows, scanGiftCard)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrInvalidGiftCard
		}
		return nil, fmt.Errorf("finding gift card by code: %w", err)
	}
	return &gc, nil
}

func scanGiftCard(row pgx.CollectableRow) (discount.GiftCard, error) {
	var (
		gc      discount.GiftCard
		balance decimal.Decimal
		status  string
	)
	err := row.Scan(&gc.ID, &gc.Code, &balance, &status)
	gc.Balance = balance
	gc.Status = discount.GiftCardStatus(status)
	return gc, err
}
