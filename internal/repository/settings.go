package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/order"
)

const getSettingsSQL = `SELECT subscription_enabled, subscription_percent
	FROM settings WHERE id = 1`

var _ order.SettingsSource = (*SettingsRepository)(nil)

// SettingsRepository reads the single-row storefront settings table.
type SettingsRepository struct {
	pool DB
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool DB) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// SubscriptionDiscount returns the storefront subscription discount percent
// and whether it is currently enabled.
func (r *SettingsRepository) SubscriptionDiscount(ctx context.Context) (decimal.Decimal, bool, error) {
	var (
		enabled bool
		percent decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, getSettingsSQL).Scan(&enabled, &percent)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("reading settings: %w", err)
	}
	return percent, enabled, nil
}
