package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/catalog"
)

const (
	listCatalogItemsSQL = `SELECT id, name, price, kind, category, contents
		FROM catalog_items WHERE active = TRUE ORDER BY id`

	getCatalogItemsByIDsSQL = `SELECT id, name, price, kind, category, contents
		FROM catalog_items WHERE active = TRUE AND id = ANY($1)`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool DB
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool DB) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// List returns all active catalog items ordered by ID.
func (r *CatalogRepository) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, listCatalogItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing catalog items: %w", err)
	}
	return pgx.CollectRows(rows, scanCatalogItem)
}

// GetByIDs returns active catalog items matching any of the given IDs.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getCatalogItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting catalog items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanCatalogItem)
}

func scanCatalogItem(row pgx.CollectableRow) (catalog.Item, error) {
	var (
		it    catalog.Item
		price decimal.Decimal
	)
	err := row.Scan(&it.ID, &it.Name, &price, &it.Kind, &it.Category, &it.Contents)
	it.Price = price
	return it, err
}
