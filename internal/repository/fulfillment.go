package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
)

const (
	listZonesSQL = `SELECT id, name, postcode_prefixes, delivery_fee
		FROM delivery_zones WHERE active = TRUE ORDER BY id`

	getCollectionPointSQL = `SELECT id, name, address, collection_fee
		FROM collection_points WHERE id = $1 AND active = TRUE`

	listCollectionPointsSQL = `SELECT id, name, address, collection_fee
		FROM collection_points WHERE active = TRUE ORDER BY name`
)

var _ fulfillment.ZoneRepository = (*ZoneRepository)(nil)

// ZoneRepository implements fulfillment.ZoneRepository backed by PostgreSQL.
type ZoneRepository struct {
	pool DB
}

// NewZoneRepository returns a ZoneRepository that uses the given pool.
func NewZoneRepository(pool DB) *ZoneRepository {
	return &ZoneRepository{pool: pool}
}

// MatchPostcode returns the zone covering the postcode. When several zones
// match, the one with the longest matching prefix wins. Returns
// fulfillment.ErrNoZoneMatch when no active zone covers the postcode.
func (r *ZoneRepository) MatchPostcode(ctx context.Context, postcode string) (*fulfillment.Zone, error) {
	rows, err := r.pool.Query(ctx, listZonesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing delivery zones: %w", err)
	}
	zones, err := pgx.CollectRows(rows, scanZone)
	if err != nil {
		return nil, fmt.Errorf("listing delivery zones: %w", err)
	}

	norm := fulfillment.NormalizePostcode(postcode)
	var (
		best    *fulfillment.Zone
		bestLen int
	)
	for i := range zones {
		for _, prefix := range zones[i].PostcodePrefixes {
			p := fulfillment.NormalizePostcode(prefix)
			if p == "" || len(p) < bestLen {
				continue
			}
			if len(norm) >= len(p) && norm[:len(p)] == p {
				best = &zones[i]
				bestLen = len(p)
			}
		}
	}
	if best == nil {
		return nil, fulfillment.ErrNoZoneMatch
	}
	return best, nil
}

func scanZone(row pgx.CollectableRow) (fulfillment.Zone, error) {
	var (
		z   fulfillment.Zone
		fee decimal.Decimal
	)
	err := row.Scan(&z.ID, &z.Name, &z.PostcodePrefixes, &fee)
	z.DeliveryFee = fee
	return z, err
}

var _ fulfillment.CollectionPointRepository = (*CollectionPointRepository)(nil)

// CollectionPointRepository implements fulfillment.CollectionPointRepository
// backed by PostgreSQL.
type CollectionPointRepository struct {
	pool DB
}

// NewCollectionPointRepository returns a CollectionPointRepository that uses
// the given pool.
func NewCollectionPointRepository(pool DB) *CollectionPointRepository {
	return &CollectionPointRepository{pool: pool}
}

// GetByID returns a single active collection point. Returns
// fulfillment.ErrNoCollectionPoint when it does not exist.
func (r *CollectionPointRepository) GetByID(ctx context.Context, id string) (*fulfillment.CollectionPoint, error) {
	rows, err := r.pool.Query(ctx, getCollectionPointSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting collection point %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanCollectionPoint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fulfillment.ErrNoCollectionPoint
		}
		return nil, fmt.Errorf("getting collection point %q: %w", id, err)
	}
	return &p, nil
}

// List returns all active collection points ordered by name.
func (r *CollectionPointRepository) List(ctx context.Context) ([]fulfillment.CollectionPoint, error) {
	rows, err := r.pool.Query(ctx, listCollectionPointsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing collection points: %w", err)
	}
	return pgx.CollectRows(rows, scanCollectionPoint)
}

func scanCollectionPoint(row pgx.CollectableRow) (fulfillment.CollectionPoint, error) {
	var (
		p   fulfillment.CollectionPoint
		fee decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Address, &fee)
	p.CollectionFee = fee
	return p, err
}
