// Package fulfillment resolves the delivery or collection fee for a checkout
// from the customer's fulfillment selection.
package fulfillment

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is the chosen fulfillment method.
type Method string

const (
	MethodDelivery Method = "delivery"
	MethodPickup   Method = "pickup"
)

var (
	// ErrNoZoneMatch is returned when no delivery zone covers the postcode.
	ErrNoZoneMatch = errors.New("postcode not covered by any delivery zone")
	// ErrNoCollectionPoint is returned when the selected collection point
	// does not exist or no point was selected.
	ErrNoCollectionPoint = errors.New("collection point not found")
	// ErrInvalidSelection is returned for a malformed fulfillment selection.
	ErrInvalidSelection = errors.New("invalid fulfillment selection")
)

// Selection is the customer's fulfillment choice. Exactly one of Postcode
// (delivery) or CollectionPointID (pickup) is meaningful, chosen by Method.
type Selection struct {
	Method            Method
	Postcode          string
	CollectionPointID string
	RequestedDate     time.Time
}

// Validate checks the method/field invariant.
func (s Selection) Validate() error {
	switch s.Method {
	case MethodDelivery:
		if s.Postcode == "" {
			return errors.Wrap(ErrInvalidSelection, "postcode required for delivery")
		}
	case MethodPickup:
		if s.CollectionPointID == "" {
			return errors.Wrap(ErrInvalidSelection, "collection point required for pickup")
		}
	default:
		return errors.Wrapf(ErrInvalidSelection, "unknown method %q", s.Method)
	}
	return nil
}

// Zone is a postcode-matched delivery-fee rule. Prefixes are compared
// against the normalized postcode, so "SW1" matches "sw1a 1aa".
type Zone struct {
	ID               string
	Name             string
	PostcodePrefixes []string
	DeliveryFee      decimal.Decimal
}

// Matches reports whether the zone covers the given postcode.
func (z Zone) Matches(postcode string) bool {
	norm := NormalizePostcode(postcode)
	if norm == "" {
		return false
	}
	for _, prefix := range z.PostcodePrefixes {
		if strings.HasPrefix(norm, NormalizePostcode(prefix)) {
			return true
		}
	}
	return false
}

// NormalizePostcode uppercases and strips all spaces.
func NormalizePostcode(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}

// CollectionPoint is a pickup location with its own collection fee.
type CollectionPoint struct {
	ID            string
	Name          string
	Address       string
	CollectionFee decimal.Decimal
}

// FeeResult is the outcome of fee resolution. When Valid is false the fee is
// undefined and checkout must not reach total reconciliation.
type FeeResult struct {
	Fee               decimal.Decimal
	Valid             bool
	ZoneID            string
	CollectionPointID string
}

// ZoneRepository looks up delivery zones.
type ZoneRepository interface {
	// MatchPostcode returns the zone covering the postcode, or ErrNoZoneMatch.
	MatchPostcode(ctx context.Context, postcode string) (*Zone, error)
}

// CollectionPointRepository looks up pickup locations.
type CollectionPointRepository interface {
	GetByID(ctx context.Context, id string) (*CollectionPoint, error)
	List(ctx context.Context) ([]CollectionPoint, error)
}

// Resolver resolves fees against the persisted zone and collection point
// catalogs.
type Resolver struct {
	zones  ZoneRepository
	points CollectionPointRepository
}

// NewResolver creates a Resolver backed by the given repositories.
func NewResolver(zones ZoneRepository, points CollectionPointRepository) *Resolver {
	return &Resolver{zones: zones, points: points}
}

// Resolve validates the selection and returns the applicable fee.
// A selection that cannot be matched yields an error, never a valid result
// with a guessed fee.
func (r *Resolver) Resolve(ctx context.Context, sel Selection) (FeeResult, error) {
	if err := sel.Validate(); err != nil {
		return FeeResult{}, err
	}

	switch sel.Method {
	case MethodDelivery:
		zone, err := r.zones.MatchPostcode(ctx, sel.Postcode)
		if err != nil {
			if errors.Is(err, ErrNoZoneMatch) {
				return FeeResult{}, ErrNoZoneMatch
			}
			return FeeResult{}, errors.Wrap(err, "match postcode")
		}
		return FeeResult{Fee: zone.DeliveryFee, Valid: true, ZoneID: zone.ID}, nil

	case MethodPickup:
		point, err := r.points.GetByID(ctx, sel.CollectionPointID)
		if err != nil {
			if errors.Is(err, ErrNoCollectionPoint) {
				return FeeResult{}, ErrNoCollectionPoint
			}
			return FeeResult{}, errors.Wrap(err, "get collection point")
		}
		return FeeResult{Fee: point.CollectionFee, Valid: true, CollectionPointID: point.ID}, nil
	}

	return FeeResult{}, ErrInvalidSelection
}
