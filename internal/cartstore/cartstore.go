// Package cartstore keeps draft carts in Redis between requests, keyed by
// browser session. Carts expire on their own; checkout reads the cart and
// deletes it once the order is placed.
package cartstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/feastbox/checkout-api/internal/domain/cart"
)

// ErrNotFound is returned when no draft cart exists for the session.
var ErrNotFound = errors.New("cart not found")

const defaultTTL = 24 * time.Hour

// Store persists draft carts in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Store with the default cart TTL.
func New(client *redis.Client) *Store {
	return &Store{client: client, ttl: defaultTTL}
}

// Save stores the cart lines for the session and resets the TTL.
func (s *Store) Save(ctx context.Context, session string, items []cart.LineItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}
	if err := s.client.Set(ctx, key(session), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Load returns the draft cart for the session, or ErrNotFound.
func (s *Store) Load(ctx context.Context, session string) ([]cart.LineItem, error) {
	data, err := s.client.Get(ctx, key(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var items []cart.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart")
	}
	return items, nil
}

// Delete removes the draft cart for the session.
func (s *Store) Delete(ctx context.Context, session string) error {
	if err := s.client.Del(ctx, key(session)).Err(); err != nil {
		return errors.Wrap(err, "redis delete")
	}
	return nil
}

func key(session string) string {
	return "cart:" + session
}
