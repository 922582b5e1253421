// Package auth holds the API key identity model for the admin surface.
package auth

import "context"

// ScopeAdmin grants access to the admin routes: manual orders, order
// lookup, and listing.
const ScopeAdmin = "admin"

// APIKeyInfo is a validated API key: its identity and the scopes it grants.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants the named scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
