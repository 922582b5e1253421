package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/feastbox/checkout-api/internal/domain/auth"
)

// APIKeyAuth guards admin routes. Keys are presented in the X-API-Key header
// and stored as HMAC-SHA256 hashes, so a database leak does not leak usable
// keys.
type APIKeyAuth struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAPIKeyAuth creates an APIKeyAuth with the given key repository and HMAC
// pepper.
func NewAPIKeyAuth(apikeys auth.Repository, pepper []byte) *APIKeyAuth {
	return &APIKeyAuth{apikeys: apikeys, pepper: pepper}
}

// Middleware rejects requests without a valid API key. Rejection happens
// before any computation or side effect.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "api key required"})
			return
		}

		mac := hmac.New(sha256.New, a.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := a.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already succeeded.
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		if !info.HasScope(auth.ScopeAdmin) {
			respondJSON(w, http.StatusForbidden, errorResponse{Error: "insufficient scope"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
