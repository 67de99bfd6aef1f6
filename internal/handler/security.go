package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/halchash/storefront/internal/domain/auth"
)

// SecurityHandler authenticates admin requests via HMAC-SHA256 hashed API
// keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{apikeys: apikeys, pepper: pepper}
}

// Require wraps next so it only runs for requests carrying a valid API key in
// the X-API-Key header. The stored hash is re-compared in constant time;
// a repository returning a stale or wrong row must not authenticate.
func (s *SecurityHandler) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get("X-API-Key")
		if rawKey == "" {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		computed := auth.HashKey(rawKey, s.pepper)
		info, err := s.apikeys.FindByHash(r.Context(), computed)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		computedBytes, err := hex.DecodeString(computed)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		storedBytes, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(computedBytes, storedBytes) != 1 {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
