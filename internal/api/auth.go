package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireAPIKey validates the service key on every request. Clients
// send it either as X-API-Key or as a Bearer token; both carry the same
// secret. Keys are compared as SHA-256 digests in constant time.
func (s *Server) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled {
			next.ServeHTTP(w, r)
			return
		}

		key := extractAPIKey(r)
		if key == "" {
			WriteJSONError(w, "missing API key", http.StatusUnauthorized)
			return
		}
		hash := hashKey(key)
		if subtle.ConstantTimeCompare(hash[:], s.apiKeyHash[:]) != 1 {
			WriteJSONError(w, "invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func hashKey(key string) [32]byte {
	return sha256.Sum256([]byte(key))
}

// extractAPIKey reads X-API-Key first, then the Authorization header.
func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	return extractBearerToken(r)
}

// extractBearerToken pulls the token out of "Authorization: Bearer x".
// The scheme is matched case-insensitively.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 {
		return ""
	}
	if !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
