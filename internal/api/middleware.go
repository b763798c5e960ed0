// Package api implements the Raido REST API using chi.
package api

import (
	"net/http"
	"strings"
)

const defaultOwner = "local"

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid
// "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ownerID resolves the acting user. Single-user deployments run without
// the header and share the "local" owner.
func ownerID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Owner-Id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(r.URL.Query().Get("owner")); id != "" {
		return id
	}
	return defaultOwner
}
