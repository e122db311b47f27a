package middleware

import (
	"crypto/subtle"
	"net/http"

	"stay-escrow/pkg/utils"
)

// APIKey guards the admin surface (dispute decisions, reconciliation)
// with a static key in the X-API-Key header.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				utils.ResponseForbidden(w, "Admin API is not configured")
				return
			}

			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				utils.ResponseUnauthorized(w, "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
