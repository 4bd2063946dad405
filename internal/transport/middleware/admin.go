package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AdminTokenHeader carries the shared secret for maintenance endpoints.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken guards maintenance endpoints with a shared secret.
// An empty token disables the endpoints entirely.
func RequireAdminToken(token string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "admin endpoints disabled", http.StatusForbidden)
				return
			}
			got := r.Header.Get(AdminTokenHeader)
			if got == "" {
				http.Error(w, "missing admin token", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				http.Error(w, "invalid admin token", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
