package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/homeport/stackpilot/internal/pkg/httputil"
)

// TokenAuth requires `Authorization: Bearer <token>` on every request. The
// websocket route may pass the token as the `token` query parameter since
// browsers cannot set headers on upgrade requests. An empty token disables
// the check.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := ""
			if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				presented = strings.TrimPrefix(authHeader, "Bearer ")
			} else if q := r.URL.Query().Get("token"); q != "" && strings.Contains(r.URL.Path, "/ws/") {
				presented = q
			}

			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				httputil.Unauthorized(w, r, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
