package middleware

import (
	"net/http"

	"github.com/homeport/stackpilot/internal/pkg/httputil"
)

// DefaultMaxBodySize is the default maximum request body size. The API takes
// no request bodies beyond small JSON options.
const DefaultMaxBodySize = 64 << 10

// BodyLimit returns a middleware that limits the request body size.
// If maxBytes is 0, DefaultMaxBodySize is used.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				if r.ContentLength > maxBytes {
					httputil.RequestTooLarge(w, r, maxBytes)
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}

			next.ServeHTTP(w, r)
		})
	}
}
