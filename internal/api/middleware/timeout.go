package middleware

import (
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// TimeoutWithExclusions returns a timeout middleware that skips paths
// containing any of excludePaths. Deployments outlive the default request
// timeout and websocket upgrades need the raw ResponseWriter.
func TimeoutWithExclusions(d time.Duration, excludePaths ...string) func(http.Handler) http.Handler {
	timeoutHandler := chimiddleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		limited := timeoutHandler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range excludePaths {
				if strings.Contains(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}
			limited.ServeHTTP(w, r)
		})
	}
}
