package middleware

import (
	"net/http"
	"time"

	"github.com/friendzone/backend/internal/metrics"
)

// Metrics records the latency of every request. Only paths in routes are
// used as labels; anything else is grouped under "other" to bound cardinality.
func Metrics(reg *metrics.Registry, routes []string) func(http.Handler) http.Handler {
	known := make(map[string]bool, len(routes))
	for _, route := range routes {
		known[route] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped, ok := w.(*responseWriter)
			if !ok {
				wrapped = &responseWriter{ResponseWriter: w}
			}

			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if !known[path] {
				path = "other"
			}
			reg.ObserveHTTP(r.Method, path, wrapped.Status(), time.Since(start).Seconds())
		})
	}
}
