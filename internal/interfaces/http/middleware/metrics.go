package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	prom "github.com/turtacn/fluoric/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request counts and latencies labelled by the matched
// route pattern. Unmatched requests are labelled "unmatched".
func Metrics(m *prom.AppMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPActiveRequests.WithLabelValues().Inc()
			defer m.HTTPActiveRequests.WithLabelValues().Dec()

			wrapped := newWrappedResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			prom.RecordHTTPRequest(m, r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}
