package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

const skipAccessLogKey contextKey = "skip_access_log"

// ProbeEndpoints are polled by orchestrators and scrapers and stay out of the
// access log unless asked for.
var ProbeEndpoints = []string{
	"/v1/health",
	"/v1/liveness",
	"/v1/readiness",
	"/metrics",
}

type HealthCheckFilter struct {
	endpoints       []string
	logHealthChecks bool
}

func NewHealthCheckFilter(logHealthChecks bool) *HealthCheckFilter {
	return &HealthCheckFilter{
		endpoints:       ProbeEndpoints,
		logHealthChecks: logHealthChecks,
	}
}

func (h *HealthCheckFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.logHealthChecks || !h.isProbe(r.URL.Path) {
			next.ServeHTTP(w, r)

			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), skipAccessLogKey, true)))
	})
}

func (h *HealthCheckFilter) isProbe(path string) bool {
	path = strings.TrimSuffix(path, "/")

	return slices.Contains(h.endpoints, path)
}

func ShouldSkipAccessLog(ctx context.Context) bool {
	skip, ok := ctx.Value(skipAccessLogKey).(bool)

	return ok && skip
}
