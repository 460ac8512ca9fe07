package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/architeacher/device-catalog/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	httpRequestTotal    = "http.requests.total"
	httpRequestDuration = "http.request.duration.seconds"
	httpResponseSize    = "http.response.size.bytes"

	unmatchedRoute = "unmatched"
)

type MetricsMiddleware struct {
	metricsClient metrics.Client
}

func NewMetricsMiddleware(metricsClient metrics.Client) *MetricsMiddleware {
	return &MetricsMiddleware{
		metricsClient: metricsClient,
	}
}

// Middleware labels requests by route pattern rather than raw path so device
// ids do not become label values.
func (m *MetricsMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		wrapped := newStatusRecorder(w)

		next.ServeHTTP(wrapped, r)

		route := routePattern(r)
		if route == "" {
			route = unmatchedRoute
		}

		m.recordHTTPRequest(
			r.Context(),
			r.Method,
			route,
			wrapped.statusCode,
			time.Since(startTime),
			wrapped.bytesWritten,
		)
	})
}

func (m *MetricsMiddleware) recordHTTPRequest(
	ctx context.Context,
	method, route string,
	statusCode int,
	duration time.Duration,
	responseSize uint64,
) {
	attrs := []attribute.KeyValue{
		metrics.AttrMethod.String(method),
		metrics.AttrRoute.String(route),
		metrics.AttrStatus.String(strconv.Itoa(statusCode)),
	}

	m.metricsClient.Inc(ctx, httpRequestTotal, int64(1), attrs...)
	m.metricsClient.Observe(ctx, httpRequestDuration, duration.Seconds(), attrs...)
	m.metricsClient.Observe(ctx, httpResponseSize, float64(responseSize), attrs...)
}

// routePattern returns the chi pattern that matched r, or "" outside a chi
// router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}

	return ""
}
