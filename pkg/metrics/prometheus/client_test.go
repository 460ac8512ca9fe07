package prometheus_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/architeacher/device-catalog/pkg/metrics"
	"github.com/architeacher/device-catalog/pkg/metrics/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func scrape(t *testing.T, client *prometheus.MetricsClient) string {
	t.Helper()

	recorder := httptest.NewRecorder()
	client.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)

	body, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)

	return string(body)
}

func TestMetricsClient_Inc(t *testing.T) {
	t.Parallel()

	client := prometheus.NewMetricsClient("device-catalog")
	ctx := context.Background()

	client.Inc(ctx, "commands.total", 1, metrics.AttrAction.String("createdevice"), metrics.Outcome(nil))
	client.Inc(ctx, "commands.total", int64(2), metrics.Outcome(nil), metrics.AttrAction.String("createdevice"))

	body := scrape(t, client)

	require.Contains(t, body, `device_catalog_commands_total{action="createdevice",outcome="success"} 3`)
}

func TestMetricsClient_Observe(t *testing.T) {
	t.Parallel()

	client := prometheus.NewMetricsClient("svc", prometheus.WithBuckets([]float64{0.1, 1}))

	client.Observe(context.Background(), "request.duration.seconds", 0.05, metrics.AttrRoute.String("/v1/devices"))

	body := scrape(t, client)

	require.Contains(t, body, `svc_request_duration_seconds_bucket{route="/v1/devices",le="0.1"} 1`)
	require.Contains(t, body, `svc_request_duration_seconds_count{route="/v1/devices"} 1`)
}

func TestMetricsClient_ReportsMismatchedLabels(t *testing.T) {
	t.Parallel()

	var reported []error

	client := prometheus.NewMetricsClient("svc", prometheus.WithErrorHandler(func(err error) {
		reported = append(reported, err)
	}))
	ctx := context.Background()

	client.Inc(ctx, "events", 1, attribute.String("kind", "a"))
	client.Inc(ctx, "events", 1, attribute.String("other", "b"))
	client.Inc(ctx, "events", "not a number")
	client.Inc(ctx, "events", -1, attribute.String("kind", "a"))

	require.Len(t, reported, 3)
	require.Contains(t, scrape(t, client), `svc_events{kind="a"} 1`)
}

func TestMetricsClient_Shutdown(t *testing.T) {
	t.Parallel()

	require.NoError(t, prometheus.NewMetricsClient("svc").Shutdown(context.Background()))
}
