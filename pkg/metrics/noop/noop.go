// Package noop provides a metrics client that records nothing, used when
// metrics are disabled and in tests.
package noop

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
)

type (
	MetricsClient struct{}
)

func NewMetricsClient() MetricsClient {
	return MetricsClient{}
}

func (c MetricsClient) Inc(_ context.Context, _ string, _ any, _ ...attribute.KeyValue) {}

func (c MetricsClient) Observe(_ context.Context, _ string, _ float64, _ ...attribute.KeyValue) {}

func (c MetricsClient) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (c MetricsClient) Shutdown(_ context.Context) error {
	return nil
}
