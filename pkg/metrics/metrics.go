package metrics

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

type (
	// Client records counters and duration observations. Attributes become
	// labels; every call for one key must use the same attribute keys.
	Client interface {
		Inc(ctx context.Context, key string, value any, attributes ...attribute.KeyValue)
		Observe(ctx context.Context, key string, value float64, attributes ...attribute.KeyValue)
		Handler() http.Handler
		Shutdown(ctx context.Context) error
	}
)

// Attribute keys shared by the HTTP middleware and the handler decorators.
const (
	AttrAction  = attribute.Key("action")
	AttrOutcome = attribute.Key("outcome")
	AttrMethod  = attribute.Key("method")
	AttrRoute   = attribute.Key("route")
	AttrStatus  = attribute.Key("status")

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// SanitizeName maps a dotted or dashed key onto the metric name alphabet.
func SanitizeName(key string) string {
	var b strings.Builder

	b.Grow(len(key))

	for index, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && index > 0:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return b.String()
}

// Outcome returns the outcome attribute for an operation result.
func Outcome(err error) attribute.KeyValue {
	if err != nil {
		return AttrOutcome.String(OutcomeFailure)
	}

	return AttrOutcome.String(OutcomeSuccess)
}
