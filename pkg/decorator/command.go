package decorator

import (
	"context"
	"fmt"
	"strings"

	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Command any

	CommandHandler[C Command, R any] interface {
		Handle(context.Context, C) (R, error)
	}
)

// ApplyCommandDecorators wraps a handler so that logging sees the final
// outcome, metrics measure the traced call, and the span covers the handler.
func ApplyCommandDecorators[C Command, R any](
	handler CommandHandler[C, R],
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) CommandHandler[C, R] {
	return commandLoggingDecorator[C, R]{
		base: commandMetricsDecorator[C, R]{
			base: commandTracingDecorator[C, R]{
				base:           handler,
				tracerProvider: tracerProvider,
			},
			client: metricsClient,
		},
		logger: log,
	}
}

// generateActionName returns the bare type name of a command or query value.
func generateActionName(value any) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", value), "*")

	if index := strings.LastIndex(name, "."); index >= 0 {
		name = name[index+1:]
	}

	if index := strings.Index(name, "["); index >= 0 {
		name = name[:index]
	}

	return name
}
