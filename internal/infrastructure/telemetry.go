package infrastructure

import (
	"context"
	"fmt"

	"github.com/architeacher/device-catalog/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type ShutdownFunc func(ctx context.Context) error

// NewTracerProvider exports spans over OTLP/gRPC when tracing is enabled and
// an endpoint is configured. Otherwise it returns a noop provider.
func NewTracerProvider(ctx context.Context, app config.App, cfg config.Telemetry) (otelTrace.TracerProvider, ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled || !cfg.Traces.Enabled || cfg.OTLPEndpoint == "" {
		return NewNoopTracerProvider(), func(context.Context) error { return nil }, nil
	}

	options := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, options...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(app.ServiceName),
			semconv.ServiceVersion(app.ServiceVersion),
			attribute.String("deployment.environment.name", app.Env.Name),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Traces.SamplerRatio))),
	)

	otel.SetTracerProvider(tp)

	return tp, tp.Shutdown, nil
}

func NewNoopTracerProvider() otelTrace.TracerProvider {
	return noop.NewTracerProvider()
}
