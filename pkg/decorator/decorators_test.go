package decorator_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/architeacher/device-catalog/pkg/decorator"
	"github.com/architeacher/device-catalog/pkg/idempotency"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type (
	CreateWidget struct{ Name string }

	FindWidget struct{ ID string }

	recordedMetric struct {
		key        string
		attributes []attribute.KeyValue
	}

	recordingMetrics struct {
		mu       sync.Mutex
		counters []recordedMetric
		observed []recordedMetric
	}

	commandHandlerFunc func(context.Context, CreateWidget) (string, error)
	queryHandlerFunc   func(context.Context, FindWidget) (string, error)
)

func (f commandHandlerFunc) Handle(ctx context.Context, cmd CreateWidget) (string, error) {
	return f(ctx, cmd)
}

func (f queryHandlerFunc) Execute(ctx context.Context, query FindWidget) (string, error) {
	return f(ctx, query)
}

func (m *recordingMetrics) Inc(_ context.Context, key string, _ any, attributes ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters = append(m.counters, recordedMetric{key: key, attributes: attributes})
}

func (m *recordingMetrics) Observe(_ context.Context, key string, _ float64, attributes ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observed = append(m.observed, recordedMetric{key: key, attributes: attributes})
}

func (m *recordingMetrics) Handler() http.Handler { return http.NotFoundHandler() }

func (m *recordingMetrics) Shutdown(context.Context) error { return nil }

func newTracerProvider() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()

	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), recorder
}

func TestApplyCommandDecorators(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		handlerErr      error
		expectedOutcome string
		expectedLog     string
		expectedStatus  codes.Code
	}{
		{
			name:            "success",
			expectedOutcome: "success",
			expectedStatus:  codes.Unset,
		},
		{
			name:            "failure",
			handlerErr:      errors.New("storage offline"),
			expectedOutcome: "failure",
			expectedLog:     "command failed",
			expectedStatus:  codes.Error,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logBuffer := &bytes.Buffer{}
			metricsClient := &recordingMetrics{}
			tracerProvider, spans := newTracerProvider()

			handler := decorator.ApplyCommandDecorators[CreateWidget, string](
				commandHandlerFunc(func(context.Context, CreateWidget) (string, error) {
					return "created", tc.handlerErr
				}),
				logger.NewBufferedTestLogger(logBuffer),
				metricsClient,
				tracerProvider,
			)

			result, err := handler.Handle(context.Background(), CreateWidget{Name: "w"})

			require.ErrorIs(t, err, tc.handlerErr)
			require.Equal(t, "created", result)

			require.Len(t, metricsClient.counters, 1)
			require.Equal(t, "commands.total", metricsClient.counters[0].key)
			require.Contains(t, metricsClient.counters[0].attributes, attribute.String("action", "createwidget"))
			require.Contains(t, metricsClient.counters[0].attributes, attribute.String("outcome", tc.expectedOutcome))
			require.Len(t, metricsClient.observed, 1)
			require.Equal(t, "commands.duration.seconds", metricsClient.observed[0].key)

			ended := spans.Ended()
			require.Len(t, ended, 1)
			require.Equal(t, "command.CreateWidget", ended[0].Name())
			require.Equal(t, tc.expectedStatus, ended[0].Status().Code)

			if tc.expectedLog != "" {
				require.Contains(t, logBuffer.String(), tc.expectedLog)
				require.Contains(t, logBuffer.String(), "CreateWidget")
			}
		})
	}
}

func TestCommandLoggingIncludesIdempotencyKey(t *testing.T) {
	t.Parallel()

	logBuffer := &bytes.Buffer{}

	handler := decorator.ApplyCommandDecorators[CreateWidget, string](
		commandHandlerFunc(func(context.Context, CreateWidget) (string, error) {
			return "", errors.New("duplicate widget")
		}),
		logger.NewBufferedTestLogger(logBuffer),
		nil,
		nil,
	)

	ctx := idempotency.WithRequest(context.Background(), idempotency.Request{Key: "widget-create-0001", Method: "POST"})

	_, err := handler.Handle(ctx, CreateWidget{Name: "w"})

	require.Error(t, err)
	require.Contains(t, logBuffer.String(), `"idempotency_key":"widget-create-0001"`)
}

func TestApplyQueryDecorators(t *testing.T) {
	t.Parallel()

	logBuffer := &bytes.Buffer{}
	metricsClient := &recordingMetrics{}
	tracerProvider, spans := newTracerProvider()

	handler := decorator.ApplyQueryDecorators[FindWidget, string](
		queryHandlerFunc(func(context.Context, FindWidget) (string, error) {
			return "", errors.New("not found")
		}),
		logger.NewBufferedTestLogger(logBuffer),
		metricsClient,
		tracerProvider,
	)

	_, err := handler.Execute(context.Background(), FindWidget{ID: "1"})

	require.EqualError(t, err, "not found")
	require.Contains(t, logBuffer.String(), "query failed")
	require.Equal(t, "queries.total", metricsClient.counters[0].key)
	require.Contains(t, metricsClient.counters[0].attributes, attribute.String("action", "findwidget"))
	require.Equal(t, "query.FindWidget", spans.Ended()[0].Name())
}

func TestApplyQueryDecorators_NilCollaborators(t *testing.T) {
	t.Parallel()

	handler := decorator.ApplyQueryDecorators[FindWidget, string](
		queryHandlerFunc(func(context.Context, FindWidget) (string, error) {
			return "found", nil
		}),
		logger.NewTestLogger(),
		nil,
		nil,
	)

	result, err := handler.Execute(context.Background(), FindWidget{ID: "1"})

	require.NoError(t, err)
	require.Equal(t, "found", result)
}
