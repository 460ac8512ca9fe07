package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		level       string
		expectDebug bool
		expectInfo  bool
		expectError bool
	}{
		{name: "debug", level: logger.LogLevelDebug, expectDebug: true, expectInfo: true, expectError: true},
		{name: "info", level: logger.LogLevelInfo, expectInfo: true, expectError: true},
		{name: "warning alias", level: logger.LogLevelWarning, expectError: true},
		{name: "error", level: logger.LogLevelError, expectError: true},
		{name: "mixed case", level: " DEBUG ", expectDebug: true, expectInfo: true, expectError: true},
		{name: "unknown defaults to info", level: "verbose", expectInfo: true, expectError: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.NewWithWriter(tc.level, logger.JSONLoggingFormat, &buf)

			log.Debug().Msg("debug entry")
			log.Info().Msg("info entry")
			log.Error().Msg("error entry")

			output := buf.String()
			require.Equal(t, tc.expectDebug, strings.Contains(output, "debug entry"))
			require.Equal(t, tc.expectInfo, strings.Contains(output, "info entry"))
			require.Equal(t, tc.expectError, strings.Contains(output, "error entry"))
		})
	}
}

func TestNewWithWriterConsoleFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.LogLevelInfo, "console", &buf)

	log.Info().Str("device_id", "abc").Msg("device created")

	require.Contains(t, buf.String(), "device created")
	require.Contains(t, buf.String(), "device_id")
	require.Contains(t, buf.String(), "abc")
	require.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name              string
		setupContext      func() context.Context
		expectedRequestID string
		hasRequestID      bool
	}{
		{
			name: "adds request ID to logger",
			setupContext: func() context.Context {
				return context.WithValue(context.Background(), logger.ContextKeyRequestID, "test-request-123")
			},
			expectedRequestID: "test-request-123",
			hasRequestID:      true,
		},
		{
			name: "handles empty context",
			setupContext: func() context.Context {
				return context.Background()
			},
			hasRequestID: false,
		},
		{
			name: "handles empty request ID",
			setupContext: func() context.Context {
				return context.WithValue(context.Background(), logger.ContextKeyRequestID, "")
			},
			hasRequestID: false,
		},
		{
			name: "reads ids stored by the helpers",
			setupContext: func() context.Context {
				return logger.WithCorrelationID(logger.WithRequestID(context.Background(), "req-1"), "corr-1")
			},
			expectedRequestID: "req-1",
			hasRequestID:      true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.NewWithWriter(logger.LogLevelInfo, logger.JSONLoggingFormat, &buf)

			ctx := tc.setupContext()
			ctxLogger := log.WithContext(ctx)

			ctxLogger.Info().Msg("test message")

			if tc.hasRequestID {
				var logEntry map[string]any
				err := json.Unmarshal(buf.Bytes(), &logEntry)
				require.NoError(t, err)
				require.Equal(t, tc.expectedRequestID, logEntry["request_id"])
			}
		})
	}
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := logger.WithRequestID(context.Background(), "req-42")
	ctx = logger.WithCorrelationID(ctx, "corr-42")

	require.Equal(t, "req-42", logger.RequestIDFromContext(ctx))
	require.Equal(t, "corr-42", logger.CorrelationIDFromContext(ctx))
	require.Empty(t, logger.RequestIDFromContext(context.Background()))
}

func TestWithContextChainsDirectly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.LogLevelDebug, logger.JSONLoggingFormat, &buf)

	ctx := logger.WithRequestID(context.Background(), "req-7")
	ctx = logger.WithCorrelationID(ctx, "corr-7")

	log.WithContext(ctx).Warn().Msg("store slow")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "req-7", entry["request_id"])
	require.Equal(t, "corr-7", entry["correlation_id"])
}
