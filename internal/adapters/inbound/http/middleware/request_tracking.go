package middleware

import (
	"net/http"

	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDHeader     = "Request-Id"
	CorrelationIDHeader = "Correlation-Id"

	maxIDLength = 128
)

// RequestTracking echoes or mints request and correlation ids and stores them
// where the logger picks them up.
func RequestTracking() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := sanitizeID(r.Header.Get(CorrelationIDHeader))
			requestID := sanitizeID(r.Header.Get(RequestIDHeader))

			ctx := logger.WithCorrelationID(r.Context(), correlationID)
			ctx = logger.WithRequestID(ctx, requestID)

			w.Header().Set(CorrelationIDHeader, correlationID)
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sanitizeID(id string) string {
	if id == "" || len(id) > maxIDLength {
		return uuid.NewString()
	}

	return id
}
