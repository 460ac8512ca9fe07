package middleware

import (
	"net/http"
	"time"

	"github.com/architeacher/device-catalog/pkg/logger"
)

// AccessLogger writes one structured line per request, at warn for 4xx and
// error for 5xx responses.
func AccessLogger(log logger.Logger, includeQueryParams bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ShouldSkipAccessLog(r.Context()) {
				next.ServeHTTP(w, r)

				return
			}

			start := time.Now()
			wrapped := newStatusRecorder(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			reqLogger := log.WithContext(r.Context()).
				With().
				Str("component", "http").
				Logger()

			event := reqLogger.Info()
			if wrapped.statusCode >= http.StatusInternalServerError {
				event = reqLogger.Error()
			} else if wrapped.statusCode >= http.StatusBadRequest {
				event = reqLogger.Warn()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Str("proto", r.Proto).
				Str("host", r.Host).
				Int("status", wrapped.statusCode).
				Uint64("bytes", wrapped.bytesWritten).
				Int64("duration_ms", duration.Milliseconds())

			if route := routePattern(r); route != "" {
				event.Str("route", route)
			}

			if includeQueryParams && r.URL.RawQuery != "" {
				event.Str("query", r.URL.RawQuery)
			}

			if referer := r.Referer(); referer != "" {
				event.Str("referer", referer)
			}

			event.Send()
		})
	}
}
