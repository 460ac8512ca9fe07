package middleware

import (
	"net/http"
	"strings"
)

var (
	corsAllowedMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions, http.MethodHead,
	}, ", ")

	corsAllowedHeaders = strings.Join([]string{
		"Content-Type", RequestIDHeader, CorrelationIDHeader, "If-None-Match",
		"traceparent", "tracestate", "Idempotency-Key",
	}, ", ")

	corsExposedHeaders = strings.Join([]string{
		RequestIDHeader, CorrelationIDHeader, "RateLimit-Limit", "RateLimit-Remaining",
		"RateLimit-Reset", "ETag", "Location", "X-Cache", "Idempotent-Replayed",
	}, ", ")
)

// CORS answers cross-origin requests from allowedOrigins. "*" allows any
// origin. Requests without an Origin header pass through untouched.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin == "" || !originAllowed(allowedOrigins, origin) {
				next.ServeHTTP(w, r)

				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowedOrigins []string, origin string) bool {
	for _, allowed := range allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	return false
}
