package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/architeacher/device-catalog/pkg/logger"
)

// Recovery returns a middleware that turns a handler panic into a 500.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						// the client connection is gone, let net/http abort it
						panic(rvr)
					}

					var errMsg string
					switch v := rvr.(type) {
					case string:
						errMsg = v
					case error:
						errMsg = v.Error()
					default:
						errMsg = fmt.Sprintf("%v", v)
					}

					reqLogger := log.WithContext(r.Context())
					reqLogger.Error().
						Str("error", errMsg).
						Str("stack", string(debug.Stack())).
						Str("path", r.URL.Path).
						Str("method", r.Method).
						Msg("panic recovered")

					w.Header().Set("Content-Type", "application/json")

					if r.Header.Get("Connection") != "Upgrade" {
						w.WriteHeader(http.StatusInternalServerError)
					}

					_ = json.NewEncoder(w).Encode(map[string]any{
						"code":      "INTERNAL_ERROR",
						"message":   "internal server error",
						"details":   []string{},
						"timestamp": time.Now().UTC(),
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
