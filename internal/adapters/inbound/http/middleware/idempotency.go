package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/pkg/idempotency"
	"github.com/architeacher/device-catalog/pkg/logger"
)

// maxFingerprintBody bounds how much of a request body is buffered to
// fingerprint it.
const maxFingerprintBody = 1 << 20

var perResponseHeaders = []string{
	"Content-Encoding",
	"Content-Length",
	"Vary",
	RequestIDHeader,
	CorrelationIDHeader,
}

// Idempotency replays the stored response of a successful request when the
// same key is sent again for the same method and path. A key reused with a
// different body is rejected with 422.
func Idempotency(
	cache ports.IdempotencyCache,
	cfg config.Idempotency,
	log logger.Logger,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !slices.Contains(cfg.RequiredMethods, r.Method) {
				next.ServeHTTP(w, r)

				return
			}

			idempotencyKey := r.Header.Get(cfg.HeaderName)
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)

				return
			}

			body, err := readBody(r)
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())

				return
			}

			req, err := idempotency.NewRequest(idempotencyKey, r.Method, r.URL.Path, body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", err.Error())

				return
			}

			cacheKey := req.CacheKey()
			ctx := r.Context()

			reqLogger := log.WithContext(ctx).With().
				Str("idempotency_key", idempotencyKey).
				Logger()

			cached, err := cache.Get(ctx, cacheKey)
			if err != nil {
				reqLogger.Warn().Err(err).Msg("idempotency cache get failed")
				degrade(w, r, next, cfg)

				return
			}

			if cached != nil {
				if !req.IsReplayOf(cached.Fingerprint) {
					writeError(w, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED",
						"idempotency key was already used with a different request body")

					return
				}

				writeCachedResponse(w, cfg, cached)

				return
			}

			acquired, err := cache.SetLock(ctx, cacheKey, cfg.LockTTL)
			if err != nil {
				reqLogger.Warn().Err(err).Msg("idempotency cache lock failed")
				degrade(w, r, next, cfg)

				return
			}

			if !acquired {
				writeError(w, http.StatusConflict, "REQUEST_IN_PROGRESS",
					"a request with this idempotency key is already being processed")

				return
			}

			defer func() {
				if releaseErr := cache.ReleaseLock(ctx, cacheKey); releaseErr != nil {
					reqLogger.Warn().Err(releaseErr).Msg("failed to release idempotency lock")
				}
			}()

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r.WithContext(idempotency.WithRequest(ctx, req)))

			if recorder.statusCode < http.StatusOK || recorder.statusCode >= http.StatusMultipleChoices {
				return
			}

			response := &ports.CachedResponse{
				StatusCode:  recorder.statusCode,
				Headers:     recorder.capturedHeaders(),
				Body:        recorder.body.Bytes(),
				Fingerprint: req.Fingerprint,
				CreatedAt:   time.Now().UTC(),
			}

			if cacheErr := cache.Set(ctx, cacheKey, response, cfg.CacheTTL); cacheErr != nil {
				reqLogger.Warn().Err(cacheErr).Msg("failed to cache idempotent response")
			}
		})
	}
}

var errBodyTooLarge = errors.New("request body is too large")

// readBody buffers the request body and puts it back for the next handler.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFingerprintBody+1))
	_ = r.Body.Close()

	if err != nil {
		return nil, err
	}

	if len(body) > maxFingerprintBody {
		return nil, errBodyTooLarge
	}

	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}

func writeCachedResponse(w http.ResponseWriter, cfg config.Idempotency, cached *ports.CachedResponse) {
	for key, value := range cached.Headers {
		w.Header().Set(key, value)
	}

	w.Header().Set(cfg.ReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":      code,
		"message":   message,
		"details":   []string{},
		"timestamp": time.Now().UTC(),
	})
}

func degrade(w http.ResponseWriter, r *http.Request, next http.Handler, cfg config.Idempotency) {
	if cfg.GracefulDegraded {
		next.ServeHTTP(w, r)

		return
	}

	writeError(w, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE",
		"idempotency service temporarily unavailable")
}

// responseRecorder tees the response so it can be stored.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)

	return r.ResponseWriter.Write(b)
}

// capturedHeaders skips headers that describe one particular transfer or
// request. A replay is encoded for its own Accept-Encoding.
func (r *responseRecorder) capturedHeaders() map[string]string {
	headers := make(map[string]string)

	for key, values := range r.ResponseWriter.Header() {
		if slices.Contains(perResponseHeaders, http.CanonicalHeaderKey(key)) {
			continue
		}

		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	return headers
}
