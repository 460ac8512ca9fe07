package ports

import (
	"context"
	"time"
)

// CachedResponse represents a cached HTTP response.
type CachedResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
	// Fingerprint identifies the request body that produced the response.
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdempotencyCache stores responses of requests carrying an idempotency key.
type IdempotencyCache interface {
	// Get returns nil, nil if the key does not exist.
	Get(ctx context.Context, key string) (*CachedResponse, error)

	Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error

	// SetLock returns false if another request already holds the key.
	SetLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	ReleaseLock(ctx context.Context, key string) error

	IsHealthy(ctx context.Context) bool
}
