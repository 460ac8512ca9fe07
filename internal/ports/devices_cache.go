package ports

import (
	"context"
	"time"

	"github.com/architeacher/device-catalog/internal/domain/model"
)

// CacheResult holds the result of a cache lookup along with metadata.
type CacheResult[T any] struct {
	Data     T
	Hit      bool
	Key      string
	TTL      time.Duration
	CachedAt time.Time
}

// DevicesCache defines the read-through cache for single devices and
// search pages.
type DevicesCache interface {
	// GetDevice returns a result with Hit=false when the device is not cached.
	GetDevice(ctx context.Context, id model.DeviceID) (*CacheResult[*model.Device], error)

	SetDevice(ctx context.Context, device *model.Device, ttl time.Duration) error

	InvalidateDevice(ctx context.Context, id model.DeviceID) error

	// GetDevicePage returns a result with Hit=false when the page is not cached.
	GetDevicePage(ctx context.Context, filter model.DeviceFilter, page model.PageRequest) (*CacheResult[*model.DevicePage], error)

	SetDevicePage(ctx context.Context, result *model.DevicePage, filter model.DeviceFilter, page model.PageRequest, ttl time.Duration) error

	// InvalidateAllPages removes every cached search page.
	InvalidateAllPages(ctx context.Context) error

	// PurgeAll removes all device-related keys.
	PurgeAll(ctx context.Context) error

	IsHealthy(ctx context.Context) bool
}
