package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/infrastructure"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

const (
	deviceCacheVersion = "v1"
	deviceKeyPrefix    = "device:" + deviceCacheVersion + ":"
	devicePagePrefix   = "devices:page:" + deviceCacheVersion + ":"
	purgeScanCount     = 100
)

type (
	cachedDevice struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Brand     string    `json:"brand"`
		State     string    `json:"state"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	cachedDevicePage struct {
		Devices       []cachedDevice `json:"devices"`
		Number        uint           `json:"number"`
		Size          uint           `json:"size"`
		TotalElements uint64         `json:"total_elements"`
		TotalPages    uint           `json:"total_pages"`
		CachedAt      time.Time      `json:"cached_at"`
	}

	// DevicesCacheRepository keeps devices and search pages in KeyDB.
	DevicesCacheRepository struct {
		client *infrastructure.KeydbClient
		logger logger.Logger
	}
)

func NewDevicesCacheRepository(client *infrastructure.KeydbClient, log logger.Logger) *DevicesCacheRepository {
	return &DevicesCacheRepository{
		client: client,
		logger: log,
	}
}

func (r *DevicesCacheRepository) GetDevice(ctx context.Context, id model.DeviceID) (*ports.CacheResult[*model.Device], error) {
	key := deviceKey(id)

	data, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &ports.CacheResult[*model.Device]{Key: key}, nil
		}

		return nil, fmt.Errorf("getting cached device: %w", err)
	}

	var cached cachedDevice
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("unmarshalling cached device: %w", err)
	}

	device, err := cached.toDomain()
	if err != nil {
		return nil, fmt.Errorf("converting cached device: %w", err)
	}

	return &ports.CacheResult[*model.Device]{
		Data:     device,
		Hit:      true,
		Key:      key,
		TTL:      r.client.TTL(ctx, key),
		CachedAt: device.UpdatedAt,
	}, nil
}

func (r *DevicesCacheRepository) SetDevice(ctx context.Context, device *model.Device, ttl time.Duration) error {
	data, err := json.Marshal(toCachedDevice(device))
	if err != nil {
		return fmt.Errorf("marshalling device: %w", err)
	}

	if err := r.client.Set(ctx, deviceKey(device.ID), data, ttl); err != nil {
		return fmt.Errorf("setting cached device: %w", err)
	}

	return nil
}

func (r *DevicesCacheRepository) InvalidateDevice(ctx context.Context, id model.DeviceID) error {
	if err := r.client.Delete(ctx, deviceKey(id)); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidating cached device: %w", err)
	}

	return nil
}

func (r *DevicesCacheRepository) GetDevicePage(
	ctx context.Context,
	filter model.DeviceFilter,
	page model.PageRequest,
) (*ports.CacheResult[*model.DevicePage], error) {
	key := devicePageKey(filter, page)

	data, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &ports.CacheResult[*model.DevicePage]{Key: key}, nil
		}

		return nil, fmt.Errorf("getting cached device page: %w", err)
	}

	var cached cachedDevicePage
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("unmarshalling cached device page: %w", err)
	}

	result, err := cached.toDomain()
	if err != nil {
		return nil, fmt.Errorf("converting cached device page: %w", err)
	}

	return &ports.CacheResult[*model.DevicePage]{
		Data:     result,
		Hit:      true,
		Key:      key,
		TTL:      r.client.TTL(ctx, key),
		CachedAt: cached.CachedAt,
	}, nil
}

func (r *DevicesCacheRepository) SetDevicePage(
	ctx context.Context,
	result *model.DevicePage,
	filter model.DeviceFilter,
	page model.PageRequest,
	ttl time.Duration,
) error {
	data, err := json.Marshal(toCachedDevicePage(result))
	if err != nil {
		return fmt.Errorf("marshalling device page: %w", err)
	}

	if err := r.client.Set(ctx, devicePageKey(filter, page), data, ttl); err != nil {
		return fmt.Errorf("setting cached device page: %w", err)
	}

	return nil
}

func (r *DevicesCacheRepository) InvalidateAllPages(ctx context.Context) error {
	if _, err := r.purgeByPattern(ctx, devicePagePrefix+"*"); err != nil {
		return fmt.Errorf("invalidating device pages: %w", err)
	}

	return nil
}

func (r *DevicesCacheRepository) PurgeAll(ctx context.Context) error {
	for _, pattern := range []string{deviceKeyPrefix + "*", devicePagePrefix + "*"} {
		if _, err := r.purgeByPattern(ctx, pattern); err != nil {
			return fmt.Errorf("purging pattern %s: %w", pattern, err)
		}
	}

	return nil
}

func (r *DevicesCacheRepository) IsHealthy(ctx context.Context) bool {
	return r.client.IsHealthy(ctx)
}

func (r *DevicesCacheRepository) purgeByPattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, purgeScanCount)
		if err != nil {
			return deleted, err
		}

		if len(keys) > 0 {
			if err := r.client.Delete(ctx, keys...); err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn().Err(err).Int("keys", len(keys)).Msg("failed to delete keys during purge")
			} else {
				deleted += len(keys)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	r.logger.Debug().Str("pattern", pattern).Int("deleted", deleted).Msg("purged cache keys")

	return deleted, nil
}

func deviceKey(id model.DeviceID) string {
	return deviceKeyPrefix + id.String()
}

// devicePageKey derives a stable key from the effective search. A blank
// brand is dropped the same way the filter builder drops it.
func devicePageKey(filter model.DeviceFilter, page model.PageRequest) string {
	var b strings.Builder

	b.WriteString("brand=")
	if brand, ok := filter.Brand.Get(); ok && strings.TrimSpace(brand) != "" {
		b.WriteString(brand)
	}

	b.WriteString("&state=")
	if state, ok := filter.State.Get(); ok {
		b.WriteString(state.String())
	}

	b.WriteString("&page=")
	b.WriteString(strconv.FormatUint(uint64(page.Page), 10))
	b.WriteString("&size=")
	b.WriteString(strconv.FormatUint(uint64(page.Size), 10))
	b.WriteString("&sort=")

	for index, field := range page.Sort {
		if index > 0 {
			b.WriteByte(',')
		}
		b.WriteString(field.Field)
		b.WriteByte(':')
		b.WriteString(string(field.Direction))
	}

	return devicePagePrefix + strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

func toCachedDevice(device *model.Device) cachedDevice {
	return cachedDevice{
		ID:        device.ID.String(),
		Name:      device.Name,
		Brand:     device.Brand,
		State:     device.State.String(),
		CreatedAt: device.CreatedAt,
		UpdatedAt: device.UpdatedAt,
	}
}

func (c cachedDevice) toDomain() (*model.Device, error) {
	id, err := model.ParseDeviceID(c.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing device ID: %w", err)
	}

	state, err := model.ParseState(c.State)
	if err != nil {
		return nil, fmt.Errorf("parsing device state: %w", err)
	}

	return &model.Device{
		ID:        id,
		Name:      c.Name,
		Brand:     c.Brand,
		State:     state,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func toCachedDevicePage(page *model.DevicePage) cachedDevicePage {
	devices := make([]cachedDevice, len(page.Devices))
	for index, device := range page.Devices {
		devices[index] = toCachedDevice(device)
	}

	return cachedDevicePage{
		Devices:       devices,
		Number:        page.Number,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		CachedAt:      time.Now().UTC(),
	}
}

func (c cachedDevicePage) toDomain() (*model.DevicePage, error) {
	devices := make([]*model.Device, len(c.Devices))
	for index := range c.Devices {
		device, err := c.Devices[index].toDomain()
		if err != nil {
			return nil, fmt.Errorf("converting device at index %d: %w", index, err)
		}
		devices[index] = device
	}

	return &model.DevicePage{
		Devices:       devices,
		Number:        c.Number,
		Size:          c.Size,
		TotalElements: c.TotalElements,
		TotalPages:    c.TotalPages,
	}, nil
}
