package repos

import (
	"context"
	"time"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/internal/usecases/queries"
)

type (
	// GetDeviceCacheAdapter adapts DevicesCache for GetDeviceQuery.
	GetDeviceCacheAdapter struct {
		cache ports.DevicesCache
	}

	// SearchDevicesCacheAdapter adapts DevicesCache for SearchDevicesQuery.
	SearchDevicesCacheAdapter struct {
		cache ports.DevicesCache
	}
)

func NewGetDeviceCacheAdapter(cache ports.DevicesCache) *GetDeviceCacheAdapter {
	return &GetDeviceCacheAdapter{cache: cache}
}

func (a *GetDeviceCacheAdapter) Get(ctx context.Context, query queries.GetDeviceQuery) (*model.Device, bool, error) {
	result, err := a.cache.GetDevice(ctx, query.ID)
	if err != nil {
		return nil, false, err
	}

	return result.Data, result.Hit, nil
}

func (a *GetDeviceCacheAdapter) Set(ctx context.Context, _ queries.GetDeviceQuery, result *model.Device, ttl time.Duration) error {
	return a.cache.SetDevice(ctx, result, ttl)
}

func NewSearchDevicesCacheAdapter(cache ports.DevicesCache) *SearchDevicesCacheAdapter {
	return &SearchDevicesCacheAdapter{cache: cache}
}

func (a *SearchDevicesCacheAdapter) Get(ctx context.Context, query queries.SearchDevicesQuery) (*model.DevicePage, bool, error) {
	result, err := a.cache.GetDevicePage(ctx, query.Filter, query.Page)
	if err != nil {
		return nil, false, err
	}

	return result.Data, result.Hit, nil
}

func (a *SearchDevicesCacheAdapter) Set(
	ctx context.Context,
	query queries.SearchDevicesQuery,
	result *model.DevicePage,
	ttl time.Duration,
) error {
	return a.cache.SetDevicePage(ctx, result, query.Filter, query.Page, ttl)
}
