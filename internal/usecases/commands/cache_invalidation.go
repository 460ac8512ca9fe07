package commands

import (
	"context"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/pkg/logger"
)

// cacheInvalidator drops cached entries a write made stale. Failures are
// logged and never fail the write, which has already been committed.
type cacheInvalidator struct {
	cache  ports.DevicesCache
	logger logger.Logger
}

func newCacheInvalidator(cache ports.DevicesCache, log logger.Logger) cacheInvalidator {
	return cacheInvalidator{cache: cache, logger: log}
}

func (i cacheInvalidator) device(ctx context.Context, id model.DeviceID) {
	if i.cache == nil {
		return
	}

	if err := i.cache.InvalidateDevice(ctx, id); err != nil {
		i.logger.Warn().Err(err).Str("device_id", id.String()).Msg("failed to invalidate cached device")
	}

	i.pages(ctx)
}

func (i cacheInvalidator) pages(ctx context.Context) {
	if i.cache == nil {
		return
	}

	if err := i.cache.InvalidateAllPages(ctx); err != nil {
		i.logger.Warn().Err(err).Msg("failed to invalidate cached device pages")
	}
}
