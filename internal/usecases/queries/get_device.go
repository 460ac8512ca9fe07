package queries

import (
	"context"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/pkg/decorator"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	GetDeviceQuery struct {
		ID model.DeviceID
	}

	GetDeviceQueryHandler = decorator.QueryHandler[GetDeviceQuery, *model.Device]

	getDeviceQueryHandler struct {
		devicesService ports.DevicesService
	}
)

// NewGetDeviceQueryHandler serves lookups through cache when one is given.
// A nil cache always reaches the service.
func NewGetDeviceQueryHandler(
	svc ports.DevicesService,
	cache decorator.Cache[GetDeviceQuery, *model.Device],
	cacheConfig decorator.CacheConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) GetDeviceQueryHandler {
	return decorator.ApplyQueryDecorators[GetDeviceQuery, *model.Device](
		decorator.NewQueryCachingDecorator[GetDeviceQuery, *model.Device](
			getDeviceQueryHandler{devicesService: svc},
			cache,
			cacheConfig,
		),
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h getDeviceQueryHandler) Execute(ctx context.Context, query GetDeviceQuery) (*model.Device, error) {
	return h.devicesService.GetDevice(ctx, query.ID)
}
