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
	// SearchDevicesQuery asks for one page of the devices matching Filter.
	// An empty filter matches every device.
	SearchDevicesQuery struct {
		Filter model.DeviceFilter
		Page   model.PageRequest
	}

	SearchDevicesQueryHandler = decorator.QueryHandler[SearchDevicesQuery, *model.DevicePage]

	searchDevicesQueryHandler struct {
		devicesService ports.DevicesService
	}
)

func NewSearchDevicesQueryHandler(
	svc ports.DevicesService,
	cache decorator.Cache[SearchDevicesQuery, *model.DevicePage],
	cacheConfig decorator.CacheConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) SearchDevicesQueryHandler {
	return decorator.ApplyQueryDecorators[SearchDevicesQuery, *model.DevicePage](
		decorator.NewQueryCachingDecorator[SearchDevicesQuery, *model.DevicePage](
			searchDevicesQueryHandler{devicesService: svc},
			cache,
			cacheConfig,
		),
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h searchDevicesQueryHandler) Execute(ctx context.Context, query SearchDevicesQuery) (*model.DevicePage, error) {
	return h.devicesService.SearchDevices(ctx, query.Filter, query.Page)
}
