package usecases

import (
	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/internal/usecases/commands"
	"github.com/architeacher/device-catalog/internal/usecases/queries"
	"github.com/architeacher/device-catalog/pkg/decorator"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Commands struct {
		CreateDevice commands.CreateDeviceCommandHandler
		UpdateDevice commands.UpdateDeviceCommandHandler
		PatchDevice  commands.PatchDeviceCommandHandler
		DeleteDevice commands.DeleteDeviceCommandHandler
	}

	Queries struct {
		GetDevice         queries.GetDeviceQueryHandler
		SearchDevices     queries.SearchDevicesQueryHandler
		FetchLiveness     queries.FetchLivenessQueryHandler
		FetchReadiness    queries.FetchReadinessQueryHandler
		FetchHealthReport queries.FetchHealthReportQueryHandler
	}

	// Caching holds the optional read cache. A zero value disables caching.
	Caching struct {
		Devices     ports.DevicesCache
		DeviceQuery decorator.Cache[queries.GetDeviceQuery, *model.Device]
		SearchQuery decorator.Cache[queries.SearchDevicesQuery, *model.DevicePage]
		Device      decorator.CacheConfig
		Search      decorator.CacheConfig
	}

	Application struct {
		Commands Commands
		Queries  Queries
	}
)

func NewApplication(
	devicesSvc ports.DevicesService,
	dbHealthChecker ports.DatabaseHealthChecker,
	caching Caching,
	build queries.BuildInfo,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) *Application {
	var cacheHealthChecker ports.CacheHealthChecker
	if caching.Devices != nil {
		cacheHealthChecker = caching.Devices
	}

	return &Application{
		Commands: Commands{
			CreateDevice: commands.NewCreateDeviceCommandHandler(devicesSvc, caching.Devices, log, metricsClient, tracerProvider),
			UpdateDevice: commands.NewUpdateDeviceCommandHandler(devicesSvc, caching.Devices, log, metricsClient, tracerProvider),
			PatchDevice:  commands.NewPatchDeviceCommandHandler(devicesSvc, caching.Devices, log, metricsClient, tracerProvider),
			DeleteDevice: commands.NewDeleteDeviceCommandHandler(devicesSvc, caching.Devices, log, metricsClient, tracerProvider),
		},
		Queries: Queries{
			GetDevice: queries.NewGetDeviceQueryHandler(
				devicesSvc, caching.DeviceQuery, caching.Device, log, metricsClient, tracerProvider,
			),
			SearchDevices: queries.NewSearchDevicesQueryHandler(
				devicesSvc, caching.SearchQuery, caching.Search, log, metricsClient, tracerProvider,
			),
			FetchLiveness:  queries.NewFetchLivenessQueryHandler(log, metricsClient, tracerProvider),
			FetchReadiness: queries.NewFetchReadinessQueryHandler(dbHealthChecker, build.Storage, log, metricsClient, tracerProvider),
			FetchHealthReport: queries.NewFetchHealthReportQueryHandler(
				dbHealthChecker, cacheHealthChecker, build, log, metricsClient, tracerProvider,
			),
		},
	}
}
