package commands

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
	// UpdateDeviceCommand replaces every mutable field of a device.
	UpdateDeviceCommand struct {
		ID    model.DeviceID
		Name  string
		Brand string
		State model.State
	}

	UpdateDeviceCommandHandler = decorator.CommandHandler[UpdateDeviceCommand, *model.Device]

	updateDeviceCommandHandler struct {
		devicesService ports.DevicesService
		invalidator    cacheInvalidator
	}
)

func NewUpdateDeviceCommandHandler(
	svc ports.DevicesService,
	cache ports.DevicesCache,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) UpdateDeviceCommandHandler {
	return decorator.ApplyCommandDecorators[UpdateDeviceCommand, *model.Device](
		updateDeviceCommandHandler{
			devicesService: svc,
			invalidator:    newCacheInvalidator(cache, log),
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h updateDeviceCommandHandler) Handle(ctx context.Context, cmd UpdateDeviceCommand) (*model.Device, error) {
	device, err := h.devicesService.UpdateDevice(ctx, cmd.ID, model.FullUpdate(cmd.Name, cmd.Brand, cmd.State))
	if err != nil {
		return nil, err
	}

	h.invalidator.device(ctx, cmd.ID)

	return device, nil
}
