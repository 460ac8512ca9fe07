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
	DeleteDeviceCommand struct {
		ID model.DeviceID
	}

	DeleteDeviceCommandHandler = decorator.CommandHandler[DeleteDeviceCommand, struct{}]

	deleteDeviceCommandHandler struct {
		devicesService ports.DevicesService
		invalidator    cacheInvalidator
	}
)

func NewDeleteDeviceCommandHandler(
	svc ports.DevicesService,
	cache ports.DevicesCache,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) DeleteDeviceCommandHandler {
	return decorator.ApplyCommandDecorators[DeleteDeviceCommand, struct{}](
		deleteDeviceCommandHandler{
			devicesService: svc,
			invalidator:    newCacheInvalidator(cache, log),
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h deleteDeviceCommandHandler) Handle(ctx context.Context, cmd DeleteDeviceCommand) (struct{}, error) {
	if err := h.devicesService.DeleteDevice(ctx, cmd.ID); err != nil {
		return struct{}{}, err
	}

	h.invalidator.device(ctx, cmd.ID)

	return struct{}{}, nil
}
