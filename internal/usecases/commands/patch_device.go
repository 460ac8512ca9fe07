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
	// PatchDeviceCommand changes only the fields that are set.
	PatchDeviceCommand struct {
		ID     model.DeviceID
		Update model.DeviceUpdate
	}

	PatchDeviceCommandHandler = decorator.CommandHandler[PatchDeviceCommand, *model.Device]

	patchDeviceCommandHandler struct {
		devicesService ports.DevicesService
		invalidator    cacheInvalidator
	}
)

func NewPatchDeviceCommandHandler(
	svc ports.DevicesService,
	cache ports.DevicesCache,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) PatchDeviceCommandHandler {
	return decorator.ApplyCommandDecorators[PatchDeviceCommand, *model.Device](
		patchDeviceCommandHandler{
			devicesService: svc,
			invalidator:    newCacheInvalidator(cache, log),
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h patchDeviceCommandHandler) Handle(ctx context.Context, cmd PatchDeviceCommand) (*model.Device, error) {
	device, err := h.devicesService.PatchDevice(ctx, cmd.ID, cmd.Update)
	if err != nil {
		return nil, err
	}

	h.invalidator.device(ctx, cmd.ID)

	return device, nil
}
