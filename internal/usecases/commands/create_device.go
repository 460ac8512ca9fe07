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
	CreateDeviceCommand struct {
		Name  string
		Brand string
		State model.State
	}

	CreateDeviceCommandHandler = decorator.CommandHandler[CreateDeviceCommand, *model.Device]

	createDeviceCommandHandler struct {
		devicesService ports.DevicesService
		invalidator    cacheInvalidator
	}
)

func NewCreateDeviceCommandHandler(
	svc ports.DevicesService,
	cache ports.DevicesCache,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) CreateDeviceCommandHandler {
	return decorator.ApplyCommandDecorators[CreateDeviceCommand, *model.Device](
		createDeviceCommandHandler{
			devicesService: svc,
			invalidator:    newCacheInvalidator(cache, log),
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h createDeviceCommandHandler) Handle(ctx context.Context, cmd CreateDeviceCommand) (*model.Device, error) {
	device, err := h.devicesService.CreateDevice(ctx, cmd.Name, cmd.Brand, cmd.State)
	if err != nil {
		return nil, err
	}

	h.invalidator.pages(ctx)

	return device, nil
}
