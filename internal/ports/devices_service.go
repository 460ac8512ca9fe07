package ports

import (
	"context"

	"github.com/architeacher/device-catalog/internal/domain/model"
)

// DevicesService defines the interface for device business operations.
type DevicesService interface {
	// CreateDevice validates and stores a new device.
	CreateDevice(ctx context.Context, name, brand string, state model.State) (*model.Device, error)

	// GetDevice retrieves a device by its ID.
	GetDevice(ctx context.Context, id model.DeviceID) (*model.Device, error)

	// SearchDevices returns the page of devices matching the filter.
	SearchDevices(ctx context.Context, filter model.DeviceFilter, page model.PageRequest) (*model.DevicePage, error)

	// UpdateDevice replaces name, brand and state of a device.
	UpdateDevice(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error)

	// PatchDevice changes only the supplied fields of a device.
	PatchDevice(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error)

	// DeleteDevice removes a device by its ID.
	DeleteDevice(ctx context.Context, id model.DeviceID) error
}
