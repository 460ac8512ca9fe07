package ports

import (
	"context"

	"github.com/architeacher/device-catalog/internal/domain/model"
)

type (
	Saver interface {
		// Create stores a new device.
		Create(ctx context.Context, device *model.Device) error
	}

	Fetcher interface {
		// FetchByID retrieves a device by its ID.
		FetchByID(ctx context.Context, id model.DeviceID) (*model.Device, error)
	}

	Locker interface {
		// FetchForUpdate retrieves a device and holds it until the surrounding
		// transaction ends. Must be called inside Transactor.RunInTx.
		FetchForUpdate(ctx context.Context, id model.DeviceID) (*model.Device, error)
	}

	Finder interface {
		// List returns the page of devices matching the criteria.
		List(ctx context.Context, criteria model.Criteria) (*model.DevicePage, error)
	}

	Updater interface {
		// Update persists the mutable fields of an existing device.
		Update(ctx context.Context, device *model.Device) error
	}

	Deleter interface {
		// Delete removes a device by its ID.
		Delete(ctx context.Context, id model.DeviceID) error
	}

	// DevicesRepository defines the interface for device persistence operations.
	DevicesRepository interface {
		Saver
		Fetcher
		Locker
		Finder
		Updater
		Deleter
	}

	// Transactor runs fn as one atomic unit. The context passed to fn must be
	// handed to the repository so its calls join the unit.
	Transactor interface {
		RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	// DevicesStore is a repository that can also run transactional units.
	DevicesStore interface {
		DevicesRepository
		Transactor
	}
)
