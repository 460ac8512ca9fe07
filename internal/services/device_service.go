package services

import (
	"context"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/ports"
)

type DevicesService struct {
	store ports.DevicesStore
}

func NewDevicesService(store ports.DevicesStore) *DevicesService {
	return &DevicesService{store: store}
}

func (s *DevicesService) CreateDevice(ctx context.Context, name, brand string, state model.State) (*model.Device, error) {
	if err := model.ValidateNewDevice(name, brand, state); err != nil {
		return nil, err
	}

	device := model.NewDevice(name, brand, state)

	if err := s.store.Create(ctx, device); err != nil {
		return nil, err
	}

	return device, nil
}

func (s *DevicesService) GetDevice(ctx context.Context, id model.DeviceID) (*model.Device, error) {
	return s.store.FetchByID(ctx, id)
}

func (s *DevicesService) SearchDevices(
	ctx context.Context,
	filter model.DeviceFilter,
	page model.PageRequest,
) (*model.DevicePage, error) {
	return s.store.List(ctx, model.FromDeviceFilter(filter, page))
}

func (s *DevicesService) UpdateDevice(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error) {
	if err := update.Validate(true); err != nil {
		return nil, err
	}

	return s.modify(ctx, id, update)
}

func (s *DevicesService) PatchDevice(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error) {
	if err := update.Validate(false); err != nil {
		return nil, err
	}

	// Nothing to merge: the device is returned untouched.
	if update.IsEmpty() {
		return s.store.FetchByID(ctx, id)
	}

	return s.modify(ctx, id, update)
}

func (s *DevicesService) DeleteDevice(ctx context.Context, id model.DeviceID) error {
	return s.store.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.store.FetchForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if err := model.AuthorizeDelete(*current); err != nil {
			return err
		}

		return s.store.Delete(txCtx, id)
	})
}

// modify reads, authorizes, merges and persists in one transaction so a
// concurrent state change cannot slip in between the check and the write.
func (s *DevicesService) modify(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error) {
	var updated *model.Device

	err := s.store.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.store.FetchForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if err := model.AuthorizeUpdate(*current, update.Name, update.Brand); err != nil {
			return err
		}

		update.ApplyTo(current)
		current.Touch()

		if err := s.store.Update(txCtx, current); err != nil {
			return err
		}

		updated = current

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
