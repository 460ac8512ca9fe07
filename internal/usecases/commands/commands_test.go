package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/infrastructure"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/internal/usecases/commands"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics/noop"
	"github.com/stretchr/testify/require"
)

type mockDevicesService struct {
	createDeviceFn func(ctx context.Context, name, brand string, state model.State) (*model.Device, error)
	updateDeviceFn func(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error)
	patchDeviceFn  func(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error)
	deleteDeviceFn func(ctx context.Context, id model.DeviceID) error
}

func (m *mockDevicesService) CreateDevice(ctx context.Context, name, brand string, state model.State) (*model.Device, error) {
	if m.createDeviceFn != nil {
		return m.createDeviceFn(ctx, name, brand, state)
	}

	return model.NewDevice(name, brand, state), nil
}

func (m *mockDevicesService) GetDevice(context.Context, model.DeviceID) (*model.Device, error) {
	return nil, model.ErrDeviceNotFound
}

func (m *mockDevicesService) SearchDevices(context.Context, model.DeviceFilter, model.PageRequest) (*model.DevicePage, error) {
	return model.NewDevicePage(nil, model.DefaultPageRequest(), 0), nil
}

func (m *mockDevicesService) UpdateDevice(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error) {
	if m.updateDeviceFn != nil {
		return m.updateDeviceFn(ctx, id, update)
	}

	return nil, model.ErrDeviceNotFound
}

func (m *mockDevicesService) PatchDevice(ctx context.Context, id model.DeviceID, update model.DeviceUpdate) (*model.Device, error) {
	if m.patchDeviceFn != nil {
		return m.patchDeviceFn(ctx, id, update)
	}

	return nil, model.ErrDeviceNotFound
}

func (m *mockDevicesService) DeleteDevice(ctx context.Context, id model.DeviceID) error {
	if m.deleteDeviceFn != nil {
		return m.deleteDeviceFn(ctx, id)
	}

	return model.ErrDeviceNotFound
}

type recordingCache struct {
	mu              sync.Mutex
	invalidated     []model.DeviceID
	pageInvalidates int
	failWith        error
}

func (c *recordingCache) GetDevice(context.Context, model.DeviceID) (*ports.CacheResult[*model.Device], error) {
	return &ports.CacheResult[*model.Device]{}, nil
}

func (c *recordingCache) SetDevice(context.Context, *model.Device, time.Duration) error {
	return nil
}

func (c *recordingCache) InvalidateDevice(_ context.Context, id model.DeviceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidated = append(c.invalidated, id)

	return c.failWith
}

func (c *recordingCache) GetDevicePage(context.Context, model.DeviceFilter, model.PageRequest) (*ports.CacheResult[*model.DevicePage], error) {
	return &ports.CacheResult[*model.DevicePage]{}, nil
}

func (c *recordingCache) SetDevicePage(context.Context, *model.DevicePage, model.DeviceFilter, model.PageRequest, time.Duration) error {
	return nil
}

func (c *recordingCache) InvalidateAllPages(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pageInvalidates++

	return c.failWith
}

func (c *recordingCache) PurgeAll(context.Context) error {
	return nil
}

func (c *recordingCache) IsHealthy(context.Context) bool {
	return true
}

func TestCreateDeviceCommandHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name            string
		cmd             commands.CreateDeviceCommand
		serviceErr      error
		expectedErr     error
		pageInvalidates int
	}{
		{
			name:            "creates device and drops cached pages",
			cmd:             commands.CreateDeviceCommand{Name: "iPhone", Brand: "Apple", State: model.StateAvailable},
			pageInvalidates: 1,
		},
		{
			name:        "service failure leaves cache alone",
			cmd:         commands.CreateDeviceCommand{Name: "", Brand: "Apple", State: model.StateAvailable},
			serviceErr:  model.ErrDuplicateDevice,
			expectedErr: model.ErrDuplicateDevice,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockDevicesService{}
			if tc.serviceErr != nil {
				svc.createDeviceFn = func(context.Context, string, string, model.State) (*model.Device, error) {
					return nil, tc.serviceErr
				}
			}
			cache := &recordingCache{}

			handler := commands.NewCreateDeviceCommandHandler(
				svc, cache, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
			)

			device, err := handler.Handle(context.Background(), tc.cmd)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				require.Nil(t, device)
			} else {
				require.NoError(t, err)
				require.Equal(t, tc.cmd.Name, device.Name)
				require.Equal(t, tc.cmd.Brand, device.Brand)
				require.Equal(t, tc.cmd.State, device.State)
			}

			require.Equal(t, tc.pageInvalidates, cache.pageInvalidates)
			require.Empty(t, cache.invalidated)
		})
	}
}

func TestUpdateDeviceCommandHandler_SendsFullUpdate(t *testing.T) {
	t.Parallel()

	id := model.NewDeviceID()
	cache := &recordingCache{}

	var received model.DeviceUpdate
	svc := &mockDevicesService{
		updateDeviceFn: func(_ context.Context, got model.DeviceID, update model.DeviceUpdate) (*model.Device, error) {
			require.Equal(t, id, got)
			received = update

			return &model.Device{ID: got, Name: "n", Brand: "b", State: model.StateInactive}, nil
		},
	}

	handler := commands.NewUpdateDeviceCommandHandler(
		svc, cache, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
	)

	_, err := handler.Handle(context.Background(), commands.UpdateDeviceCommand{
		ID: id, Name: "n", Brand: "b", State: model.StateInactive,
	})
	require.NoError(t, err)

	require.Equal(t, model.FullUpdate("n", "b", model.StateInactive), received)
	require.Equal(t, []model.DeviceID{id}, cache.invalidated)
	require.Equal(t, 1, cache.pageInvalidates)
}

func TestUpdateDeviceCommandHandler_StateViolation(t *testing.T) {
	t.Parallel()

	id := model.NewDeviceID()
	cache := &recordingCache{}
	violation := &model.StateViolationError{Operation: model.OperationUpdate, DeviceID: id, Message: "device is in use"}

	svc := &mockDevicesService{
		updateDeviceFn: func(context.Context, model.DeviceID, model.DeviceUpdate) (*model.Device, error) {
			return nil, violation
		},
	}

	handler := commands.NewUpdateDeviceCommandHandler(
		svc, cache, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
	)

	_, err := handler.Handle(context.Background(), commands.UpdateDeviceCommand{ID: id, Name: "x", Brand: "y", State: model.StateInUse})
	require.ErrorIs(t, err, model.ErrStateViolation)

	var stateErr *model.StateViolationError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, model.OperationUpdate, stateErr.Operation)
	require.Empty(t, cache.invalidated)
}

func TestPatchDeviceCommandHandler(t *testing.T) {
	t.Parallel()

	id := model.NewDeviceID()
	update := model.DeviceUpdate{State: model.Some(model.StateInUse)}

	cases := []struct {
		name        string
		serviceErr  error
		invalidated int
	}{
		{name: "patched", invalidated: 1},
		{name: "not found", serviceErr: model.ErrDeviceNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cache := &recordingCache{}
			svc := &mockDevicesService{
				patchDeviceFn: func(_ context.Context, got model.DeviceID, u model.DeviceUpdate) (*model.Device, error) {
					require.Equal(t, update, u)

					if tc.serviceErr != nil {
						return nil, tc.serviceErr
					}

					return &model.Device{ID: got, Name: "n", Brand: "b", State: model.StateInUse}, nil
				},
			}

			handler := commands.NewPatchDeviceCommandHandler(
				svc, cache, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
			)

			device, err := handler.Handle(context.Background(), commands.PatchDeviceCommand{ID: id, Update: update})
			if tc.serviceErr != nil {
				require.ErrorIs(t, err, tc.serviceErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, model.StateInUse, device.State)
			}

			require.Len(t, cache.invalidated, tc.invalidated)
		})
	}
}

func TestDeleteDeviceCommandHandler(t *testing.T) {
	t.Parallel()

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()

		id := model.NewDeviceID()
		cache := &recordingCache{}
		svc := &mockDevicesService{
			deleteDeviceFn: func(context.Context, model.DeviceID) error { return nil },
		}

		handler := commands.NewDeleteDeviceCommandHandler(
			svc, cache, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
		)

		_, err := handler.Handle(context.Background(), commands.DeleteDeviceCommand{ID: id})
		require.NoError(t, err)
		require.Equal(t, []model.DeviceID{id}, cache.invalidated)
		require.Equal(t, 1, cache.pageInvalidates)
	})

	t.Run("in use", func(t *testing.T) {
		t.Parallel()

		id := model.NewDeviceID()
		svc := &mockDevicesService{
			deleteDeviceFn: func(context.Context, model.DeviceID) error {
				return &model.StateViolationError{Operation: model.OperationDelete, DeviceID: id, Message: "in use"}
			},
		}

		handler := commands.NewDeleteDeviceCommandHandler(
			svc, nil, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
		)

		_, err := handler.Handle(context.Background(), commands.DeleteDeviceCommand{ID: id})
		require.ErrorIs(t, err, model.ErrStateViolation)
	})

	t.Run("cache failure does not fail the delete", func(t *testing.T) {
		t.Parallel()

		cache := &recordingCache{failWith: errors.New("keydb down")}
		svc := &mockDevicesService{
			deleteDeviceFn: func(context.Context, model.DeviceID) error { return nil },
		}

		handler := commands.NewDeleteDeviceCommandHandler(
			svc, cache, logger.NewTestLogger(), noop.NewMetricsClient(), infrastructure.NewNoopTracerProvider(),
		)

		_, err := handler.Handle(context.Background(), commands.DeleteDeviceCommand{ID: model.NewDeviceID()})
		require.NoError(t, err)
		require.Len(t, cache.invalidated, 1)
		require.Equal(t, 1, cache.pageInvalidates)
	})
}
