package repos

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/pkg/logger"
)

type (
	memoryTxKey struct{}

	// MemoryDevicesRepository keeps devices in process memory. RunInTx holds
	// the write lock for the whole unit and restores the previous contents
	// when the unit fails.
	MemoryDevicesRepository struct {
		mu      sync.RWMutex
		devices map[model.DeviceID]*model.Device
		logger  logger.Logger
	}
)

func NewMemoryDevicesRepository(log logger.Logger) *MemoryDevicesRepository {
	return &MemoryDevicesRepository{
		devices: make(map[model.DeviceID]*model.Device),
		logger:  log,
	}
}

func (r *MemoryDevicesRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.inTx(ctx) {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := maps.Clone(r.devices)

	if err := fn(context.WithValue(ctx, memoryTxKey{}, r)); err != nil {
		r.devices = snapshot

		return err
	}

	return nil
}

func (r *MemoryDevicesRepository) Create(ctx context.Context, device *model.Device) error {
	unlock := r.lock(ctx)
	defer unlock()

	if _, exists := r.devices[device.ID]; exists {
		return model.ErrDuplicateDevice
	}

	r.devices[device.ID] = device.Clone()

	return nil
}

func (r *MemoryDevicesRepository) FetchByID(ctx context.Context, id model.DeviceID) (*model.Device, error) {
	unlock := r.rlock(ctx)
	defer unlock()

	return r.get(id)
}

func (r *MemoryDevicesRepository) FetchForUpdate(ctx context.Context, id model.DeviceID) (*model.Device, error) {
	return r.FetchByID(ctx, id)
}

func (r *MemoryDevicesRepository) Update(ctx context.Context, device *model.Device) error {
	unlock := r.lock(ctx)
	defer unlock()

	if _, exists := r.devices[device.ID]; !exists {
		return model.ErrDeviceNotFound
	}

	r.devices[device.ID] = device.Clone()

	return nil
}

func (r *MemoryDevicesRepository) Delete(ctx context.Context, id model.DeviceID) error {
	unlock := r.lock(ctx)
	defer unlock()

	if _, exists := r.devices[id]; !exists {
		return model.ErrDeviceNotFound
	}

	delete(r.devices, id)

	return nil
}

// List filters first, then sorts, then cuts the requested page, so totals
// always describe the filtered set.
func (r *MemoryDevicesRepository) List(ctx context.Context, criteria model.Criteria) (*model.DevicePage, error) {
	unlock := r.rlock(ctx)
	matched := make([]*model.Device, 0, len(r.devices))

	for _, device := range r.devices {
		if criteria.Matches(device) {
			matched = append(matched, device.Clone())
		}
	}
	unlock()

	r.sortDevices(matched, criteria.Sorting())

	total := uint64(len(matched))
	request := criteria.PageRequest()

	start := min(uint64(criteria.Offset()), total)
	end := min(start+uint64(criteria.Size()), total)

	return model.NewDevicePage(matched[start:end], request, total), nil
}

func (r *MemoryDevicesRepository) Ping(_ context.Context) error {
	return nil
}

func (r *MemoryDevicesRepository) get(id model.DeviceID) (*model.Device, error) {
	device, exists := r.devices[id]
	if !exists {
		return nil, model.ErrDeviceNotFound
	}

	return device.Clone(), nil
}

func (r *MemoryDevicesRepository) sortDevices(devices []*model.Device, sorting []model.SortField) {
	if len(sorting) == 0 {
		sorting = []model.SortField{{Field: model.FieldCreatedAt, Direction: model.SortDesc}}
	}

	sorting = slices.Clone(sorting)

	for index, field := range sorting {
		if _, known := columnMapping[field.Field]; !known {
			r.logger.Warn().
				Str("field", field.Field).
				Str("fallback", model.FieldCreatedAt).
				Msg("unknown sort field requested, falling back to default")

			sorting[index].Field = model.FieldCreatedAt
		}
	}

	slices.SortStableFunc(devices, func(a, b *model.Device) int {
		for _, field := range sorting {
			result := compareField(a, b, field.Field)
			if field.Direction == model.SortDesc {
				result = -result
			}

			if result != 0 {
				return result
			}
		}

		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

func (r *MemoryDevicesRepository) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(memoryTxKey{}).(*MemoryDevicesRepository)

	return ok && owner == r
}

func (r *MemoryDevicesRepository) lock(ctx context.Context) func() {
	if r.inTx(ctx) {
		return func() {}
	}

	r.mu.Lock()

	return r.mu.Unlock
}

func (r *MemoryDevicesRepository) rlock(ctx context.Context) func() {
	if r.inTx(ctx) {
		return func() {}
	}

	r.mu.RLock()

	return r.mu.RUnlock
}

func compareField(a, b *model.Device, field string) int {
	left, _ := a.FieldValue(field)
	right, _ := b.FieldValue(field)

	switch l := left.(type) {
	case string:
		return cmp.Compare(l, right.(string))
	case time.Time:
		return l.Compare(right.(time.Time))
	default:
		return 0
	}
}
