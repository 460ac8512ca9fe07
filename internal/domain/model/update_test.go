package model_test

import (
	"strings"
	"testing"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestDeviceUpdate_ApplyTo(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		update   model.DeviceUpdate
		expected model.Device
	}{
		{
			name:     "full update replaces every field",
			update:   model.FullUpdate("name2", "brand2", model.StateInactive),
			expected: model.Device{Name: "name2", Brand: "brand2", State: model.StateInactive},
		},
		{
			name:     "state only keeps name and brand",
			update:   model.DeviceUpdate{State: model.Some(model.StateInUse)},
			expected: model.Device{Name: "name1", Brand: "brand1", State: model.StateInUse},
		},
		{
			name:     "empty update changes nothing",
			update:   model.DeviceUpdate{},
			expected: model.Device{Name: "name1", Brand: "brand1", State: model.StateAvailable},
		},
		{
			name:     "blank name is ignored",
			update:   model.DeviceUpdate{Name: model.Some("  "), Brand: model.Some("brand2")},
			expected: model.Device{Name: "name1", Brand: "brand2", State: model.StateAvailable},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			device := &model.Device{Name: "name1", Brand: "brand1", State: model.StateAvailable}

			tc.update.ApplyTo(device)

			require.Equal(t, tc.expected, *device)
		})
	}
}

func TestDeviceUpdate_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		update         model.DeviceUpdate
		requireAll     bool
		expectedFields []string
	}{
		{
			name:       "complete full update is valid",
			update:     model.FullUpdate("name", "brand", model.StateAvailable),
			requireAll: true,
		},
		{
			name:           "full update with missing fields",
			update:         model.DeviceUpdate{Name: model.Some("name")},
			requireAll:     true,
			expectedFields: []string{"brand", "state"},
		},
		{
			name:           "full update with blank name",
			update:         model.FullUpdate(" ", "brand", model.StateAvailable),
			requireAll:     true,
			expectedFields: []string{"name"},
		},
		{
			name:           "full update with an over-long brand",
			update:         model.FullUpdate("name", strings.Repeat("b", model.MaxTextLength+1), model.StateAvailable),
			requireAll:     true,
			expectedFields: []string{"brand"},
		},
		{
			name:           "partial update with an over-long name",
			update:         model.DeviceUpdate{Name: model.Some(strings.Repeat("n", 256))},
			expectedFields: []string{"name"},
		},
		{
			name:   "partial update with a subset is valid",
			update: model.DeviceUpdate{State: model.Some(model.StateInUse)},
		},
		{
			name:   "empty partial update is valid",
			update: model.DeviceUpdate{},
		},
		{
			name:           "partial update with blank brand",
			update:         model.DeviceUpdate{Brand: model.Some("")},
			expectedFields: []string{"brand"},
		},
		{
			name:           "partial update with unknown state",
			update:         model.DeviceUpdate{State: model.Some(model.State("BROKEN"))},
			expectedFields: []string{"state"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.update.Validate(tc.requireAll)

			if len(tc.expectedFields) == 0 {
				require.NoError(t, err)

				return
			}

			var validationErrs *model.ValidationErrors
			require.ErrorAs(t, err, &validationErrs)

			fields := make([]string, 0, len(validationErrs.Errors))
			for _, e := range validationErrs.Errors {
				fields = append(fields, e.Field)
			}

			require.Equal(t, tc.expectedFields, fields)
		})
	}
}

func TestDeviceUpdate_IsEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, model.DeviceUpdate{}.IsEmpty())
	require.False(t, model.DeviceUpdate{Name: model.Some("")}.IsEmpty())
}
