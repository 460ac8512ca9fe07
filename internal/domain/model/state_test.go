package model_test

import (
	"testing"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestState_IsValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		state    model.State
		expected bool
	}{
		{name: "available is valid", state: model.StateAvailable, expected: true},
		{name: "in use is valid", state: model.StateInUse, expected: true},
		{name: "inactive is valid", state: model.StateInactive, expected: true},
		{name: "empty string is invalid", state: model.State(""), expected: false},
		{name: "lowercase is not canonical", state: model.State("available"), expected: false},
		{name: "unknown state is invalid", state: model.State("BROKEN"), expected: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, tc.state.IsValid())
		})
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		input         string
		expectedState model.State
		expectError   bool
	}{
		{name: "canonical available", input: "AVAILABLE", expectedState: model.StateAvailable},
		{name: "lowercase available", input: "available", expectedState: model.StateAvailable},
		{name: "canonical in use", input: "IN_USE", expectedState: model.StateInUse},
		{name: "dashed in use", input: "in-use", expectedState: model.StateInUse},
		{name: "mixed case inactive", input: "Inactive", expectedState: model.StateInactive},
		{name: "surrounding whitespace", input: "  available  ", expectedState: model.StateAvailable},
		{name: "unknown value", input: "broken", expectError: true},
		{name: "empty string", input: "", expectError: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			state, err := model.ParseState(tc.input)

			if tc.expectError {
				require.ErrorIs(t, err, model.ErrInvalidState)
				require.Empty(t, state)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expectedState, state)
		})
	}
}

func TestAllStates(t *testing.T) {
	t.Parallel()

	states := model.AllStates()

	require.Len(t, states, 3)
	require.Contains(t, states, model.StateAvailable)
	require.Contains(t, states, model.StateInUse)
	require.Contains(t, states, model.StateInactive)
}
