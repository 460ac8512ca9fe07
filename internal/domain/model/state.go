package model

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of a device. The set is closed.
type State string

const (
	StateAvailable State = "AVAILABLE"
	StateInUse     State = "IN_USE"
	StateInactive  State = "INACTIVE"
)

func (s State) String() string {
	return string(s)
}

func (s State) IsValid() bool {
	switch s {
	case StateAvailable, StateInUse, StateInactive:
		return true
	default:
		return false
	}
}

// ParseState accepts the canonical names in any case, and the dashed
// spelling ("in-use") as an alias of the underscored one.
func ParseState(s string) (State, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")

	state := State(normalized)
	if !state.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}

	return state, nil
}

func AllStates() []State {
	return []State{StateAvailable, StateInUse, StateInactive}
}
