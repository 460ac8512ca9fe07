package model

import "strings"

const (
	msgUpdateInUse = "device must not be in IN_USE state"
	msgDeleteInUse = "device cannot be deleted while in IN_USE state"
)

// AuthorizeUpdate decides whether the proposed name and brand may be applied
// to the current device. A proposal that is absent, blank, or equal to the
// current value is not a change. State is never guarded.
func AuthorizeUpdate(current Device, name, brand Optional[string]) error {
	if !current.IsInUse() {
		return nil
	}

	if proposesChange(current.Name, name) || proposesChange(current.Brand, brand) {
		return newStateViolation(OperationUpdate, current.ID, msgUpdateInUse)
	}

	return nil
}

// AuthorizeDelete rejects removal of a device that is in use.
func AuthorizeDelete(current Device) error {
	if current.IsInUse() {
		return newStateViolation(OperationDelete, current.ID, msgDeleteInUse)
	}

	return nil
}

func proposesChange(current string, proposed Optional[string]) bool {
	value, ok := proposed.Get()
	if !ok || strings.TrimSpace(value) == "" {
		return false
	}

	return value != current
}
