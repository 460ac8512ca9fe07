package model

// DeviceUpdate carries the fields of an update request. Unset fields keep
// their current value when applied.
type DeviceUpdate struct {
	Name  Optional[string]
	Brand Optional[string]
	State Optional[State]
}

// FullUpdate builds an update that replaces every mutable field.
func FullUpdate(name, brand string, state State) DeviceUpdate {
	return DeviceUpdate{
		Name:  Some(name),
		Brand: Some(brand),
		State: Some(state),
	}
}

func (u DeviceUpdate) IsEmpty() bool {
	return !u.Name.IsSet() && !u.Brand.IsSet() && !u.State.IsSet()
}

// Validate checks the supplied fields. With requireAll every field must be
// present, as for a full replacement.
func (u DeviceUpdate) Validate(requireAll bool) error {
	errs := NewValidationErrors()

	if name, ok := u.Name.Get(); ok {
		validateText(errs, FieldName, name)
	} else if requireAll {
		errs.Add(FieldName, "name is required", "REQUIRED")
	}

	if brand, ok := u.Brand.Get(); ok {
		validateText(errs, FieldBrand, brand)
	} else if requireAll {
		errs.Add(FieldBrand, "brand is required", "REQUIRED")
	}

	if state, ok := u.State.Get(); ok {
		if !state.IsValid() {
			errs.Add(FieldState, "state must be one of AVAILABLE, IN_USE, INACTIVE", "INVALID_STATE")
		}
	} else if requireAll {
		errs.Add(FieldState, "state is required", "REQUIRED")
	}

	return errs.OrNil()
}

// ApplyTo merges the supplied fields into the device. Blank names and brands
// are treated as not supplied.
func (u DeviceUpdate) ApplyTo(device *Device) {
	if hasText(u.Name) {
		device.Name, _ = u.Name.Get()
	}

	if hasText(u.Brand) {
		device.Brand, _ = u.Brand.Get()
	}

	if state, ok := u.State.Get(); ok {
		device.State = state
	}
}
