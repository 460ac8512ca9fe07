package model

// DeviceFilter holds the optional search criteria for devices.
type DeviceFilter struct {
	Brand Optional[string]
	State Optional[State]
}

// BuildFilter turns the supplied criteria into a conjunction. A blank brand is
// ignored; no criteria yields an empty conjunction that matches every device.
func BuildFilter(filter DeviceFilter) Specification {
	specs := make([]Specification, 0, 2)

	if hasText(filter.Brand) {
		brand, _ := filter.Brand.Get()
		specs = append(specs, Eq(FieldBrand, brand))
	}

	if state, ok := filter.State.Get(); ok {
		specs = append(specs, Eq(FieldState, state.String()))
	}

	return Must(specs...)
}
