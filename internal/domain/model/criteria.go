package model

// Criteria bundles a filter with the page to return. The filter is applied
// before the page is cut.
type Criteria struct {
	spec    Specification
	sorting []SortField
	page    uint
	size    uint
}

func (c Criteria) Spec() Specification  { return c.spec }
func (c Criteria) Sorting() []SortField { return c.sorting }
func (c Criteria) Page() uint           { return c.page }
func (c Criteria) Size() uint           { return c.size }
func (c Criteria) Offset() uint         { return c.PageRequest().Offset() }
func (c Criteria) HasSpec() bool        { return c.spec != nil }
func (c Criteria) HasSorting() bool     { return len(c.sorting) > 0 }
func (c Criteria) HasPagination() bool  { return c.size > 0 }

func (c Criteria) PageRequest() PageRequest {
	return PageRequest{Page: c.page, Size: c.size, Sort: c.sorting}
}

// Matches evaluates the filter in memory. Criteria without a filter match
// every device.
func (c Criteria) Matches(device *Device) bool {
	if !c.HasSpec() {
		return true
	}

	return c.spec.IsSatisfiedBy(device)
}

// FromDeviceFilter combines the filter built from the search parameters with
// the page request.
func FromDeviceFilter(filter DeviceFilter, page PageRequest) Criteria {
	builder := NewCriteria().WhereSpec(BuildFilter(filter))

	for _, sort := range page.Sort {
		builder.OrderByField(sort)
	}

	if len(page.Sort) == 0 {
		builder.OrderBy("-" + FieldCreatedAt)
	}

	return builder.Paginate(page.Page, page.Size).Build()
}
