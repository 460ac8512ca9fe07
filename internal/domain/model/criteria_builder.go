package model

type CriteriaBuilder struct {
	specs   []Specification
	sorting []SortField
	page    uint
	size    uint
}

func NewCriteria() *CriteriaBuilder {
	return &CriteriaBuilder{
		specs: make([]Specification, 0),
		size:  DefaultPageSize,
	}
}

func (b *CriteriaBuilder) WhereSpec(spec Specification) *CriteriaBuilder {
	b.specs = append(b.specs, spec)

	return b
}

func (b *CriteriaBuilder) OrderBy(field string) *CriteriaBuilder {
	return b.OrderByField(ParseSortField(field))
}

func (b *CriteriaBuilder) OrderByField(sort SortField) *CriteriaBuilder {
	if sort.Field == "" {
		return b
	}

	b.sorting = append(b.sorting, sort)

	return b
}

// Paginate sets a 0-based page. A zero size keeps the default.
func (b *CriteriaBuilder) Paginate(page, size uint) *CriteriaBuilder {
	b.page = page

	if size > 0 {
		b.size = size
	}

	return b
}

func (b *CriteriaBuilder) Build() Criteria {
	var rootSpec Specification

	if len(b.specs) == 1 {
		rootSpec = b.specs[0]
	} else if len(b.specs) > 1 {
		rootSpec = Must(b.specs...)
	}

	return Criteria{
		spec:    rootSpec,
		sorting: b.sorting,
		page:    b.page,
		size:    b.size,
	}
}
