package model

type baseSpec struct {
	self Specification
}

func (b *baseSpec) setSelf(s Specification) { b.self = s }

func (b *baseSpec) Must(other Specification) Specification {
	return &mustSpec{specs: []Specification{b.self, other}}
}
func (b *baseSpec) Should(other Specification) Specification {
	return &shouldSpec{specs: []Specification{b.self, other}}
}
func (b *baseSpec) MustNot() Specification    { return &mustNotSpec{spec: b.self} }
func (b *baseSpec) IsComposite() bool         { return false }
func (b *baseSpec) Children() []Specification { return nil }

type eqSpec struct {
	baseSpec
	field string
	value any
}

func Eq(field string, value any) Specification {
	s := &eqSpec{field: field, value: value}
	s.setSelf(s)

	return s
}

func (s *eqSpec) Operator() SpecOperator { return SpecOpEq }
func (s *eqSpec) Field() string          { return s.field }
func (s *eqSpec) Value() any             { return s.value }

// IsSatisfiedBy compares exactly; string comparison is case-sensitive and
// unknown fields never match.
func (s *eqSpec) IsSatisfiedBy(device *Device) bool {
	if device == nil {
		return false
	}

	actual, ok := device.FieldValue(s.field)
	if !ok {
		return false
	}

	return actual == s.value
}
