package model

type SpecOperator string

const (
	SpecOpEq      SpecOperator = "eq"
	SpecOpMust    SpecOperator = "must"
	SpecOpShould  SpecOperator = "should"
	SpecOpMustNot SpecOperator = "must_not"
)

// Specification is a predicate tree over devices. It can be evaluated in
// memory or translated by a storage adapter.
type Specification interface {
	Must(other Specification) Specification
	Should(other Specification) Specification
	MustNot() Specification
	IsComposite() bool
	Children() []Specification
	Operator() SpecOperator
	Field() string
	Value() any
	IsSatisfiedBy(device *Device) bool
}
