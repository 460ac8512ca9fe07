package model

import "strings"

// Optional distinguishes a value that was not supplied from one that was
// supplied as its zero value.
type Optional[T any] struct {
	value T
	set   bool
}

func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, set: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

// FromPtr maps nil to None and anything else to Some.
func FromPtr[T any](ptr *T) Optional[T] {
	if ptr == nil {
		return None[T]()
	}

	return Some(*ptr)
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// hasText reports whether the optional holds a string with at least one
// non-whitespace character.
func hasText(o Optional[string]) bool {
	value, ok := o.Get()

	return ok && strings.TrimSpace(value) != ""
}
