package model

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrStateViolation     = errors.New("device state violation")
	ErrInvalidDeviceID    = errors.New("invalid device ID")
	ErrInvalidState       = errors.New("invalid device state")
	ErrDuplicateDevice    = errors.New("device already exists")
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
)

const (
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// StateViolationError is returned when a device's lifecycle state forbids the
// requested operation.
type StateViolationError struct {
	Operation string
	DeviceID  DeviceID
	Message   string
}

func newStateViolation(operation string, id DeviceID, message string) *StateViolationError {
	return &StateViolationError{
		Operation: operation,
		DeviceID:  id,
		Message:   message,
	}
}

func (e *StateViolationError) Error() string {
	return e.Message
}

func (e *StateViolationError) Unwrap() error {
	return ErrStateViolation
}

type ValidationError struct {
	Field   string
	Message string
	Code    string
}

type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}

	if len(v.Errors) == 1 {
		return v.Errors[0].Message
	}

	return fmt.Sprintf("%s (and %d more)", v.Errors[0].Message, len(v.Errors)-1)
}

func (v *ValidationErrors) Add(field, message, code string) {
	v.Errors = append(v.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// OrNil returns nil when nothing was collected, so callers can return it
// directly as an error.
func (v *ValidationErrors) OrNil() error {
	if !v.HasErrors() {
		return nil
	}

	return v
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ValidationError, 0),
	}
}
