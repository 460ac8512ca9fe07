package model

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Field names understood by specifications and sort requests.
const (
	FieldID        = "id"
	FieldName      = "name"
	FieldBrand     = "brand"
	FieldState     = "state"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// MaxTextLength is the longest name or brand, in characters, the devices
// table stores.
const MaxTextLength = 255

type DeviceID struct {
	uuid.UUID
}

func NewDeviceID() DeviceID {
	return DeviceID{UUID: uuid.Must(uuid.NewV7())}
}

func ParseDeviceID(s string) (DeviceID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return DeviceID{}, ErrInvalidDeviceID
	}

	return DeviceID{UUID: id}, nil
}

func (d DeviceID) String() string {
	return d.UUID.String()
}

func (d DeviceID) IsZero() bool {
	return d.UUID == uuid.Nil
}

type Device struct {
	ID        DeviceID
	Name      string
	Brand     string
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewDevice(name, brand string, state State) *Device {
	now := time.Now().UTC()

	return &Device{
		ID:        NewDeviceID(),
		Name:      name,
		Brand:     brand,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateNewDevice checks the fields required to create a device.
func ValidateNewDevice(name, brand string, state State) error {
	errs := NewValidationErrors()

	validateText(errs, FieldName, name)
	validateText(errs, FieldBrand, brand)

	if !state.IsValid() {
		errs.Add(FieldState, "state must be one of AVAILABLE, IN_USE, INACTIVE", "INVALID_STATE")
	}

	return errs.OrNil()
}

func (d *Device) IsInUse() bool {
	return d.State == StateInUse
}

func (d *Device) Touch() {
	d.UpdatedAt = time.Now().UTC()
}

func (d *Device) Clone() *Device {
	clone := *d

	return &clone
}

// FieldValue returns the comparable value of a named field.
func (d *Device) FieldValue(field string) (any, bool) {
	switch field {
	case FieldID:
		return d.ID.String(), true
	case FieldName:
		return d.Name, true
	case FieldBrand:
		return d.Brand, true
	case FieldState:
		return d.State.String(), true
	case FieldCreatedAt:
		return d.CreatedAt, true
	case FieldUpdatedAt:
		return d.UpdatedAt, true
	default:
		return nil, false
	}
}

func validateText(errs *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, field+" must not be blank", "REQUIRED")

		return
	}

	if utf8.RuneCountInString(value) > MaxTextLength {
		errs.Add(field, field+" must be at most "+strconv.Itoa(MaxTextLength)+" characters", "TOO_LONG")
	}
}
