package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/architeacher/device-catalog/internal/domain/model"
)

const (
	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"
	cacheStatusHeader = "X-Cache"

	codeNotFound       = "NOT_FOUND"
	codeStateViolation = "STATE_VIOLATION"
	codeDuplicate      = "DUPLICATE"
	codeValidation     = "VALIDATION_FAILED"
	codeInvalidID      = "INVALID_ID"
	codeInvalidState   = "INVALID_STATE"
	codeInvalidJSON    = "INVALID_JSON"
	codeInvalidQuery   = "INVALID_QUERY"
	codeInternalError  = "INTERNAL_ERROR"

	msgDeviceNotFound     = "device not found"
	msgInvalidDeviceID    = "invalid device ID"
	msgInvalidRequestBody = "invalid request body"
	msgDuplicateDevice    = "device already exists"
	msgInternalError      = "internal server error"
)

type (
	deviceResponse struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Brand     string    `json:"brand"`
		State     string    `json:"state"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	devicePageResponse struct {
		Content       []deviceResponse `json:"content"`
		Number        uint             `json:"number"`
		Size          uint             `json:"size"`
		TotalPages    uint             `json:"totalPages"`
		TotalElements uint64           `json:"totalElements"`
	}

	errorDetail struct {
		Field   string `json:"field,omitempty"`
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	}

	errorResponse struct {
		Code      string        `json:"code"`
		Message   string        `json:"message"`
		Details   []errorDetail `json:"details"`
		Timestamp time.Time     `json:"timestamp"`
	}
)

func toDeviceResponse(device *model.Device) deviceResponse {
	return deviceResponse{
		ID:        device.ID.String(),
		Name:      device.Name,
		Brand:     device.Brand,
		State:     device.State.String(),
		CreatedAt: device.CreatedAt,
		UpdatedAt: device.UpdatedAt,
	}
}

func toDevicePageResponse(page *model.DevicePage) devicePageResponse {
	content := make([]deviceResponse, 0, len(page.Devices))
	for _, device := range page.Devices {
		content = append(content, toDeviceResponse(device))
	}

	return devicePageResponse{
		Content:       content,
		Number:        page.Number,
		Size:          page.Size,
		TotalPages:    page.TotalPages,
		TotalElements: page.TotalElements,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set(contentTypeHeader, applicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...errorDetail) {
	if details == nil {
		details = []errorDetail{}
	}

	writeJSON(w, status, errorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

// writeDomainError maps errors returned by the use cases onto HTTP statuses.
// Anything unrecognized is hidden behind a 500; the use case decorators have
// already logged it.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		violation   *model.StateViolationError
		validations *model.ValidationErrors
	)

	switch {
	case errors.As(err, &validations):
		details := make([]errorDetail, 0, len(validations.Errors))
		for _, v := range validations.Errors {
			details = append(details, errorDetail{Field: v.Field, Message: v.Message, Code: v.Code})
		}

		writeError(w, http.StatusBadRequest, codeValidation, validations.Error(), details...)

	case errors.As(err, &violation):
		writeError(w, http.StatusConflict, codeStateViolation, violation.Message, errorDetail{
			Message: violation.Message,
			Code:    violation.Operation,
		})

	case errors.Is(err, model.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, msgDeviceNotFound)

	case errors.Is(err, model.ErrDuplicateDevice):
		writeError(w, http.StatusConflict, codeDuplicate, msgDuplicateDevice)

	case errors.Is(err, model.ErrInvalidDeviceID):
		writeError(w, http.StatusBadRequest, codeInvalidID, msgInvalidDeviceID)

	case errors.Is(err, model.ErrInvalidState):
		writeError(w, http.StatusBadRequest, codeInvalidState, err.Error())

	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, msgInternalError)
	}
}
