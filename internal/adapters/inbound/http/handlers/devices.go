package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/architeacher/device-catalog/internal/domain/model"
	"github.com/architeacher/device-catalog/internal/usecases"
	"github.com/architeacher/device-catalog/internal/usecases/commands"
	"github.com/architeacher/device-catalog/internal/usecases/queries"
	"github.com/architeacher/device-catalog/pkg/decorator"
	"github.com/go-chi/chi/v5"
)

const (
	deviceIDParam  = "id"
	maxRequestBody = 1 << 20
)

type (
	createDeviceRequest struct {
		Name  string `json:"name"`
		Brand string `json:"brand"`
		State string `json:"state"`
	}

	// patchDeviceRequest uses pointers so absent fields can be told apart
	// from empty ones.
	patchDeviceRequest struct {
		Name  *string `json:"name"`
		Brand *string `json:"brand"`
		State *string `json:"state"`
	}

	DeviceHandler struct {
		app *usecases.Application
	}
)

func NewDeviceHandler(app *usecases.Application) *DeviceHandler {
	return &DeviceHandler{app: app}
}

func (h *DeviceHandler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	state, err := parseStateField(req.State)
	if err != nil {
		writeDomainError(w, err)

		return
	}

	device, err := h.app.Commands.CreateDevice.Handle(r.Context(), commands.CreateDeviceCommand{
		Name:  req.Name,
		Brand: req.Brand,
		State: state,
	})
	if err != nil {
		writeDomainError(w, err)

		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/devices/%s", device.ID))
	writeJSON(w, http.StatusCreated, toDeviceResponse(device))
}

func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDFromPath(w, r)
	if !ok {
		return
	}

	ctx := decorator.TrackCacheStatus(r.Context())

	device, err := h.app.Queries.GetDevice.Execute(ctx, queries.GetDeviceQuery{ID: id})

	w.Header().Set(cacheStatusHeader, string(decorator.GetCacheStatus(ctx)))

	if err != nil {
		writeDomainError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, toDeviceResponse(device))
}

// SearchDevices lists devices filtered by brand and state. Without any
// parameter it returns the first page of every device.
func (h *DeviceHandler) SearchDevices(w http.ResponseWriter, r *http.Request) {
	filter, page, details := parseSearchParams(r.URL.Query())
	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "invalid query parameters", details...)

		return
	}

	ctx := decorator.TrackCacheStatus(r.Context())

	result, err := h.app.Queries.SearchDevices.Execute(ctx, queries.SearchDevicesQuery{
		Filter: filter,
		Page:   page,
	})

	w.Header().Set(cacheStatusHeader, string(decorator.GetCacheStatus(ctx)))

	if err != nil {
		writeDomainError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, toDevicePageResponse(result))
}

// UpdateDevice replaces name, brand and state. All three are required.
func (h *DeviceHandler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDFromPath(w, r)
	if !ok {
		return
	}

	var req createDeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	state, err := parseStateField(req.State)
	if err != nil {
		writeDomainError(w, err)

		return
	}

	device, err := h.app.Commands.UpdateDevice.Handle(r.Context(), commands.UpdateDeviceCommand{
		ID:    id,
		Name:  req.Name,
		Brand: req.Brand,
		State: state,
	})
	if err != nil {
		writeDomainError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, toDeviceResponse(device))
}

// PatchDevice changes only the fields present in the body.
func (h *DeviceHandler) PatchDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDFromPath(w, r)
	if !ok {
		return
	}

	var req patchDeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	update := model.DeviceUpdate{
		Name:  model.FromPtr(req.Name),
		Brand: model.FromPtr(req.Brand),
	}

	if req.State != nil {
		state, err := parseStateField(*req.State)
		if err != nil {
			writeDomainError(w, err)

			return
		}

		update.State = model.Some(state)
	}

	device, err := h.app.Commands.PatchDevice.Handle(r.Context(), commands.PatchDeviceCommand{
		ID:     id,
		Update: update,
	})
	if err != nil {
		writeDomainError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, toDeviceResponse(device))
}

func (h *DeviceHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.app.Commands.DeleteDevice.Handle(r.Context(), commands.DeleteDeviceCommand{ID: id}); err != nil {
		writeDomainError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func deviceIDFromPath(w http.ResponseWriter, r *http.Request) (model.DeviceID, bool) {
	id, err := model.ParseDeviceID(chi.URLParam(r, deviceIDParam))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidID, msgInvalidDeviceID)

		return model.DeviceID{}, false
	}

	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, msgInvalidRequestBody,
			errorDetail{Message: err.Error()})

		return false
	}

	return true
}

// parseStateField leaves an empty state to the use case validation, which
// reports it alongside the other missing fields.
func parseStateField(raw string) (model.State, error) {
	if raw == "" {
		return model.State(""), nil
	}

	state, err := model.ParseState(raw)
	if err != nil {
		errs := model.NewValidationErrors()
		errs.Add(model.FieldState, "state must be one of AVAILABLE, IN_USE, INACTIVE", codeInvalidState)

		return "", errs
	}

	return state, nil
}

func parseSearchParams(values url.Values) (model.DeviceFilter, model.PageRequest, []errorDetail) {
	var (
		filter  model.DeviceFilter
		page    = model.DefaultPageRequest()
		details []errorDetail
	)

	if brand := values.Get(model.FieldBrand); brand != "" {
		filter.Brand = model.Some(brand)
	}

	if raw := values.Get(model.FieldState); raw != "" {
		state, err := model.ParseState(raw)
		if err != nil {
			details = append(details, errorDetail{Field: model.FieldState, Message: err.Error(), Code: codeInvalidState})
		} else {
			filter.State = model.Some(state)
		}
	}

	if raw := values.Get("page"); raw != "" {
		number, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			details = append(details, errorDetail{Field: "page", Message: "page must be a non-negative integer", Code: codeInvalidQuery})
		} else {
			page.Page = uint(number)
		}
	}

	if raw := values.Get("size"); raw != "" {
		size, err := strconv.ParseUint(raw, 10, 32)

		switch {
		case err != nil, size == 0:
			details = append(details, errorDetail{Field: "size", Message: "size must be a positive integer", Code: codeInvalidQuery})
		case uint(size) > model.MaxPageSize:
			details = append(details, errorDetail{
				Field:   "size",
				Message: fmt.Sprintf("size must not exceed %d", model.MaxPageSize),
				Code:    codeInvalidQuery,
			})
		default:
			page.Size = uint(size)
		}
	}

	for _, raw := range values["sort"] {
		field := model.ParseSortField(raw)
		if field.Field == "" {
			details = append(details, errorDetail{Field: "sort", Message: "sort field must not be empty", Code: codeInvalidQuery})

			continue
		}

		page.Sort = append(page.Sort, field)
	}

	return filter, page, details
}
