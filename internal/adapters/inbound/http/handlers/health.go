package handlers

import (
	"net/http"
	"time"

	"github.com/architeacher/device-catalog/internal/usecases"
	"github.com/architeacher/device-catalog/internal/usecases/queries"
)

type (
	probeResponse struct {
		Status    string    `json:"status"`
		Storage   string    `json:"storage,omitempty"`
		Reason    string    `json:"reason,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}

	HealthHandler struct {
		app *usecases.Application
	}
)

func NewHealthHandler(app *usecases.Application) *HealthHandler {
	return &HealthHandler{app: app}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Queries.FetchLiveness.Execute(r.Context(), queries.FetchLivenessQuery{})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, probeResponse{Status: "down", Timestamp: time.Now().UTC()})

		return
	}

	writeJSON(w, http.StatusOK, probeResponse{Status: result.Status, Timestamp: time.Now().UTC()})
}

// Readiness answers 503 while the device store is unreachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Queries.FetchReadiness.Execute(r.Context(), queries.FetchReadinessQuery{})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, probeResponse{Status: queries.ProbeStatusUnavailable, Timestamp: time.Now().UTC()})

		return
	}

	status := http.StatusOK
	if !result.Ready {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, probeResponse{
		Status:    result.Status,
		Storage:   result.Storage,
		Reason:    result.Reason,
		Timestamp: time.Now().UTC(),
	})
}

// Health reports every dependency. A degraded service still answers 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Queries.FetchHealthReport.Execute(r.Context(), queries.FetchHealthReportQuery{})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, probeResponse{
			Status:    queries.HealthStatusUnhealthy,
			Timestamp: time.Now().UTC(),
		})

		return
	}

	status := http.StatusOK
	if result.Status == queries.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, result)
}
