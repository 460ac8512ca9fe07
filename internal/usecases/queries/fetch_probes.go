package queries

import (
	"context"
	"time"

	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/pkg/decorator"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	ProbeStatusOK          = "ok"
	ProbeStatusUnavailable = "unavailable"

	// readinessTimeout caps the store ping so a hung connection fails the
	// probe instead of the orchestrator's own timeout.
	readinessTimeout = 2 * time.Second
)

type (
	FetchLivenessQuery struct{}

	LivenessResult struct {
		Status string `json:"status"`
	}

	FetchLivenessQueryHandler = decorator.QueryHandler[FetchLivenessQuery, *LivenessResult]

	fetchLivenessQueryHandler struct{}

	FetchReadinessQuery struct{}

	ReadinessResult struct {
		Status  string `json:"status"`
		Ready   bool   `json:"ready"`
		Storage string `json:"storage"`
		Reason  string `json:"reason,omitempty"`
	}

	FetchReadinessQueryHandler = decorator.QueryHandler[FetchReadinessQuery, *ReadinessResult]

	fetchReadinessQueryHandler struct {
		dbHealthChecker ports.DatabaseHealthChecker
		storage         string
	}
)

// NewFetchLivenessQueryHandler answers as long as the process can serve.
func NewFetchLivenessQueryHandler(
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) FetchLivenessQueryHandler {
	return decorator.ApplyQueryDecorators[FetchLivenessQuery, *LivenessResult](
		fetchLivenessQueryHandler{},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h fetchLivenessQueryHandler) Execute(context.Context, FetchLivenessQuery) (*LivenessResult, error) {
	return &LivenessResult{Status: ProbeStatusOK}, nil
}

// NewFetchReadinessQueryHandler reports ready only while the device store
// answers. The cache is optional and never affects readiness.
func NewFetchReadinessQueryHandler(
	dbHealthChecker ports.DatabaseHealthChecker,
	storage string,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) FetchReadinessQueryHandler {
	return decorator.ApplyQueryDecorators[FetchReadinessQuery, *ReadinessResult](
		fetchReadinessQueryHandler{dbHealthChecker: dbHealthChecker, storage: storage},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h fetchReadinessQueryHandler) Execute(ctx context.Context, _ FetchReadinessQuery) (*ReadinessResult, error) {
	pingCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	if err := h.dbHealthChecker.Ping(pingCtx); err != nil {
		return &ReadinessResult{
			Status:  ProbeStatusUnavailable,
			Storage: h.storage,
			Reason:  err.Error(),
		}, nil
	}

	return &ReadinessResult{
		Status:  ProbeStatusOK,
		Ready:   true,
		Storage: h.storage,
	}, nil
}
