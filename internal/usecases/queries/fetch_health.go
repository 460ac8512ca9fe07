package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/pkg/decorator"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

type (
	FetchHealthReportQuery struct{}

	HealthResult struct {
		Status       string                            `json:"status"`
		Version      string                            `json:"version"`
		CommitSHA    string                            `json:"commitSha,omitempty"`
		Uptime       string                            `json:"uptime"`
		Dependencies map[string]ports.DependencyStatus `json:"dependencies"`
	}

	// BuildInfo identifies the running binary in health reports.
	BuildInfo struct {
		Version   string
		CommitSHA string
		Storage   string
	}

	FetchHealthReportQueryHandler = decorator.QueryHandler[FetchHealthReportQuery, *HealthResult]

	fetchHealthReportQueryHandler struct {
		dbHealthChecker    ports.DatabaseHealthChecker
		cacheHealthChecker ports.CacheHealthChecker
		build              BuildInfo
		startTime          time.Time
	}
)

// NewFetchHealthReportQueryHandler reports unhealthy when the store is down
// and degraded when only the optional cache is. cacheHealthChecker may be nil.
func NewFetchHealthReportQueryHandler(
	dbHealthChecker ports.DatabaseHealthChecker,
	cacheHealthChecker ports.CacheHealthChecker,
	build BuildInfo,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) FetchHealthReportQueryHandler {
	return decorator.ApplyQueryDecorators[FetchHealthReportQuery, *HealthResult](
		fetchHealthReportQueryHandler{
			dbHealthChecker:    dbHealthChecker,
			cacheHealthChecker: cacheHealthChecker,
			build:              build,
			startTime:          time.Now(),
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h fetchHealthReportQueryHandler) Execute(ctx context.Context, _ FetchHealthReportQuery) (*HealthResult, error) {
	dependencies := make(map[string]ports.DependencyStatus, 2)

	start := time.Now()
	dbErr := h.dbHealthChecker.Ping(ctx)

	dbStatus := ports.DependencyStatus{
		Healthy: dbErr == nil,
		Latency: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
	}
	if dbErr != nil {
		dbStatus.Message = dbErr.Error()
	}

	storage := h.build.Storage
	if storage == "" {
		storage = "storage"
	}
	dependencies[storage] = dbStatus

	status := HealthStatusHealthy
	if !dbStatus.Healthy {
		status = HealthStatusUnhealthy
	}

	if h.cacheHealthChecker != nil {
		start = time.Now()
		cacheHealthy := h.cacheHealthChecker.IsHealthy(ctx)

		cacheStatus := ports.DependencyStatus{
			Healthy: cacheHealthy,
			Latency: fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		}
		if !cacheHealthy {
			cacheStatus.Message = "cache unreachable"

			if status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
		}

		dependencies["cache"] = cacheStatus
	}

	return &HealthResult{
		Status:       status,
		Version:      h.build.Version,
		CommitSHA:    h.build.CommitSHA,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Dependencies: dependencies,
	}, nil
}
