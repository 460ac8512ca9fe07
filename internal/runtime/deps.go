package runtime

import (
	"context"
	"fmt"
	"net/http"

	inboundgrpc "github.com/architeacher/device-catalog/internal/adapters/inbound/grpc"
	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/internal/infrastructure"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/internal/usecases"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/throttled/throttled/v2"
	otelTrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

type (
	infrastructureDep struct {
		httpServer     *http.Server
		grpcServer     *grpc.Server
		healthProber   *inboundgrpc.HealthProber
		tracerProvider otelTrace.TracerProvider
		metricsClient  metrics.Client
		logger         logger.Logger
		dbPool         *pgxpool.Pool
		cacheClient    *infrastructure.KeydbClient
	}

	repositories struct {
		secretsRepo     ports.SecretsRepository
		devicesStore    ports.DevicesStore
		dbHealthChecker ports.DatabaseHealthChecker
		devicesCache    ports.DevicesCache
		idempotencyRepo ports.IdempotencyCache
		rateLimitStore  throttled.GCRAStoreCtx
	}

	dependencies struct {
		config *config.ServiceConfig

		infra infrastructureDep

		repos repositories

		devicesService ports.DevicesService

		app *usecases.Application

		cleanupFuncs map[string]func(ctx context.Context) error
	}

	DependencyOption func(*dependencies) error
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*dependencies, error) {
	deps := &dependencies{
		cleanupFuncs: make(map[string]func(ctx context.Context) error),
	}

	allOpts := append(defaultOptions(ctx), opts...)

	for _, opt := range allOpts {
		if err := opt(deps); err != nil {
			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return deps, nil
}
