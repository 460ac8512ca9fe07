package http

import (
	"errors"
	"net/http"

	"github.com/architeacher/device-catalog/internal/adapters/inbound/http/handlers"
	"github.com/architeacher/device-catalog/internal/adapters/inbound/http/middleware"
	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/architeacher/device-catalog/internal/usecases"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/throttled/throttled/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	baseURL = "/v1"
)

type RouterConfig struct {
	App           *usecases.Application
	Logger        logger.Logger
	MetricsClient metrics.Client
	Config        *config.ServiceConfig

	// IdempotencyCache is nil when the cache is disabled.
	IdempotencyCache ports.IdempotencyCache
	RateLimitStore   throttled.GCRAStoreCtx
}

func NewRouter(cfg RouterConfig) (http.Handler, error) {
	router := chi.NewRouter()

	// Core middlewares - always applied
	router.Use(middleware.RequestTracking())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(chimiddleware.Timeout(cfg.Config.HTTPServer.WriteTimeout))
	router.Use(middleware.SecurityHeaders(cfg.Config.App.APIVersion))
	router.Use(middleware.CORS(cfg.Config.HTTPServer.CORSOrigins))

	// Access logging with health check filtering
	if cfg.Config.Logging.AccessLog.Enabled {
		healthFilter := middleware.NewHealthCheckFilter(cfg.Config.Logging.AccessLog.LogHealthChecks)

		router.Use(healthFilter.Middleware)
		router.Use(middleware.AccessLogger(cfg.Logger, cfg.Config.Logging.AccessLog.IncludeQueryParams))
		cfg.Logger.Info().
			Bool("log_health_checks", cfg.Config.Logging.AccessLog.LogHealthChecks).
			Msg("structured access logging enabled")
	}

	if cfg.Config.Telemetry.Metrics.Enabled {
		metricsMiddleware := middleware.NewMetricsMiddleware(cfg.MetricsClient)
		router.Use(metricsMiddleware.Middleware)
		cfg.Logger.Info().Msg("HTTP metrics collection enabled")
	}

	if cfg.Config.ThrottledRateLimiting.Enabled {
		if cfg.RateLimitStore == nil {
			return nil, errors.New("rate limiting is enabled without a store")
		}

		rateLimiter, err := middleware.RateLimiting(cfg.Config.ThrottledRateLimiting, cfg.RateLimitStore, cfg.Logger)
		if err != nil {
			return nil, err
		}

		router.Use(rateLimiter)
		cfg.Logger.Info().
			Uint("requests_per_second", cfg.Config.ThrottledRateLimiting.RequestsPerSecond).
			Uint("burst", cfg.Config.ThrottledRateLimiting.BurstSize).
			Msg("rate limiting enabled")
	}

	router.Use(middleware.Compression(cfg.Config.Compression, cfg.Logger, cfg.MetricsClient))
	router.Use(middleware.ConditionalGET(middleware.NewETagGenerator()))

	deviceHandler := handlers.NewDeviceHandler(cfg.App)
	healthHandler := handlers.NewHealthHandler(cfg.App)

	idempotent := func(next http.Handler) http.Handler { return next }
	if cfg.IdempotencyCache != nil && cfg.Config.Idempotency.Enabled {
		idempotent = middleware.Idempotency(cfg.IdempotencyCache, cfg.Config.Idempotency, cfg.Logger)
	}

	router.Route(baseURL, func(r chi.Router) {
		r.With(idempotent).Post("/devices", deviceHandler.CreateDevice)
		r.Get("/devices", deviceHandler.SearchDevices)
		r.Get("/devices/{id}", deviceHandler.GetDevice)
		r.Put("/devices/{id}", deviceHandler.UpdateDevice)
		r.Patch("/devices/{id}", deviceHandler.PatchDevice)
		r.Delete("/devices/{id}", deviceHandler.DeleteDevice)

		r.Get("/liveness", healthHandler.Liveness)
		r.Get("/readiness", healthHandler.Readiness)
		r.Get("/health", healthHandler.Health)
	})

	if cfg.Config.Telemetry.Metrics.Enabled {
		router.Handle(cfg.Config.Telemetry.Metrics.Path, cfg.MetricsClient.Handler())
	}

	if !cfg.Config.Telemetry.Traces.Enabled {
		return router, nil
	}

	cfg.Logger.Info().Msg("distributed tracing enabled")

	return otelhttp.NewHandler(router, cfg.Config.App.ServiceName,
		otelhttp.WithFilter(func(r *http.Request) bool {
			for _, probe := range middleware.ProbeEndpoints {
				if r.URL.Path == probe {
					return false
				}
			}

			return true
		}),
	), nil
}
