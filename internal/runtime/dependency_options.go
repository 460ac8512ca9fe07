package runtime

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	inboundgrpc "github.com/architeacher/device-catalog/internal/adapters/inbound/grpc"
	inboundhttp "github.com/architeacher/device-catalog/internal/adapters/inbound/http"
	"github.com/architeacher/device-catalog/internal/adapters/repos"
	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/internal/infrastructure"
	infraPostgres "github.com/architeacher/device-catalog/internal/infrastructure/postgres"
	"github.com/architeacher/device-catalog/internal/services"
	"github.com/architeacher/device-catalog/internal/usecases"
	"github.com/architeacher/device-catalog/internal/usecases/queries"
	"github.com/architeacher/device-catalog/pkg/decorator"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics/noop"
	"github.com/architeacher/device-catalog/pkg/metrics/prometheus"
	"github.com/hashicorp/vault/api"
	"github.com/throttled/throttled/v2/store/memstore"
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithConfig(),
		WithLogger(),
		WithSecretsRepository(),
		WithSecrets(ctx),
		WithTracing(ctx),
		WithMetrics(),
		WithDevicesStore(ctx),
		WithCache(ctx),
		WithDevicesService(),
		WithApplication(),
		WithHTTPServer(),
		WithGRPCServer(),
	}
}

func WithConfig() DependencyOption {
	return func(d *dependencies) error {
		cfg, err := config.Init()
		if err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}

		d.config = cfg

		return nil
	}
}

func WithLogger() DependencyOption {
	return func(d *dependencies) error {
		d.infra.logger = logger.New(d.config.Logging.Level, d.config.Logging.Format)

		return nil
	}
}

func WithSecretsRepository() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.SecretsStorage.Enabled {
			return nil
		}

		vaultConfig := api.DefaultConfig()
		vaultConfig.Address = d.config.SecretsStorage.Address
		vaultConfig.Timeout = d.config.SecretsStorage.Timeout
		vaultConfig.MaxRetries = int(d.config.SecretsStorage.MaxRetries)

		if d.config.SecretsStorage.TLSSkipVerify {
			vaultConfig.HttpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}

		client, err := api.NewClient(vaultConfig)
		if err != nil {
			return fmt.Errorf("creating Vault client: %w", err)
		}

		if d.config.SecretsStorage.Namespace != "" {
			client.SetNamespace(d.config.SecretsStorage.Namespace)
		}

		d.repos.secretsRepo = repos.NewVaultRepository(client)

		return nil
	}
}

// WithSecrets overlays database and cache credentials read from Vault.
func WithSecrets(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if d.repos.secretsRepo == nil {
			return nil
		}

		if err := config.NewSecretsLoader(d.repos.secretsRepo).Load(ctx, d.config); err != nil {
			return fmt.Errorf("loading secrets: %w", err)
		}

		d.infra.logger.Info().
			Str("mount_path", d.config.SecretsStorage.MountPath).
			Msg("secrets loaded from Vault")

		return nil
	}
}

func WithTracing(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		tp, shutdown, err := infrastructure.NewTracerProvider(ctx, d.config.App, d.config.Telemetry)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}

		d.infra.tracerProvider = tp
		d.cleanupFuncs["tracer"] = shutdown

		return nil
	}
}

func WithMetrics() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Metrics.Enabled {
			d.infra.metricsClient = noop.NewMetricsClient()

			return nil
		}

		log := d.infra.logger

		d.infra.metricsClient = prometheus.NewMetricsClient(
			d.config.App.ServiceName,
			prometheus.WithRuntimeCollectors(),
			prometheus.WithErrorHandler(func(err error) {
				log.Warn().Err(err).Msg("metric not recorded")
			}),
		)

		return nil
	}
}

// WithDevicesStore selects the device store. Postgres is retried with
// backoff until reachable; the memory store needs nothing.
func WithDevicesStore(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if d.config.Storage.Driver == config.StorageDriverMemory {
			store := repos.NewMemoryDevicesRepository(d.infra.logger)
			d.repos.devicesStore = store
			d.repos.dbHealthChecker = store

			d.infra.logger.Warn().Msg("using the in-memory device store, data is lost on restart")

			return nil
		}

		pool, err := infraPostgres.NewPool(ctx, d.config.Database, d.config.Backoff, d.infra.logger)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}

		d.infra.dbPool = pool
		d.cleanupFuncs["database"] = func(context.Context) error {
			pool.Close()

			return nil
		}

		store := repos.NewDevicesRepository(pool, repos.NewPgxScanner(), repos.NewCriteriaTranslator(&d.infra.logger), d.infra.logger)
		d.repos.devicesStore = store
		d.repos.dbHealthChecker = store

		return nil
	}
}

// WithCache connects to KeyDB and builds everything backed by it: the device
// read cache, idempotency records and the shared rate limit store. Without
// a cache the rate limiter falls back to an in-process store.
func WithCache(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Cache.Enabled {
			store, err := memstore.NewCtx(int(d.config.ThrottledRateLimiting.MaxKeys))
			if err != nil {
				return fmt.Errorf("creating in-memory rate limit store: %w", err)
			}

			d.repos.rateLimitStore = store

			return nil
		}

		client := infrastructure.NewKeyDBClient(d.config.Cache, d.infra.logger)
		if err := client.Ping(ctx); err != nil {
			d.infra.logger.Warn().
				Err(err).
				Str("address", d.config.Cache.Address).
				Msg("cache not reachable at startup, serving degraded")
		}

		d.infra.cacheClient = client
		d.cleanupFuncs["cache"] = func(context.Context) error {
			return client.Close()
		}

		if d.config.DevicesCache.Enabled {
			d.repos.devicesCache = repos.NewDevicesCacheRepository(client, d.infra.logger)
		}

		d.repos.idempotencyRepo = repos.NewIdempotencyRepository(client)
		d.repos.rateLimitStore = repos.NewRateLimitStore(client)

		return nil
	}
}

func WithDevicesService() DependencyOption {
	return func(d *dependencies) error {
		d.devicesService = services.NewDevicesService(d.repos.devicesStore)

		return nil
	}
}

func WithApplication() DependencyOption {
	return func(d *dependencies) error {
		d.app = usecases.NewApplication(
			d.devicesService,
			d.repos.dbHealthChecker,
			d.caching(),
			queries.BuildInfo{
				Version:   d.config.App.ServiceVersion,
				CommitSHA: d.config.App.CommitSHA,
				Storage:   d.config.Storage.Driver,
			},
			d.infra.logger,
			d.infra.metricsClient,
			d.infra.tracerProvider,
		)

		return nil
	}
}

func WithHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		router, err := inboundhttp.NewRouter(inboundhttp.RouterConfig{
			App:              d.app,
			Logger:           d.infra.logger,
			MetricsClient:    d.infra.metricsClient,
			Config:           d.config,
			IdempotencyCache: d.repos.idempotencyRepo,
			RateLimitStore:   d.repos.rateLimitStore,
		})
		if err != nil {
			return fmt.Errorf("building HTTP router: %w", err)
		}

		server := &http.Server{
			Addr:         net.JoinHostPort(d.config.HTTPServer.Host, strconv.FormatUint(uint64(d.config.HTTPServer.Port), 10)),
			Handler:      router,
			ReadTimeout:  d.config.HTTPServer.ReadTimeout,
			WriteTimeout: d.config.HTTPServer.WriteTimeout,
			IdleTimeout:  d.config.HTTPServer.IdleTimeout,
		}

		d.infra.httpServer = server
		d.cleanupFuncs["http_server"] = func(ctx context.Context) error {
			if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		}

		return nil
	}
}

func WithGRPCServer() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.GRPCServer.Enabled {
			return nil
		}

		server, healthServer := inboundgrpc.NewServer(
			d.config.Logging.AccessLog,
			d.infra.logger,
			d.infra.tracerProvider,
		)

		d.infra.grpcServer = server
		d.infra.healthProber = inboundgrpc.NewHealthProber(
			healthServer,
			d.repos.dbHealthChecker,
			d.config.App.ServiceName,
			d.config.GRPCServer.ProbeInterval,
			d.infra.logger,
		)
		d.cleanupFuncs["grpc_server"] = func(context.Context) error {
			server.GracefulStop()

			return nil
		}

		return nil
	}
}

// caching returns the zero value, which disables the read cache, unless a
// devices cache was built.
func (d *dependencies) caching() usecases.Caching {
	if d.repos.devicesCache == nil {
		return usecases.Caching{}
	}

	log := d.infra.logger
	onError := func(err error) {
		log.Warn().Err(err).Msg("device cache unavailable, serving from the store")
	}

	return usecases.Caching{
		Devices:     d.repos.devicesCache,
		DeviceQuery: repos.NewGetDeviceCacheAdapter(d.repos.devicesCache),
		SearchQuery: repos.NewSearchDevicesCacheAdapter(d.repos.devicesCache),
		Device: decorator.CacheConfig{
			Enabled: true,
			TTL:     d.config.DevicesCache.DeviceTTL,
			OnError: onError,
		},
		Search: decorator.CacheConfig{
			Enabled: true,
			TTL:     d.config.DevicesCache.PageTTL,
			OnError: onError,
		},
	}
}
