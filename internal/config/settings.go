package config

import (
	"fmt"
	"time"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

const (
	Development = 1 << iota
	Sandbox
	Staging
	Production
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type (
	ServiceConfig struct {
		App                   App                   `json:"app"`
		SecretsStorage        SecretsStorage        `json:"secrets_storage"`
		HTTPServer            HTTPServer            `json:"http_server"`
		GRPCServer            GRPCServer            `json:"grpc_server"`
		Storage               Storage               `json:"storage"`
		Database              Database              `json:"database"`
		Backoff               Backoff               `json:"backoff"`
		Cache                 Cache                 `json:"cache"`
		DevicesCache          DevicesCache          `json:"devices_cache"`
		ThrottledRateLimiting ThrottledRateLimiting `json:"throttled_rate_limiting"`
		Idempotency           Idempotency           `json:"idempotency"`
		Compression           Compression           `json:"compression"`
		Logging               Logging               `json:"logging"`
		Telemetry             Telemetry             `json:"telemetry"`
	}

	App struct {
		ServiceName    string      `envconfig:"APP_SERVICE_NAME" default:"device-catalog" json:"service_name"`
		APIVersion     string      `envconfig:"APP_API_VERSION" default:"v1" json:"api_version"`
		ServiceVersion string      `envconfig:"APP_SERVICE_VERSION" default:"dev" json:"service_version"`
		CommitSHA      string      `envconfig:"APP_COMMIT_SHA" default:"unknown" json:"commit_sha"`
		DotEnvFile     string      `envconfig:"APP_DOTENV_FILE" default:".env" json:"dotenv_file"`
		Env            Environment `json:"environment"`
	}

	Environment struct {
		Name string `envconfig:"APP_ENVIRONMENT" default:"development" json:"env"`
	}

	SecretsStorage struct {
		Enabled       bool          `envconfig:"VAULT_ENABLED" default:"false" json:"enabled"`
		Address       string        `envconfig:"VAULT_ADDRESS" default:"http://vault:8200" json:"address"`
		Token         string        `envconfig:"VAULT_TOKEN" default:"" json:"-"`
		RoleID        string        `envconfig:"VAULT_ROLE_ID" default:"" json:"role_id,omitempty"`
		SecretID      string        `envconfig:"VAULT_SECRET_ID" default:"" json:"-"`
		AuthMethod    string        `envconfig:"VAULT_AUTH_METHOD" default:"token" json:"auth_method"`
		MountPath     string        `envconfig:"VAULT_MOUNT_PATH" default:"device-catalog" json:"mount_path"`
		Namespace     string        `envconfig:"VAULT_NAMESPACE" default:"" json:"namespace,omitempty"`
		Timeout       time.Duration `envconfig:"VAULT_TIMEOUT" default:"30s" json:"timeout"`
		MaxRetries    uint          `envconfig:"VAULT_MAX_RETRIES" default:"3" json:"max_retries"`
		TLSSkipVerify bool          `envconfig:"VAULT_TLS_SKIP_VERIFY" default:"false" json:"tls_skip_verify"`
	}

	HTTPServer struct {
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"HTTP_SERVER_PORT" default:"8080" json:"port"`
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
		CORSOrigins     []string      `envconfig:"HTTP_CORS_ORIGINS" default:"*" json:"cors_origins"`
	}

	GRPCServer struct {
		Enabled         bool          `envconfig:"GRPC_SERVER_ENABLED" default:"true" json:"enabled"`
		Host            string        `envconfig:"GRPC_SERVER_HOST" default:"0.0.0.0" json:"host"`
		Port            uint          `envconfig:"GRPC_SERVER_PORT" default:"9090" json:"port"`
		ShutdownTimeout time.Duration `envconfig:"GRPC_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
		ProbeInterval   time.Duration `envconfig:"GRPC_HEALTH_PROBE_INTERVAL" default:"10s" json:"probe_interval"`
	}

	Storage struct {
		Driver string `envconfig:"STORAGE_DRIVER" default:"postgres" json:"driver"`
	}

	Database struct {
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            uint          `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"devices" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"-"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxConnections  int           `envconfig:"POSTGRES_MAX_CONNECTIONS" default:"25" json:"max_connections"`
		MinConnections  int           `envconfig:"POSTGRES_MIN_CONNECTIONS" default:"5" json:"min_connections"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		MaxConnLifetime time.Duration `envconfig:"POSTGRES_MAX_CONN_LIFETIME" default:"1h" json:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `envconfig:"POSTGRES_MAX_CONN_IDLE_TIME" default:"30m" json:"max_conn_idle_time"`
	}

	Backoff struct {
		BaseDelay   time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"1s" json:"base_delay"`
		Multiplier  float64       `envconfig:"BACKOFF_MULTIPLIER" default:"1.5" json:"multiplier"`
		Jitter      float64       `envconfig:"BACKOFF_JITTER" default:"0.3" json:"jitter"`
		MaxDelay    time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"10s" json:"max_delay"`
		MaxElapsed  time.Duration `envconfig:"BACKOFF_MAX_ELAPSED" default:"1m" json:"max_elapsed"`
		MaxAttempts uint          `envconfig:"BACKOFF_MAX_ATTEMPTS" default:"10" json:"max_attempts"`
	}

	Cache struct {
		Enabled        bool                 `envconfig:"CACHE_ENABLED" default:"false" json:"enabled"`
		Address        string               `envconfig:"CACHE_ADDRESS" default:"keydb:6379" json:"address"`
		Password       string               `envconfig:"CACHE_PASSWORD" default:"" json:"-"`
		DB             uint                 `envconfig:"CACHE_DB" default:"0" json:"db"`
		PoolSize       uint                 `envconfig:"CACHE_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns   uint                 `envconfig:"CACHE_MIN_IDLE_CONNS" default:"3" json:"min_idle_conns"`
		DialTimeout    time.Duration        `envconfig:"CACHE_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout    time.Duration        `envconfig:"CACHE_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout   time.Duration        `envconfig:"CACHE_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		PoolTimeout    time.Duration        `envconfig:"CACHE_POOL_TIMEOUT" default:"5s" json:"pool_timeout"`
		MaxRetries     uint                 `envconfig:"CACHE_MAX_RETRIES" default:"3" json:"max_retries"`
		DefaultExpiry  time.Duration        `envconfig:"CACHE_DEFAULT_EXPIRY" default:"24h" json:"default_expiry"`
		CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	}

	CircuitBreakerConfig struct {
		Enabled          bool          `envconfig:"CACHE_CB_ENABLED" default:"true" json:"enabled"`
		MaxRequests      uint          `envconfig:"CACHE_CB_MAX_REQUESTS" default:"5" json:"max_requests"`
		Interval         time.Duration `envconfig:"CACHE_CB_INTERVAL" default:"60s" json:"interval"`
		Timeout          time.Duration `envconfig:"CACHE_CB_TIMEOUT" default:"30s" json:"timeout"`
		FailureThreshold uint          `envconfig:"CACHE_CB_FAILURE_THRESHOLD" default:"5" json:"failure_threshold"`
	}

	DevicesCache struct {
		Enabled   bool          `envconfig:"DEVICES_CACHE_ENABLED" default:"true" json:"enabled"`
		DeviceTTL time.Duration `envconfig:"DEVICES_CACHE_DEVICE_TTL" default:"5m" json:"device_ttl"`
		PageTTL   time.Duration `envconfig:"DEVICES_CACHE_PAGE_TTL" default:"1m" json:"page_ttl"`
	}

	ThrottledRateLimiting struct {
		Enabled           bool     `envconfig:"RATE_LIMITING_ENABLED" default:"true" json:"enabled"`
		RequestsPerSecond uint     `envconfig:"RATE_LIMITING_REQUESTS_PER_SECOND" default:"10" json:"requests_per_second"`
		BurstSize         uint     `envconfig:"RATE_LIMITING_BURST_SIZE" default:"20" json:"burst_size"`
		EnableIPLimiting  bool     `envconfig:"RATE_LIMITING_ENABLE_IP_LIMITING" default:"true" json:"enable_ip_limiting"`
		MaxKeys           uint     `envconfig:"RATE_LIMITING_MAX_KEYS" default:"65536" json:"max_keys"`
		SkipPaths         []string `envconfig:"RATE_LIMITING_SKIP_PATHS" default:"/v1/health,/v1/liveness,/v1/readiness,/metrics" json:"skip_paths"`
		GracefulDegraded  bool     `envconfig:"RATE_LIMITING_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Idempotency struct {
		Enabled          bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true" json:"enabled"`
		CacheTTL         time.Duration `envconfig:"IDEMPOTENCY_CACHE_TTL" default:"24h" json:"cache_ttl"`
		LockTTL          time.Duration `envconfig:"IDEMPOTENCY_LOCK_TTL" default:"30s" json:"lock_ttl"`
		RequiredMethods  []string      `envconfig:"IDEMPOTENCY_REQUIRED_METHODS" default:"POST" json:"required_methods"`
		HeaderName       string        `envconfig:"IDEMPOTENCY_HEADER" default:"Idempotency-Key" json:"header_name"`
		ReplayedHeader   string        `envconfig:"IDEMPOTENCY_REPLAYED_HEADER" default:"Idempotent-Replayed" json:"replayed_header"`
		GracefulDegraded bool          `envconfig:"IDEMPOTENCY_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	// Compression configures response compression. Level is 1-9 and MinSize
	// is the smallest body in bytes worth compressing.
	Compression struct {
		Enabled          bool     `envconfig:"COMPRESSION_ENABLED" default:"true" json:"enabled"`
		Level            int      `envconfig:"COMPRESSION_LEVEL" default:"5" json:"level"`
		MinSize          int      `envconfig:"COMPRESSION_MIN_SIZE" default:"1024" json:"min_size"`
		ContentTypes     []string `envconfig:"COMPRESSION_CONTENT_TYPES" json:"content_types"`
		SkipPaths        []string `envconfig:"COMPRESSION_SKIP_PATHS" default:"/v1/health,/v1/liveness,/v1/readiness,/metrics" json:"skip_paths"`
		GracefulDegraded bool     `envconfig:"COMPRESSION_GRACEFUL_DEGRADED" default:"true" json:"graceful_degraded"`
	}

	Logging struct {
		Level     string    `envconfig:"LOG_LEVEL" default:"info" json:"level"`
		Format    string    `envconfig:"LOG_FORMAT" default:"json" json:"format"`
		AccessLog AccessLog `json:"access_log"`
	}

	AccessLog struct {
		Enabled            bool `envconfig:"ACCESS_LOG_ENABLED" default:"true" json:"enabled"`
		LogHealthChecks    bool `envconfig:"ACCESS_LOG_HEALTH_CHECKS" default:"false" json:"log_health_checks"`
		IncludeQueryParams bool `envconfig:"ACCESS_LOG_INCLUDE_QUERY_PARAMS" default:"true" json:"include_query_params"`
		IncludeMetadata    bool `envconfig:"ACCESS_LOG_INCLUDE_GRPC_METADATA" default:"false" json:"include_metadata"`
	}

	Telemetry struct {
		Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false" json:"enabled"`
		OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"" json:"otlp_endpoint"`
		Insecure     bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true" json:"insecure"`
		Metrics      Metrics `json:"metrics"`
		Traces       Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool   `envconfig:"METRICS_ENABLED" default:"false" json:"enabled"`
		Path    string `envconfig:"METRICS_PATH" default:"/metrics" json:"path"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1.0" json:"sampler_ratio"`
	}
)

func (c *ServiceConfig) GetEnvironment() int {
	switch c.App.Env.Name {
	case "production", "prod":
		return Production
	case "staging", "stg":
		return Staging
	case "sandbox", "sbx":
		return Sandbox
	default:
		return Development
	}
}

func (c *ServiceConfig) IsProduction() bool {
	return c.GetEnvironment() == Production
}

// Validate rejects combinations the service cannot start with.
func (c *ServiceConfig) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	if c.Compression.Enabled {
		if err := c.Compression.Validate(); err != nil {
			return err
		}
	}

	if c.Idempotency.Enabled && c.Idempotency.HeaderName == "" {
		return fmt.Errorf("idempotency header name must not be empty")
	}

	return nil
}

func (c *Compression) Validate() error {
	if c.Level < 1 || c.Level > 9 {
		return fmt.Errorf("compression level must be between 1 and 9, got %d", c.Level)
	}

	if c.MinSize < 0 {
		return fmt.Errorf("compression min_size must be non-negative, got %d", c.MinSize)
	}

	return nil
}
