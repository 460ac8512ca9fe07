package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/pkg/circuitbreaker"
	appLogger "github.com/architeacher/device-catalog/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const healthCheckTimeout = 3 * time.Second

// KeydbClient talks to KeyDB (or Redis) through a circuit breaker. A miss
// is reported as redis.Nil and never trips the breaker.
type KeydbClient struct {
	client  *redis.Client
	breaker *circuitbreaker.CircuitBreaker[any]
	logger  appLogger.Logger
	config  config.Cache
}

func NewKeyDBClient(cfg config.Cache, logger appLogger.Logger) *KeydbClient {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           int(cfg.DB),
		PoolSize:     int(cfg.PoolSize),
		MinIdleConns: int(cfg.MinIdleConns),
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		MaxRetries:   int(cfg.MaxRetries),
	})

	breaker := circuitbreaker.New[any](circuitbreaker.Config{
		Name:             "keydb",
		Enabled:          cfg.CircuitBreaker.Enabled,
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.Interval,
		Timeout:          cfg.CircuitBreaker.Timeout,
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		IsExpected: func(err error) bool {
			return errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", string(from)).
				Str("to", string(to)).
				Msg("cache circuit breaker changed state")
		},
	})

	return &KeydbClient{
		client:  client,
		breaker: breaker,
		logger:  logger,
		config:  cfg,
	}
}

func (c *KeydbClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *KeydbClient) Close() error {
	return c.client.Close()
}

// BreakerState reports whether calls currently reach the server.
func (c *KeydbClient) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func (c *KeydbClient) Get(ctx context.Context, key string) ([]byte, error) {
	startTime := time.Now()

	result, err := execute(c, func() ([]byte, error) {
		return c.client.Get(ctx, key).Bytes()
	})

	c.logger.Debug().
		Str("key", key).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("hit", err == nil).
		Msg("keydb get operation")

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}

		c.logger.Error().
			Err(err).
			Str("key", key).
			Msg("keydb get operation failed")

		return nil, err
	}

	return result, nil
}

func (c *KeydbClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.config.DefaultExpiry
	}

	startTime := time.Now()

	_, err := execute(c, func() (string, error) {
		return c.client.Set(ctx, key, value, ttl).Result()
	})

	c.logger.Debug().
		Str("key", key).
		Str("expiry", ttl.String()).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("success", err == nil).
		Msg("keydb set operation")

	return err
}

// Lock sets key only if it is absent and reports whether it did.
func (c *KeydbClient) Lock(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	acquired, err := execute(c, func() (bool, error) {
		return c.client.SetNX(ctx, key, value, ttl).Result()
	})
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}

	c.logger.Debug().
		Str("key", key).
		Str("expiry", ttl.String()).
		Bool("acquired", acquired).
		Msg("keydb setnx operation")

	return acquired, nil
}

func (c *KeydbClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := execute(c, func() (int64, error) {
		return c.client.Del(ctx, keys...).Result()
	})

	c.logger.Debug().
		Strs("keys", keys).
		Bool("success", err == nil).
		Msg("keydb delete operation")

	return err
}

func (c *KeydbClient) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	return c.Ping(ctx) == nil
}

// GetInt64 returns -1 and no error when the key is absent.
func (c *KeydbClient) GetInt64(ctx context.Context, key string) (int64, time.Time, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, time.Now(), nil
		}

		return 0, time.Time{}, err
	}

	return val, time.Now(), nil
}

func (c *KeydbClient) SetInt64NX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

var compareAndSwapScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if current == false or tonumber(current) ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
`)

// CompareAndSwapInt64 replaces the value only if it still equals old.
func (c *KeydbClient) CompareAndSwapInt64(ctx context.Context, key string, old, new int64, ttl time.Duration) (bool, error) {
	result, err := compareAndSwapScript.Run(ctx, c.client, []string{key}, old, new, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (c *KeydbClient) TTL(ctx context.Context, key string) time.Duration {
	result, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to get TTL")

		return 0
	}

	return result
}

func (c *KeydbClient) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	type page struct {
		keys []string
		next uint64
	}

	result, err := execute(c, func() (page, error) {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, count).Result()

		return page{keys: keys, next: next}, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scanning keys: %w", err)
	}

	return result.keys, result.next, nil
}

// execute runs fn through the client's breaker. The breaker is shared by
// every call, so its result type is erased to any.
func execute[T any](c *KeydbClient, fn func() (T, error)) (T, error) {
	result, err := circuitbreaker.Execute(c.breaker, func() (any, error) {
		return fn()
	})

	value, _ := result.(T)

	return value, err
}
