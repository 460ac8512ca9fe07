package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnString renders the database settings as a postgres URL.
func ConnString(cfg config.Database) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.FormatUint(uint64(cfg.Port), 10)),
		Path:   "/" + cfg.Database,
	}

	q := u.Query()
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()

	return u.String()
}

// NewPool opens a pool and pings it, retrying with exponential backoff while
// the database is unreachable. Configuration errors are not retried.
func NewPool(ctx context.Context, cfg config.Database, retry config.Backoff, log logger.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = retry.BaseDelay
	expBackoff.Multiplier = retry.Multiplier
	expBackoff.RandomizationFactor = retry.Jitter
	expBackoff.MaxInterval = retry.MaxDelay

	attempt := 0
	operation := func() (*pgxpool.Pool, error) {
		attempt++

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("creating connection pool: %w", err))
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			log.Warn().
				Err(err).
				Int("attempt", attempt).
				Str("host", cfg.Host).
				Msg("database not reachable, retrying")

			return nil, fmt.Errorf("pinging database: %w", err)
		}

		return pool, nil
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(expBackoff)}
	if retry.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(retry.MaxAttempts))
	}
	if retry.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(retry.MaxElapsed))
	}

	pool, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		return nil, err
	}

	log.Info().Int("attempts", attempt).Str("host", cfg.Host).Msg("connected to database")

	return pool, nil
}
