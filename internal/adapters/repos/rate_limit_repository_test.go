package repos_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/architeacher/device-catalog/internal/adapters/repos"
	"github.com/architeacher/device-catalog/internal/infrastructure"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/stretchr/testify/require"
	"github.com/throttled/throttled/v2"
)

func newRateLimitStore(t *testing.T) (*repos.RateLimitStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := infrastructure.NewKeyDBClient(newMiniredisCacheConfig(mr.Addr()), logger.NewTestLogger())
	t.Cleanup(func() { _ = client.Close() })

	return repos.NewRateLimitStore(client), mr
}

func TestRateLimitStore_GCRAPrimitives(t *testing.T) {
	t.Parallel()

	store, mr := newRateLimitStore(t)
	ctx := context.Background()

	value, _, err := store.GetWithTime(ctx, "client")
	require.NoError(t, err)
	require.Equal(t, int64(-1), value)

	set, err := store.SetIfNotExistsWithTTL(ctx, "client", 100, time.Minute)
	require.NoError(t, err)
	require.True(t, set)
	require.True(t, mr.Exists("ratelimit:client"))

	set, err = store.SetIfNotExistsWithTTL(ctx, "client", 200, time.Minute)
	require.NoError(t, err)
	require.False(t, set)

	swapped, err := store.CompareAndSwapWithTTL(ctx, "client", 999, 300, time.Minute)
	require.NoError(t, err)
	require.False(t, swapped)

	swapped, err = store.CompareAndSwapWithTTL(ctx, "client", 100, 300, time.Minute)
	require.NoError(t, err)
	require.True(t, swapped)

	value, _, err = store.GetWithTime(ctx, "client")
	require.NoError(t, err)
	require.Equal(t, int64(300), value)
}

func TestRateLimitStore_DrivesGCRALimiter(t *testing.T) {
	t.Parallel()

	store, _ := newRateLimitStore(t)

	limiter, err := throttled.NewGCRARateLimiterCtx(store, throttled.RateQuota{
		MaxRate:  throttled.PerMin(1),
		MaxBurst: 1,
	})
	require.NoError(t, err)

	ctx := context.Background()
	allowed := 0

	for range 5 {
		limited, _, err := limiter.RateLimitCtx(ctx, "10.0.0.1", 1)
		require.NoError(t, err)

		if !limited {
			allowed++
		}
	}

	require.Equal(t, 2, allowed)
}
