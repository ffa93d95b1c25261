package stats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestFetchCachesUntilBump(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return fakeStats{Count: int64(calls), Total: 10}, nil
	}

	var out fakeStats
	require.NoError(t, cache.Fetch(ctx, "quotes", &out, loader))
	require.Equal(t, int64(1), out.Count)

	require.NoError(t, cache.Fetch(ctx, "quotes", &out, loader))
	require.Equal(t, int64(1), out.Count, "second read must hit the cache")
	require.Equal(t, 1, calls)

	require.NoError(t, cache.Bump(ctx, "quotes"))

	require.NoError(t, cache.Fetch(ctx, "quotes", &out, loader))
	require.Equal(t, int64(2), out.Count, "bump must force a rebuild")
	require.Equal(t, 2, calls)
}

func TestCollectionsAreIsolated(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	var out fakeStats
	require.NoError(t, cache.Fetch(ctx, "quotes", &out, func(context.Context) (interface{}, error) {
		return fakeStats{Count: 1}, nil
	}))
	require.NoError(t, cache.Bump(ctx, "invoices"))

	calls := 0
	require.NoError(t, cache.Fetch(ctx, "quotes", &out, func(context.Context) (interface{}, error) {
		calls++
		return fakeStats{Count: 99}, nil
	}))
	require.Equal(t, 0, calls, "bumping invoices must not evict quotes")
	require.Equal(t, int64(1), out.Count)
}

func TestNilCacheCallsLoader(t *testing.T) {
	var cache *Cache
	var out fakeStats
	err := cache.Fetch(context.Background(), "quotes", &out, func(context.Context) (interface{}, error) {
		return fakeStats{Count: 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), out.Count)
}
