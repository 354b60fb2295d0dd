package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/logger"
	"github.com/saiset-co/sai-social-bot/types"
)

func newTestMemoryCache(t *testing.T) types.CacheManager {
	t.Helper()

	log := logger.NewZapWrapper(zap.NewNop())

	cache, err := NewMemoryCache(context.Background(), log, &types.CacheConfig{
		Type:       "memory",
		DefaultTTL: time.Hour,
	})
	require.NoError(t, err)

	return cache
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := newTestMemoryCache(t)

	require.NoError(t, cache.Set("key", 42, time.Hour))

	value, found := cache.Get("key")
	require.True(t, found)
	require.Equal(t, 42, value)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := newTestMemoryCache(t)

	require.NoError(t, cache.Set("short", "lived", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, found := cache.Get("short")
	require.False(t, found)
}

func TestMemoryCacheCleanup(t *testing.T) {
	cache := newTestMemoryCache(t)

	require.NoError(t, cache.Set("expired", "old", 10*time.Millisecond))
	require.NoError(t, cache.Set("fresh", "new", time.Hour))
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, cache.Cleanup())

	_, found := cache.Get("fresh")
	require.True(t, found)

	_, found = cache.Get("expired")
	require.False(t, found)
}

func TestMemoryCacheDelete(t *testing.T) {
	cache := newTestMemoryCache(t)

	require.NoError(t, cache.Set("key", "value", time.Hour))
	require.NoError(t, cache.Delete("key"))

	_, found := cache.Get("key")
	require.False(t, found)
}

func TestMemoryCacheDefaultTTLApplied(t *testing.T) {
	cache := newTestMemoryCache(t)

	require.NoError(t, cache.Set("key", "value", 0))

	value, found := cache.Get("key")
	require.True(t, found)
	require.Equal(t, "value", value)
}
