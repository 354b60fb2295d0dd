package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/logger"
	"github.com/saiset-co/sai-social-bot/types"
)

func newTestFileCache(t *testing.T) (types.CacheManager, string) {
	t.Helper()

	dir := t.TempDir()
	log := logger.NewZapWrapper(zap.NewNop())

	cache, err := NewFileCache(context.Background(), log, &types.CacheConfig{
		Type:       "file",
		Dir:        dir,
		DefaultTTL: time.Hour,
	})
	require.NoError(t, err)

	return cache, dir
}

func TestFileCacheRoundTrip(t *testing.T) {
	cache, _ := newTestFileCache(t)

	require.NoError(t, cache.Set("greeting", "hello", time.Hour))

	value, found := cache.Get("greeting")
	require.True(t, found)
	require.Equal(t, "hello", value)
}

func TestFileCacheStructuredValue(t *testing.T) {
	cache, _ := newTestFileCache(t)

	posts := []map[string]interface{}{
		{"id": "101", "text": "first"},
		{"id": "102", "text": "second"},
	}
	require.NoError(t, cache.Set("posts_u1", posts, time.Hour))

	value, found := cache.Get("posts_u1")
	require.True(t, found)

	decoded, ok := value.([]interface{})
	require.True(t, ok)
	require.Len(t, decoded, 2)
}

func TestFileCacheMissOnUnknownKey(t *testing.T) {
	cache, _ := newTestFileCache(t)

	_, found := cache.Get("nope")
	require.False(t, found)
}

func TestFileCacheExpiredEntryReadsAbsent(t *testing.T) {
	cache, _ := newTestFileCache(t)

	require.NoError(t, cache.Set("short", "lived", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, found := cache.Get("short")
	require.False(t, found)
}

func TestFileCachePersistsAcrossInstances(t *testing.T) {
	cache, dir := newTestFileCache(t)
	require.NoError(t, cache.Set("durable", "value", time.Hour))

	log := logger.NewZapWrapper(zap.NewNop())
	reopened, err := NewFileCache(context.Background(), log, &types.CacheConfig{
		Type:       "file",
		Dir:        dir,
		DefaultTTL: time.Hour,
	})
	require.NoError(t, err)

	value, found := reopened.Get("durable")
	require.True(t, found)
	require.Equal(t, "value", value)
}

func TestFileCacheCorruptEntryReadsAbsent(t *testing.T) {
	cache, dir := newTestFileCache(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	_, found := cache.Get("broken")
	require.False(t, found)
}

func TestFileCacheEmptyKeyRejected(t *testing.T) {
	cache, _ := newTestFileCache(t)

	err := cache.Set("", "value", time.Hour)
	require.ErrorIs(t, err, types.ErrCacheKeyEmpty)
}

func TestFileCacheDelete(t *testing.T) {
	cache, _ := newTestFileCache(t)

	require.NoError(t, cache.Set("gone", "soon", time.Hour))
	require.NoError(t, cache.Delete("gone"))

	_, found := cache.Get("gone")
	require.False(t, found)
}

func TestFileCacheCleanupRemovesOnlyExpired(t *testing.T) {
	cache, dir := newTestFileCache(t)

	require.NoError(t, cache.Set("expired", "old", 10*time.Millisecond))
	require.NoError(t, cache.Set("fresh", "new", time.Hour))
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, cache.Cleanup())

	_, err := os.Stat(filepath.Join(dir, "expired.json"))
	require.True(t, os.IsNotExist(err))

	_, found := cache.Get("fresh")
	require.True(t, found)
}

func TestFileCacheCleanupSkipsCorruptFiles(t *testing.T) {
	cache, dir := newTestFileCache(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("junk"), 0644))
	require.NoError(t, cache.Set("fresh", "new", time.Hour))

	require.NoError(t, cache.Cleanup())

	_, found := cache.Get("fresh")
	require.True(t, found)
}

func TestFileCacheLifecycle(t *testing.T) {
	cache, _ := newTestFileCache(t)

	require.NoError(t, cache.Start())
	require.True(t, cache.IsRunning())
	require.ErrorIs(t, cache.Start(), types.ErrServiceAlreadyRunning)

	require.NoError(t, cache.Stop())
	require.False(t, cache.IsRunning())
	require.ErrorIs(t, cache.Stop(), types.ErrServiceIsNotRunning)
}
