package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
	"github.com/saiset-co/sai-social-bot/utils"
)

type FileState int32

const (
	FileStateStopped FileState = iota
	FileStateStarting
	FileStateRunning
	FileStateStopping
)

const (
	MaxTTL     = 30 * 24 * time.Hour
	DefaultTTL = 24 * time.Hour
)

// FileCache keeps one JSON file per key under a cache directory. Each file
// holds a CacheEnvelope with the value and an epoch-ms expiry. Entries past
// expiry read as absent and are purged asynchronously; a periodic sweep
// removes the rest. Storage errors degrade to "absent" rather than failing
// the caller.
type FileCache struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	dir             string
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	mu              sync.Mutex
	state           atomic.Value
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	purges          sync.WaitGroup
}

func NewFileCache(ctx context.Context, logger types.Logger, config *types.CacheConfig) (types.CacheManager, error) {
	cacheCtx, cancel := context.WithCancel(ctx)

	defaultTTL := config.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	cache := &FileCache{
		ctx:             cacheCtx,
		cancel:          cancel,
		logger:          logger,
		dir:             config.Dir,
		defaultTTL:      defaultTTL,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	cache.state.Store(FileStateStopped)

	if err := cache.ensureDir(); err != nil {
		// Non-fatal: Set retries directory creation on every write.
		logger.Error("Failed to create cache directory", zap.String("dir", config.Dir), zap.Error(err))
	}

	return cache, nil
}

func (f *FileCache) Get(key string) (interface{}, bool) {
	if key == "" {
		return nil, false
	}

	data, err := os.ReadFile(f.entryPath(key))
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Error("Failed to read cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var envelope types.CacheEnvelope
	if err := utils.Unmarshal(data, &envelope); err != nil {
		f.logger.Error("Corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if envelope.Expires > time.Now().UnixMilli() {
		return envelope.Data, true
	}

	// Expired: purge the file without blocking the caller.
	f.purges.Add(1)
	go func() {
		defer f.purges.Done()
		if err := os.Remove(f.entryPath(key)); err != nil && !os.IsNotExist(err) {
			f.logger.Debug("Failed to purge expired cache entry", zap.String("key", key), zap.Error(err))
		}
	}()

	return nil, false
}

func (f *FileCache) Set(key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		f.logger.Error("Attempted to set cache entry with empty key")
		return types.ErrCacheKeyEmpty
	}

	if ttl <= 0 {
		ttl = f.defaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	envelope := types.CacheEnvelope{
		Data:    value,
		Expires: time.Now().Add(ttl).UnixMilli(),
	}

	data, err := utils.Marshal(envelope)
	if err != nil {
		return types.Errorf(types.ErrCacheOperationFailed, "marshal entry %s: %v", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureDir(); err != nil {
		return types.Errorf(types.ErrCacheOperationFailed, "create cache dir: %v", err)
	}

	// Write-then-rename so readers never observe a torn entry.
	path := f.entryPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return types.Errorf(types.ErrCacheOperationFailed, "write entry %s: %v", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return types.Errorf(types.ErrCacheOperationFailed, "rename entry %s: %v", key, err)
	}

	return nil
}

func (f *FileCache) Delete(key string) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	if err := os.Remove(f.entryPath(key)); err != nil && !os.IsNotExist(err) {
		f.logger.Error("Failed to remove cache entry", zap.String("key", key), zap.Error(err))
		return types.Errorf(types.ErrCacheOperationFailed, "remove entry %s: %v", key, err)
	}

	return nil
}

// Cleanup scans the whole cache directory and deletes entries past expiry.
// Unreadable or corrupt files are skipped and logged, never aborting the
// sweep.
func (f *FileCache) Cleanup() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		f.logger.Error("Failed to scan cache directory", zap.String("dir", f.dir), zap.Error(err))
		return types.Errorf(types.ErrCacheOperationFailed, "scan cache dir: %v", err)
	}

	now := time.Now().UnixMilli()
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(f.dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			f.logger.Error("Failed to read cache file during sweep", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		var envelope types.CacheEnvelope
		if err := utils.Unmarshal(data, &envelope); err != nil {
			f.logger.Error("Skipping corrupt cache file during sweep", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		if envelope.Expires <= now {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				f.logger.Error("Failed to remove expired cache file", zap.String("file", entry.Name()), zap.Error(err))
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		f.logger.Debug("Cache sweep completed", zap.Int("removed", removed))
	}

	return nil
}

func (f *FileCache) Start() error {
	if !f.transitionState(FileStateStopped, FileStateStarting) {
		f.logger.Warn("File cache is already running")
		return types.ErrServiceAlreadyRunning
	}

	defer func() {
		if f.getState() == FileStateStarting {
			f.setState(FileStateRunning)
		}
	}()

	if f.cleanupInterval > 0 {
		go f.startCleanupRoutine()
	} else {
		close(f.cleanupDone)
	}

	f.logger.Info("File cache started", zap.String("dir", f.dir))
	return nil
}

func (f *FileCache) Stop() error {
	if !f.transitionState(FileStateRunning, FileStateStopping) {
		f.logger.Warn("File cache is not running")
		return types.ErrServiceIsNotRunning
	}

	defer func() {
		f.setState(FileStateStopped)
	}()

	f.cancel()
	close(f.stopCleanup)

	select {
	case <-f.cleanupDone:
	case <-time.After(5 * time.Second):
		f.logger.Warn("Cleanup routine stop timeout")
	}

	f.purges.Wait()

	f.logger.Info("File cache stopped gracefully")
	return nil
}

func (f *FileCache) IsRunning() bool {
	return f.getState() == FileStateRunning
}

func (f *FileCache) getState() FileState {
	return f.state.Load().(FileState)
}

func (f *FileCache) setState(newState FileState) bool {
	currentState := f.getState()
	return f.state.CompareAndSwap(currentState, newState)
}

func (f *FileCache) transitionState(from, to FileState) bool {
	return f.state.CompareAndSwap(from, to)
}

func (f *FileCache) startCleanupRoutine() {
	defer close(f.cleanupDone)

	ticker := time.NewTicker(f.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-f.stopCleanup:
			return
		case <-ticker.C:
			if err := f.Cleanup(); err != nil {
				f.logger.Error("Periodic cache sweep failed", zap.Error(err))
			}
		}
	}
}

func (f *FileCache) ensureDir() error {
	return os.MkdirAll(f.dir, 0755)
}

func (f *FileCache) entryPath(key string) string {
	return filepath.Join(f.dir, key+".json")
}
