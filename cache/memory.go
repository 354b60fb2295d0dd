package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/types"
)

type MemoryState int32

const (
	MemoryStateStopped MemoryState = iota
	MemoryStateStarting
	MemoryStateRunning
	MemoryStateStopping
)

// MemoryCache is the non-persistent backend: same TTL semantics as the file
// cache, state lost on restart. Used by tests and throwaway deployments.
type MemoryCache struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	data            map[string]*types.CacheEntry
	mu              sync.RWMutex
	state           atomic.Value
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
}

func NewMemoryCache(ctx context.Context, logger types.Logger, config *types.CacheConfig) (types.CacheManager, error) {
	cacheCtx, cancel := context.WithCancel(ctx)

	defaultTTL := config.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	cache := &MemoryCache{
		ctx:             cacheCtx,
		cancel:          cancel,
		logger:          logger,
		defaultTTL:      defaultTTL,
		cleanupInterval: config.CleanupInterval,
		data:            make(map[string]*types.CacheEntry),
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	cache.state.Store(MemoryStateStopped)

	return cache, nil
}

func (m *MemoryCache) Get(key string) (interface{}, bool) {
	now := time.Now()

	m.mu.RLock()
	entry, exists := m.data[key]
	if !exists {
		m.mu.RUnlock()
		return nil, false
	}

	if now.After(entry.ExpiresAt) {
		m.mu.RUnlock()

		m.mu.Lock()
		if entry, exists := m.data[key]; exists && now.After(entry.ExpiresAt) {
			delete(m.data, key)
		}
		m.mu.Unlock()

		return nil, false
	}

	value := entry.Value
	m.mu.RUnlock()

	return value, true
}

func (m *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		m.logger.Error("Attempted to set cache entry with empty key")
		return types.ErrCacheKeyEmpty
	}

	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	now := time.Now()
	entry := &types.CacheEntry{
		Key:       key,
		Value:     value,
		TTL:       ttl,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	m.mu.Lock()
	m.data[key] = entry
	m.mu.Unlock()

	return nil
}

func (m *MemoryCache) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Cleanup() error {
	now := time.Now()

	m.mu.Lock()
	expired := make([]string, 0, 8)
	for key, entry := range m.data {
		if now.After(entry.ExpiresAt) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		delete(m.data, key)
	}
	m.mu.Unlock()

	if len(expired) > 0 {
		m.logger.Debug("Cache sweep completed", zap.Int("removed", len(expired)))
	}

	return nil
}

func (m *MemoryCache) Start() error {
	if !m.transitionState(MemoryStateStopped, MemoryStateStarting) {
		m.logger.Warn("Memory cache is already running")
		return types.ErrServiceAlreadyRunning
	}

	defer func() {
		if m.getState() == MemoryStateStarting {
			m.setState(MemoryStateRunning)
		}
	}()

	if m.cleanupInterval > 0 {
		go m.startCleanupRoutine()
	} else {
		close(m.cleanupDone)
	}

	m.logger.Info("Memory cache started")
	return nil
}

func (m *MemoryCache) Stop() error {
	if !m.transitionState(MemoryStateRunning, MemoryStateStopping) {
		m.logger.Warn("Memory cache is not running")
		return types.ErrServiceIsNotRunning
	}

	defer func() {
		m.setState(MemoryStateStopped)
	}()

	m.cancel()
	close(m.stopCleanup)

	select {
	case <-m.cleanupDone:
	case <-time.After(5 * time.Second):
		m.logger.Warn("Cleanup routine stop timeout")
	}

	m.mu.Lock()
	m.data = make(map[string]*types.CacheEntry)
	m.mu.Unlock()

	m.logger.Info("Memory cache stopped gracefully")
	return nil
}

func (m *MemoryCache) IsRunning() bool {
	return m.getState() == MemoryStateRunning
}

func (m *MemoryCache) getState() MemoryState {
	return m.state.Load().(MemoryState)
}

func (m *MemoryCache) setState(newState MemoryState) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *MemoryCache) transitionState(from, to MemoryState) bool {
	return m.state.CompareAndSwap(from, to)
}

func (m *MemoryCache) startCleanupRoutine() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.stopCleanup:
			return
		case <-ticker.C:
			if err := m.Cleanup(); err != nil {
				m.logger.Error("Periodic cache sweep failed", zap.Error(err))
			}
		}
	}
}
