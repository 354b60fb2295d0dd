package types

import (
	"time"
)

// CacheManager is the TTL key/value store shared by both polling loops.
// Values are JSON-serializable; Get returns false for missing and for
// expired entries alike.
type CacheManager interface {
	LifecycleManager
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(key string) error
	Cleanup() error
}

// CacheEnvelope is the on-disk shape of a file cache entry: the stored value
// plus its expiry as epoch milliseconds.
type CacheEnvelope struct {
	Data    interface{} `json:"data"`
	Expires int64       `json:"expires"`
}

type CacheEntry struct {
	Key       string        `json:"key"`
	Value     interface{}   `json:"value"`
	TTL       time.Duration `json:"ttl"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}
