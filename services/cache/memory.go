package cachesvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
)

var nowFunc = time.Now // mockable

type memoryEntry struct {
	batch   attendance.Batch
	expires time.Time
}

// MemoryCache is a process-local cache used when no redis address is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	ttl   time.Duration
}

var _ attendance.Cache = (*MemoryCache)(nil)

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryEntry), ttl: ttl}
}

func (c *MemoryCache) GetBatch(_ context.Context, key string) (attendance.Batch, bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return attendance.Batch{}, false, nil
	}
	if !e.expires.IsZero() && nowFunc().After(e.expires) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return attendance.Batch{}, false, nil
	}
	return e.batch, true, nil
}

func (c *MemoryCache) SetBatch(_ context.Context, key string, batch attendance.Batch) error {
	e := memoryEntry{batch: batch}
	if c.ttl > 0 {
		e.expires = nowFunc().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) Close() error { return nil }

// Cache is an attendance.Cache that may hold a connection.
type Cache interface {
	attendance.Cache
	Close() error
}

// New returns a redis cache when conf.Redis.Addr is set, the memory cache otherwise.
func New(ctx context.Context, conf *core.Config) (Cache, error) {
	if conf.Redis.Addr == "" {
		return NewMemoryCache(conf.Redis.TTL), nil
	}
	return NewRedisCache(ctx, conf.Redis)
}
