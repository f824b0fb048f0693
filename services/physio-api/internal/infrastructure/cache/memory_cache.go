package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// MemoryCache is a size-bounded LRU whose entries also expire.
type MemoryCache struct {
	cache *lru.Cache
	mu    sync.RWMutex
	now   func() time.Time
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

func NewMemoryCache(maxSize int) (*MemoryCache, error) {
	if maxSize <= 0 {
		maxSize = 1024
	}
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{cache: cache, now: time.Now}, nil
}

func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	val, found := c.cache.Get(key)
	c.mu.RUnlock()
	if !found {
		return nil, false
	}

	entry := val.(cacheEntry)
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value; a ttl of zero never expires.
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.cache.Add(key, entry)
}

func (c *MemoryCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

func (c *MemoryCache) Len() int {
	return c.cache.Len()
}
