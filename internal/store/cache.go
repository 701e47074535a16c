package store

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MetaCache is a small TTL cache for cheap metadata that is safe to serve
// slightly stale. Entries are evicted lazily when read after expiry; nothing
// is swept proactively.
type MetaCache struct {
	ttl   time.Duration
	cache *lru.Cache[string, cacheEntry]
}

// NewMetaCache builds a cache holding up to maxEntries values for ttl each.
func NewMetaCache(maxEntries int, ttl time.Duration) *MetaCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c, err := lru.New[string, cacheEntry](maxEntries)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &MetaCache{ttl: ttl, cache: c}
}

// Get returns the cached value for key, expiring it on read if stale.
func (m *MetaCache) Get(key string) ([]byte, bool) {
	if m == nil {
		return nil, false
	}
	ent, ok := m.cache.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(ent.expiresAt) {
		m.cache.Remove(key)
		return nil, false
	}
	return ent.value, true
}

// Set stores value under key for the cache's TTL.
func (m *MetaCache) Set(key string, value []byte) {
	if m == nil {
		return
	}
	m.cache.Add(key, cacheEntry{value: value, expiresAt: time.Now().Add(m.ttl)})
}

// Len reports the number of resident entries, expired or not.
func (m *MetaCache) Len() int {
	if m == nil {
		return 0
	}
	return m.cache.Len()
}
