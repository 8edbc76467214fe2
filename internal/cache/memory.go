package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a bounded in-process cache. Entries leave when they expire
// or when the least recently used entry is evicted to make room.
type MemoryCache struct {
	lru *expirable.LRU[string, cacheItem]
	ttl time.Duration
	now func() time.Time
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries items. maxTTL caps
// the lifetime of every entry.
func NewMemoryCache(maxEntries int, maxTTL time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if maxTTL <= 0 {
		maxTTL = 5 * time.Minute
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, cacheItem](maxEntries, nil, maxTTL),
		ttl: maxTTL,
		now: time.Now,
	}
}

// Get retrieves a value from cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	item, ok := m.lru.Get(key)
	if !ok || !m.now().Before(item.expiration) {
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value; ttl values above the cache's cap are clamped
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > m.ttl {
		ttl = m.ttl
	}
	m.lru.Add(key, cacheItem{value: value, expiration: m.now().Add(ttl)})
	return nil
}

// Delete removes a value from cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Exists checks if a live key exists
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	item, ok := m.lru.Peek(key)
	if !ok {
		return false, nil
	}
	return m.now().Before(item.expiration), nil
}

// Clear removes all keys matching pattern
func (m *MemoryCache) Clear(ctx context.Context, pattern string) error {
	for _, key := range m.lru.Keys() {
		if matchPattern(key, pattern) {
			m.lru.Remove(key)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired or not
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

func (m *MemoryCache) Close() error {
	m.lru.Purge()
	return nil
}
