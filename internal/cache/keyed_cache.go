// Package cache provides a small generic keyed cache with per-entry TTL
// expiration, used anywhere the gateway needs to bound the memory of a
// naturally-growing map without hand-rolling LRU bookkeeping.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// KeyedCache is a generic thread-safe LRU cache with per-entry TTL
// expiration. It is the shared caching primitive behind any bounded
// keyed store in the gateway.
type KeyedCache[V any] struct {
	cache *expirable.LRU[string, V]
}

// New creates a keyed cache holding at most maxSize entries, each expiring
// ttl after insertion.
func New[V any](maxSize int, ttl time.Duration) *KeyedCache[V] {
	return &KeyedCache[V]{
		cache: expirable.NewLRU[string, V](maxSize, nil, ttl),
	}
}

// Get retrieves a single value by key. Returns the value and true on hit.
func (c *KeyedCache[V]) Get(key string) (V, bool) {
	return c.cache.Get(key)
}

// Add stores a value under the given key, evicting the oldest entry if the
// cache is already at maxSize.
func (c *KeyedCache[V]) Add(key string, value V) {
	c.cache.Add(key, value)
}

// Remove evicts key, if present.
func (c *KeyedCache[V]) Remove(key string) {
	c.cache.Remove(key)
}

// Len returns the number of entries currently in the cache.
func (c *KeyedCache[V]) Len() int {
	return c.cache.Len()
}
