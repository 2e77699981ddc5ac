// Package clientcache caches provider SDK clients keyed by configuration
// hash, so concurrent runs against the same provider settings share one
// client instead of rebuilding connections per request.
package clientcache

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is a type-safe cache with singleflight set semantics: under
// concurrent misses for the same key the factory runs exactly once.
type Cache[T any] struct {
	cache   sync.Map
	sfGroup singleflight.Group
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{}
}

// GetOrCreate returns the cached value for key, building it with factory on
// a miss. A factory error is returned without caching anything.
func (c *Cache[T]) GetOrCreate(key string, factory func() (T, error)) (T, error) {
	if cached, ok := c.cache.Load(key); ok {
		return cached.(T), nil
	}

	v, err, _ := c.sfGroup.Do(key, func() (any, error) {
		// Re-check under the singleflight lock; another caller may have
		// populated the key between the Load above and Do.
		if cached, ok := c.cache.Load(key); ok {
			return cached.(T), nil
		}

		client, err := factory()
		if err != nil {
			var zero T
			return zero, err
		}

		c.cache.Store(key, client)

		return client, nil
	})

	if err != nil {
		var zero T
		return zero, err
	}

	return v.(T), nil
}

// Delete evicts one key, forcing the next GetOrCreate to rebuild.
func (c *Cache[T]) Delete(key string) {
	c.cache.Delete(key)
}
