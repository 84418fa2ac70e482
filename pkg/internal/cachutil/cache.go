// Package cachutil provides a loading cache that suppresses concurrent loads of the same key.
package cachutil

import (
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// Cache returns values produced by a load func and keeps
// successfully loaded values for a ttl.
type Cache[K comparable, V any] struct {
	ttl   time.Duration
	load  func(K) (V, error)
	cache *ttlcache.Cache[K, V]
	group singleflight.Group
}

// New returns a new Cache. A ttl <= 0 disables caching
// but still suppresses concurrent loads.
func New[K comparable, V any](ttl time.Duration, load func(K) (V, error)) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:  ttl,
		load: load,
		cache: ttlcache.New[K, V](
			ttlcache.WithTTL[K, V](ttl),
			ttlcache.WithDisableTouchOnHit[K, V](),
		),
	}
}

// Get returns the cached value of key or loads it.
// Only one load of the same key is in-flight at a time. Errors are not cached.
func (c *Cache[K, V]) Get(key K) (V, error) {
	if c.ttl > 0 {
		if item := c.cache.Get(key); item != nil {
			return item.Value(), nil
		}
	}
	res, err, _ := c.group.Do(fmt.Sprint(key), func() (any, error) {
		v, err := c.load(key)
		if err != nil {
			return nil, err
		}
		if c.ttl > 0 {
			c.cache.Set(key, v, ttlcache.DefaultTTL)
		}
		return v, nil
	})
	v, _ := res.(V)
	return v, err
}

// Invalidate removes all cached values.
func (c *Cache[K, V]) Invalidate() {
	c.cache.DeleteAll()
}
