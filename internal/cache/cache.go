package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Close releases background resources
	Close()
}

// Options tune a ristretto-backed cache.
type Options struct {
	MaxItems int64
	TTL      time.Duration
}

// TTLCache is a Cache backed by ristretto. Every entry costs 1, so MaxItems
// bounds the number of live keys.
type TTLCache[T any] struct {
	store *ristretto.Cache[string, T]
	ttl   time.Duration
}

// New creates a TTLCache. A zero TTL keeps entries until evicted.
func New[T any](opts Options) (*TTLCache[T], error) {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 1000
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, T]{
		NumCounters:        opts.MaxItems * 10, // number of keys to track frequency of
		MaxCost:            opts.MaxItems,
		BufferItems:        64, // number of keys per Get buffer
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &TTLCache[T]{store: store, ttl: opts.TTL}, nil
}

func (c *TTLCache[T]) Get(key string) (T, bool) {
	return c.store.Get(key)
}

// Set stores data and waits until it is visible to Get, so readers never
// observe a stale entry right after a write.
func (c *TTLCache[T]) Set(key string, data T) {
	if c.ttl > 0 {
		c.store.SetWithTTL(key, data, 1, c.ttl)
	} else {
		c.store.Set(key, data, 1)
	}
	c.store.Wait()
}

func (c *TTLCache[T]) Delete(key string) {
	c.store.Del(key)
}

func (c *TTLCache[T]) Close() {
	c.store.Close()
}

var _ Cache[int] = (*TTLCache[int])(nil)
