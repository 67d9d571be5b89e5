// Package querycache memoizes list queries per (list, entity type) and
// drops them when the sync engine reports a change.
package querycache

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/packsync/internal/models"
)

// Key identifies one cached query.
type Key struct {
	Entity models.EntityType
	ListID int64
}

func (k Key) String() string {
	return string(k.Entity) + "@" + strconv.FormatInt(k.ListID, 10)
}

// Listener is notified after a key has been invalidated.
type Listener func(key Key)

// Loader computes a query result on a miss.
type Loader func(ctx context.Context) (any, error)

// Cache is safe for concurrent use.
type Cache struct {
	entries   map[Key]any
	gens      map[Key]uint64 // растет при каждом Invalidate ключа
	listeners map[int]Listener
	group     singleflight.Group
	nextID    int
	mu        sync.RWMutex
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries:   make(map[Key]any),
		gens:      make(map[Key]uint64),
		listeners: make(map[int]Listener),
	}
}

// Get returns the cached value for key.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Set stores a value for key.
func (c *Cache) Set(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}

// GetOrLoad returns the cached value or runs load once for all concurrent callers.
// A result whose key was invalidated while loading is returned but not cached.
func (c *Cache) GetOrLoad(ctx context.Context, key Key, load Loader) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		gen := c.gens[key]
		c.mu.RUnlock()

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gens[key] == gen {
			c.entries[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return v, nil
}

// Invalidate drops the entries of listID for the given entity types and notifies listeners.
func (c *Cache) Invalidate(listID int64, types ...models.EntityType) {
	keys := make([]Key, 0, len(types))

	c.mu.Lock()
	for _, t := range types {
		k := Key{Entity: t, ListID: listID}
		delete(c.entries, k)
		c.gens[k]++
		c.group.Forget(k.String())
		keys = append(keys, k)
	}
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, k := range keys {
		for _, l := range listeners {
			l(k)
		}
	}
}

// Subscribe registers l. The returned func removes it.
func (c *Cache) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = l

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
