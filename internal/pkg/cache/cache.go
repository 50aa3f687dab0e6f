// Package cache provides a small in-memory LRU used to memoize version
// comparisons, each of which may cost a process spawn.
package cache

import (
	"sync"
)

const (
	// DefaultMaxEntries is the default maximum number of cache entries.
	DefaultMaxEntries = 512
)

// Manager defines the interface for cache management.
type Manager[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Clear()
	Size() int
}

// LRUCache implements an in-memory LRU cache.
type LRUCache[V any] struct {
	mu         sync.Mutex
	entries    map[string]V
	order      []string // Tracks access order for LRU eviction
	maxEntries int
	hits       int
	misses     int
}

// NewLRUCache creates a new LRU cache holding at most maxEntries values.
func NewLRUCache[V any](maxEntries int) *LRUCache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &LRUCache[V]{
		entries:    make(map[string]V),
		order:      make([]string, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value from the cache and marks it most recently used.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, exists := c.entries[key]
	if !exists {
		c.misses++
		var zero V
		return zero, false
	}

	c.hits++
	c.moveToEnd(key)
	return value, true
}

// Set stores a value, evicting the least recently used entry at capacity.
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = value
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[key] = value
	c.order = append(c.order, key)
}

// Delete removes a value from the cache.
func (c *LRUCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteUnlocked(key)
}

// Clear removes all entries from the cache.
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]V)
	c.order = make([]string, 0, c.maxEntries)
}

// Size returns the number of entries in the cache.
func (c *LRUCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counters.
func (c *LRUCache[V]) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// deleteUnlocked removes an entry without acquiring the lock.
// Caller must hold the lock.
func (c *LRUCache[V]) deleteUnlocked(key string) {
	delete(c.entries, key)
	c.removeFromOrder(key)
}

// evictOldest removes the least recently used entry.
// Caller must hold the lock.
func (c *LRUCache[V]) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	c.deleteUnlocked(c.order[0])
}

// moveToEnd moves a key to the most recently used position.
// Caller must hold the lock.
func (c *LRUCache[V]) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

// removeFromOrder removes a key from the order slice.
// Caller must hold the lock.
func (c *LRUCache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// PairKey builds the key for an ordered pair of strings. The separator is a
// NUL byte, which cannot occur in a version or tag name.
func PairKey(a, b string) string {
	return a + "\x00" + b
}
