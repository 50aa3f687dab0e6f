package cache

import (
	"testing"
)

func TestLRUCache_SetAndGet(t *testing.T) {
	cache := NewLRUCache[int](10)

	cache.Set(PairKey("1.0", "2.0"), -1)

	value, ok := cache.Get(PairKey("1.0", "2.0"))
	if !ok {
		t.Fatal("expected to find key")
	}
	if value != -1 {
		t.Errorf("expected -1, got %d", value)
	}

	if _, ok := cache.Get(PairKey("2.0", "1.0")); ok {
		t.Error("reversed pair must be a different key")
	}
}

func TestLRUCache_LRUEviction(t *testing.T) {
	cache := NewLRUCache[int](3)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	// Access "a" to make it recently used
	cache.Get("a")

	// Add new entry, should evict "b" (least recently used)
	cache.Set("d", 4)

	if _, ok := cache.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := cache.Get(key); !ok {
			t.Errorf("expected %q to still exist", key)
		}
	}
}

func TestLRUCache_Delete(t *testing.T) {
	cache := NewLRUCache[int](10)

	cache.Set("key", 1)
	cache.Delete("key")

	if _, ok := cache.Get("key"); ok {
		t.Error("expected key to be deleted")
	}
}

func TestLRUCache_Clear(t *testing.T) {
	cache := NewLRUCache[int](10)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Clear()

	if cache.Size() != 0 {
		t.Errorf("expected size 0 after clear, got %d", cache.Size())
	}
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	cache := NewLRUCache[int](2)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("a", 10)
	cache.Set("c", 3)

	if v, ok := cache.Get("a"); !ok || v != 10 {
		t.Errorf("expected updated 'a'=10, got %d (found=%v)", v, ok)
	}
	if _, ok := cache.Get("b"); ok {
		t.Error("expected 'b' to be evicted after 'a' was refreshed")
	}
	if cache.Size() != 2 {
		t.Errorf("expected size 2, got %d", cache.Size())
	}
}

func TestLRUCache_DefaultCapacity(t *testing.T) {
	cache := NewLRUCache[int](0)
	if cache.maxEntries != DefaultMaxEntries {
		t.Errorf("expected default capacity %d, got %d", DefaultMaxEntries, cache.maxEntries)
	}
}

func TestLRUCache_Stats(t *testing.T) {
	cache := NewLRUCache[int](4)

	cache.Set("a", 1)
	cache.Get("a")
	cache.Get("a")
	cache.Get("missing")

	hits, misses := cache.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("expected 2 hits and 1 miss, got %d/%d", hits, misses)
	}
}
