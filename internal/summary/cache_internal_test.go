package summary

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	cache := NewCache(2, time.Hour)
	if cache == nil {
		t.Fatalf("expected cache instance")
	}

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	doc := &Document{Title: "value"}
	cache.set("key", doc, now.Add(time.Hour), now)

	got, ok := cache.get("key", now)
	if !ok {
		t.Fatalf("expected cached document to be present")
	}

	if got != doc {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestCacheExpiresEntries(t *testing.T) {
	cache := NewCache(2, time.Hour)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	cache.set("key", &Document{}, now.Add(time.Minute), now)

	if _, ok := cache.get("key", now.Add(2*time.Minute)); ok {
		t.Fatalf("expected cache entry to expire")
	}

	if len(cache.entries) != 0 {
		t.Fatalf("expected expired cache entry to be removed")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewCache(2, time.Hour)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour)

	cache.set("a", &Document{Title: "a"}, expiresAt, now)
	cache.set("b", &Document{Title: "b"}, expiresAt, now)

	if _, ok := cache.get("a", now); !ok {
		t.Fatalf("expected entry a to exist before eviction check")
	}

	cache.set("c", &Document{Title: "c"}, expiresAt, now)

	if _, ok := cache.get("a", now); !ok {
		t.Fatalf("expected entry a to remain after evicting least recently used")
	}

	if _, ok := cache.get("b", now); ok {
		t.Fatalf("expected entry b to be evicted")
	}

	if _, ok := cache.get("c", now); !ok {
		t.Fatalf("expected entry c to be cached")
	}
}

func TestCacheParseReusesDocument(t *testing.T) {
	cache := NewCache(4, time.Hour)
	raw := `{"title":"Deep Work","overview":"Focus."}`

	first, err := cache.Parse("executive", raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	second, err := cache.Parse("executive", raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if first != second {
		t.Fatalf("expected cached document to be reused")
	}

	other, err := cache.Parse("study", raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if other == first || other.Style != "study" {
		t.Fatalf("expected style to be part of the cache key")
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	cache := NewCache(4, time.Hour)

	if _, err := cache.Parse("executive", "not json"); err == nil {
		t.Fatalf("expected parse error")
	}

	if cache.Len() != 0 {
		t.Fatalf("unexpected cache size: %d", cache.Len())
	}
}

func TestNilCacheParses(t *testing.T) {
	var cache *Cache

	doc, err := cache.Parse("executive", `{"overview":"x"}`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if len(doc.Fields) != 1 {
		t.Fatalf("unexpected fields: %+v", doc.Fields)
	}
}
