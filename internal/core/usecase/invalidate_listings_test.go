package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
)

type fakeResultCache struct {
	mu          sync.Mutex
	entries     map[string]domain.CacheEntry
	deleted     []string
	invalidated []string
}

func newFakeResultCache() *fakeResultCache {
	return &fakeResultCache{entries: make(map[string]domain.CacheEntry)}
}

func (c *fakeResultCache) Get(key string) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *fakeResultCache) Set(key string, entry domain.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

func (c *fakeResultCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deleted = append(c.deleted, key)
}

func (c *fakeResultCache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, prefix)
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *fakeResultCache) GetOrLoad(ctx context.Context, key string, load port.LoadFunc) (domain.AccumulatedResult, error) {
	return load(ctx)
}

func seedEntry() domain.CacheEntry {
	return domain.CacheEntry{FetchedAt: time.Now()}
}

func TestInvalidateListings_ListingUpdatedDropsSearchResults(t *testing.T) {
	cache := newFakeResultCache()
	cache.Set("listings:abc", seedEntry())
	cache.Set("listings:def", seedEntry())
	cache.Set("favorites:u1", seedEntry())

	uc := NewInvalidateListingsUseCase(cache)
	err := uc.Execute(context.Background(), domain.InvalidationEvent{
		Reason:    domain.InvalidationListingUpdated,
		ListingID: "42",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, ok := cache.Get("listings:abc"); ok {
		t.Fatalf("listing search results must be invalidated")
	}
	if _, ok := cache.Get("favorites:u1"); !ok {
		t.Fatalf("favorites cache must survive a listing update")
	}
	if len(cache.deleted) != 1 || cache.deleted[0] != domain.CacheKeyListing("42") {
		t.Fatalf("listing detail key not deleted: %v", cache.deleted)
	}
}

func TestInvalidateListings_FavoriteToggledDropsUserEntries(t *testing.T) {
	cache := newFakeResultCache()
	cache.Set("listings:abc", seedEntry())
	cache.Set(domain.CacheKeyFavoritesList("u1"), seedEntry())
	cache.Set(domain.CacheKeyListing("42"), seedEntry())

	uc := NewInvalidateListingsUseCase(cache)
	err := uc.Execute(context.Background(), domain.InvalidationEvent{
		Reason:    domain.InvalidationFavoriteToggled,
		ListingID: "42",
		UserID:    "u1",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, ok := cache.Get(domain.CacheKeyFavoritesList("u1")); ok {
		t.Fatalf("favorites list must be dropped")
	}
	if _, ok := cache.Get(domain.CacheKeyListing("42")); ok {
		t.Fatalf("listing detail must be dropped")
	}
	// Общая выдача не трогается - toggle избранного ее не меняет
	if _, ok := cache.Get("listings:abc"); !ok {
		t.Fatalf("search results must survive a favorite toggle")
	}
}

func TestInvalidateListings_UnknownReasonIsAnError(t *testing.T) {
	uc := NewInvalidateListingsUseCase(newFakeResultCache())
	err := uc.Execute(context.Background(), domain.InvalidationEvent{Reason: "price_drop"})
	if err == nil {
		t.Fatalf("unknown reason must be rejected")
	}
}
