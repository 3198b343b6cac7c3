package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"listing-edge-service/internal/core/domain"
)

type fakeFavoritesClient struct {
	added   [][2]string // listingID, userID
	removed [][2]string
	err     error
}

func (c *fakeFavoritesClient) Add(ctx context.Context, listingID, userID string) error {
	c.added = append(c.added, [2]string{listingID, userID})
	return c.err
}

func (c *fakeFavoritesClient) Remove(ctx context.Context, listingID, userID string) error {
	c.removed = append(c.removed, [2]string{listingID, userID})
	return c.err
}

func TestToggleFavorite_AddInvalidatesRelatedEntries(t *testing.T) {
	client := &fakeFavoritesClient{}
	cache := newFakeResultCache()
	cache.Set(domain.CacheKeyFavoritesList("u1"), seedEntry())
	cache.Set(domain.CacheKeyListing("42"), seedEntry())

	uc := NewToggleFavoriteUseCase(client, cache)
	if err := uc.Execute(context.Background(), "42", "u1", true); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(client.added) != 1 || client.added[0] != [2]string{"42", "u1"} {
		t.Fatalf("upstream add not called correctly: %v", client.added)
	}
	if _, ok := cache.Get(domain.CacheKeyFavoritesList("u1")); ok {
		t.Fatalf("favorites list must be invalidated after toggle")
	}
	if _, ok := cache.Get(domain.CacheKeyListing("42")); ok {
		t.Fatalf("listing detail must be invalidated after toggle")
	}
}

func TestToggleFavorite_RemoveCallsUpstream(t *testing.T) {
	client := &fakeFavoritesClient{}
	uc := NewToggleFavoriteUseCase(client, newFakeResultCache())

	if err := uc.Execute(context.Background(), "42", "u1", false); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(client.removed) != 1 {
		t.Fatalf("upstream remove not called: %v", client.removed)
	}
}

func TestToggleFavorite_UpstreamErrorKeepsCache(t *testing.T) {
	client := &fakeFavoritesClient{err: errors.New("upstream down")}
	cache := newFakeResultCache()
	cache.Set(domain.CacheKeyFavoritesList("u1"), domain.CacheEntry{FetchedAt: time.Now()})

	uc := NewToggleFavoriteUseCase(client, cache)
	if err := uc.Execute(context.Background(), "42", "u1", true); err == nil {
		t.Fatalf("upstream failure must propagate")
	}
	// Мутация не прошла - кэш остается как был
	if _, ok := cache.Get(domain.CacheKeyFavoritesList("u1")); !ok {
		t.Fatalf("failed toggle must not invalidate cache entries")
	}
}
