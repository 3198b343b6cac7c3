package resultcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"listing-edge-service/internal/core/domain"

	"github.com/google/uuid"
)

func resultOf(n int) domain.AccumulatedResult {
	items := make([]domain.ListingItem, n)
	for i := range items {
		items[i] = domain.ListingItem{ID: uuid.New()}
	}
	return domain.AccumulatedResult{Items: items, Exhausted: true}
}

func newTestCache(t *testing.T) *MemoryCacheAdapter {
	t.Helper()
	c := NewMemoryCacheAdapter(nil)
	t.Cleanup(c.Close)
	return c
}

func TestGetOrLoad_FreshHitSkipsLoader(t *testing.T) {
	c := newTestCache(t)
	c.Set("listings:a", domain.CacheEntry{Result: resultOf(3), FetchedAt: time.Now()})

	var calls int32
	got, err := c.GetOrLoad(context.Background(), "listings:a", func(ctx context.Context) (domain.AccumulatedResult, error) {
		atomic.AddInt32(&calls, 1)
		return resultOf(1), nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if len(got.Items) != 3 {
		t.Fatalf("expected cached result, got %d items", len(got.Items))
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("loader must not run on a fresh hit, ran %d times", n)
	}
}

func TestGetOrLoad_MissBlocksOnLoader(t *testing.T) {
	c := newTestCache(t)

	got, err := c.GetOrLoad(context.Background(), "listings:miss", func(ctx context.Context) (domain.AccumulatedResult, error) {
		return resultOf(5), nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if len(got.Items) != 5 {
		t.Fatalf("expected loaded result, got %d items", len(got.Items))
	}

	// Загрузка должна была осесть в кэше
	if entry, ok := c.Get("listings:miss"); !ok || len(entry.Result.Items) != 5 {
		t.Fatalf("loaded result must be stored, ok=%v", ok)
	}
}

func TestGetOrLoad_StaleServedWithBackgroundRefresh(t *testing.T) {
	c := newTestCache(t)

	// Запись старше окна свежести, но моложе жесткого TTL
	staleAt := time.Now().Add(-domain.CacheFreshnessWindow - time.Minute)
	c.Set("listings:stale", domain.CacheEntry{Result: resultOf(2), FetchedAt: staleAt})

	refreshed := resultOf(9)
	loaded := make(chan struct{})
	got, err := c.GetOrLoad(context.Background(), "listings:stale", func(ctx context.Context) (domain.AccumulatedResult, error) {
		defer close(loaded)
		return refreshed, nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	// Устаревшая запись отдается сразу, не дожидаясь обновления
	if len(got.Items) != 2 {
		t.Fatalf("stale entry must be served as-is, got %d items", len(got.Items))
	}

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatalf("background refresh never ran")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if entry, ok := c.Get("listings:stale"); ok && len(entry.Result.Items) == 9 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("refreshed result never landed in the cache")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestGetOrLoad_ExpiredEntryBlocksOnLoader(t *testing.T) {
	c := newTestCache(t)
	c.Set("listings:dead", domain.CacheEntry{
		Result:    resultOf(2),
		FetchedAt: time.Now().Add(-domain.CacheHardExpiry - time.Minute),
	})

	got, err := c.GetOrLoad(context.Background(), "listings:dead", func(ctx context.Context) (domain.AccumulatedResult, error) {
		return resultOf(4), nil
	})
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if len(got.Items) != 4 {
		t.Fatalf("expired entry must not be served, got %d items", len(got.Items))
	}
}

func TestGetOrLoad_LoaderErrorPropagates(t *testing.T) {
	c := newTestCache(t)
	loadErr := errors.New("upstream down")

	_, err := c.GetOrLoad(context.Background(), "listings:err", func(ctx context.Context) (domain.AccumulatedResult, error) {
		return domain.AccumulatedResult{}, loadErr
	})
	if !errors.Is(err, loadErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, ok := c.Get("listings:err"); ok {
		t.Fatalf("failed load must not be cached")
	}
}

func TestGet_ExpiredEntryIsAMiss(t *testing.T) {
	c := newTestCache(t)
	c.Set("listings:x", domain.CacheEntry{
		Result:    resultOf(1),
		FetchedAt: time.Now().Add(-domain.CacheHardExpiry - time.Second),
	})
	if _, ok := c.Get("listings:x"); ok {
		t.Fatalf("expired entry must read as a miss")
	}
}

func TestInvalidate_RemovesByPrefix(t *testing.T) {
	c := newTestCache(t)
	now := time.Now()
	c.Set("listings:a", domain.CacheEntry{Result: resultOf(1), FetchedAt: now})
	c.Set("listings:b", domain.CacheEntry{Result: resultOf(1), FetchedAt: now})
	c.Set("favorites:u1", domain.CacheEntry{Result: resultOf(1), FetchedAt: now})

	if removed := c.Invalidate(domain.ListingsKeyPrefix); removed != 2 {
		t.Fatalf("expected 2 removed entries, got %d", removed)
	}
	if _, ok := c.Get("favorites:u1"); !ok {
		t.Fatalf("entries outside the prefix must survive")
	}
}

func TestDelete_RemovesSingleKey(t *testing.T) {
	c := newTestCache(t)
	now := time.Now()
	c.Set("listings:a", domain.CacheEntry{Result: resultOf(1), FetchedAt: now})
	c.Set("listings:b", domain.CacheEntry{Result: resultOf(1), FetchedAt: now})

	c.Delete("listings:a")
	if _, ok := c.Get("listings:a"); ok {
		t.Fatalf("deleted key must be gone")
	}
	if _, ok := c.Get("listings:b"); !ok {
		t.Fatalf("other keys must survive a delete")
	}
}
