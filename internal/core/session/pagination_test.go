package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"

	"github.com/google/uuid"
)

// --- моки ---

type testLogger struct{}

func (l *testLogger) Debug(msg string, fields port.Fields)            {}
func (l *testLogger) Info(msg string, fields port.Fields)             {}
func (l *testLogger) Warn(msg string, fields port.Fields)             {}
func (l *testLogger) Error(msg string, err error, fields port.Fields) {}
func (l *testLogger) WithFields(fields port.Fields) port.LoggerPort   { return l }

type stubCache struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	deleted []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]domain.CacheEntry)}
}

func (c *stubCache) Get(key string) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *stubCache) Set(key string, entry domain.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

func (c *stubCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deleted = append(c.deleted, key)
}

func (c *stubCache) Invalidate(prefix string) int { return 0 }

func (c *stubCache) GetOrLoad(ctx context.Context, key string, load port.LoadFunc) (domain.AccumulatedResult, error) {
	return load(ctx)
}

type stubWarmer struct {
	mu   sync.Mutex
	urls []string
}

func (w *stubWarmer) WarmImages(ctx context.Context, urls []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.urls = append(w.urls, urls...)
}

// scriptedFetcher отдает заранее заготовленные страницы по индексу
type scriptedFetcher struct {
	mu    sync.Mutex
	pages map[int]domain.Page
	errs  map[int]error
	calls []int

	// blockCh, если задан, тормозит FetchPage до записи в канал
	blockCh chan struct{}
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, filters domain.FilterSet, sortKey domain.SortKey, pageIndex int) (domain.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageIndex)
	block := f.blockCh
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[pageIndex]; ok {
		return domain.Page{}, err
	}
	return f.pages[pageIndex], nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func pageOf(index, n int) domain.Page {
	items := make([]domain.ListingItem, n)
	for i := range items {
		items[i] = domain.ListingItem{ID: uuid.New()}
	}
	return domain.Page{Index: index, Items: items}
}

// --- тесты ---

func TestPaginationController_AccumulatesUntilShortPage(t *testing.T) {
	fetcher := &scriptedFetcher{pages: map[int]domain.Page{
		0: pageOf(0, domain.PageSize),
		1: pageOf(1, 7),
	}}
	c := NewPaginationController(fetcher, newStubCache(), nil, &testLogger{}, domain.FilterSet{}, domain.SortNewest)

	if started, err := c.FetchNextPage(context.Background()); !started || err != nil {
		t.Fatalf("first fetch must run: started=%v err=%v", started, err)
	}
	snap := c.Snapshot()
	if len(snap.Items) != domain.PageSize || !snap.HasNextPage {
		t.Fatalf("after full page: items=%d hasNext=%v", len(snap.Items), snap.HasNextPage)
	}

	if started, err := c.FetchNextPage(context.Background()); !started || err != nil {
		t.Fatalf("second fetch must run: started=%v err=%v", started, err)
	}
	snap = c.Snapshot()
	if len(snap.Items) != domain.PageSize+7 {
		t.Fatalf("expected %d items, got %d", domain.PageSize+7, len(snap.Items))
	}
	if snap.HasNextPage {
		t.Fatalf("short page must exhaust the feed")
	}

	// Выдача исчерпана - дальнейшие вызовы ничего не делают
	if started, _ := c.FetchNextPage(context.Background()); started {
		t.Fatalf("fetch past the end must be a no-op")
	}
	if got := fetcher.callCount(); got != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", got)
	}
}

func TestPaginationController_SingleInFlightRequest(t *testing.T) {
	block := make(chan struct{})
	fetcher := &scriptedFetcher{
		pages:   map[int]domain.Page{0: pageOf(0, domain.PageSize)},
		blockCh: block,
	}
	c := NewPaginationController(fetcher, newStubCache(), nil, &testLogger{}, domain.FilterSet{}, domain.SortNewest)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.FetchNextPage(context.Background())
	}()

	// Ждем, пока первый запрос уйдет в "сеть"
	waitFor(t, func() bool { return c.IsFetching() })

	// Конкурентный вызов при запросе в полете - мгновенный no-op
	if started, err := c.FetchNextPage(context.Background()); started || err != nil {
		t.Fatalf("concurrent fetch must be a no-op: started=%v err=%v", started, err)
	}

	close(block)
	<-done

	if got := fetcher.callCount(); got != 1 {
		t.Fatalf("expected a single upstream call, got %d", got)
	}
}

func TestPaginationController_DiscardsResultFromAbandonedContext(t *testing.T) {
	block := make(chan struct{})
	fetcher := &scriptedFetcher{
		pages:   map[int]domain.Page{0: pageOf(0, domain.PageSize)},
		blockCh: block,
	}
	c := NewPaginationController(fetcher, newStubCache(), nil, &testLogger{}, domain.FilterSet{Search: "old"}, domain.SortNewest)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.FetchNextPage(context.Background())
	}()
	waitFor(t, func() bool { return c.IsFetching() })

	// Фильтры сменились, пока страница была в полете
	c.ResetContext(domain.FilterSet{Search: "new"}, domain.SortNewest)

	close(block)
	<-done

	snap := c.Snapshot()
	if len(snap.Items) != 0 {
		t.Fatalf("stale page must be discarded, got %d items", len(snap.Items))
	}
	if !snap.HasNextPage {
		t.Fatalf("new context must start with has-next-page true")
	}
}

func TestPaginationController_ErrorKeepsAccumulatedItems(t *testing.T) {
	fetchErr := errors.New("upstream down")
	fetcher := &scriptedFetcher{
		pages: map[int]domain.Page{0: pageOf(0, domain.PageSize)},
		errs:  map[int]error{1: fetchErr},
	}
	c := NewPaginationController(fetcher, newStubCache(), nil, &testLogger{}, domain.FilterSet{}, domain.SortNewest)

	if _, err := c.FetchNextPage(context.Background()); err != nil {
		t.Fatalf("first page: %v", err)
	}
	if _, err := c.FetchNextPage(context.Background()); !errors.Is(err, fetchErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	snap := c.Snapshot()
	if !snap.IsError || snap.LastError == "" {
		t.Fatalf("error state must be visible in snapshot")
	}
	if len(snap.Items) != domain.PageSize {
		t.Fatalf("failed page must not corrupt accumulated items, got %d", len(snap.Items))
	}

	// Refetch снимает ошибку и пробует ту же страницу
	fetcher.mu.Lock()
	delete(fetcher.errs, 1)
	fetcher.pages[1] = pageOf(1, 3)
	fetcher.mu.Unlock()

	if started, err := c.Refetch(context.Background()); !started || err != nil {
		t.Fatalf("refetch must retry the failed page: started=%v err=%v", started, err)
	}
	snap = c.Snapshot()
	if snap.IsError {
		t.Fatalf("successful refetch must clear the error state")
	}
	if len(snap.Items) != domain.PageSize+3 {
		t.Fatalf("expected %d items after refetch, got %d", domain.PageSize+3, len(snap.Items))
	}
}

func TestPaginationController_AdoptsFreshCacheEntry(t *testing.T) {
	filters := domain.FilterSet{Search: "cached"}
	cache := newStubCache()

	var seeded domain.AccumulatedResult
	seeded.Append(pageOf(0, domain.PageSize))
	cache.Set(filters.CacheKey(domain.SortNewest), domain.CacheEntry{Result: seeded, FetchedAt: time.Now()})

	fetcher := &scriptedFetcher{pages: map[int]domain.Page{1: pageOf(1, 2)}}
	c := NewPaginationController(fetcher, cache, nil, &testLogger{}, filters, domain.SortNewest)

	snap := c.Snapshot()
	if len(snap.Items) != domain.PageSize {
		t.Fatalf("fresh cache entry must seed the controller, got %d items", len(snap.Items))
	}

	// Следующий фетч продолжает с того места, где остановился кэш
	if _, err := c.FetchNextPage(context.Background()); err != nil {
		t.Fatalf("fetch after cache adoption: %v", err)
	}
	if fetcher.calls[0] != 1 {
		t.Fatalf("expected fetch of page 1, got page %d", fetcher.calls[0])
	}
}

func TestPaginationController_WarmsFirstImages(t *testing.T) {
	page := pageOf(0, 3)
	page.Items[0].Images = []string{"https://img.example/a.jpg", "https://img.example/b.jpg"}
	page.Items[1].Images = []string{"https://img.example/c.jpg"}

	warmer := &stubWarmer{}
	fetcher := &scriptedFetcher{pages: map[int]domain.Page{0: page}}
	c := NewPaginationController(fetcher, newStubCache(), warmer, &testLogger{}, domain.FilterSet{}, domain.SortNewest)

	if _, err := c.FetchNextPage(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	waitFor(t, func() bool {
		warmer.mu.Lock()
		defer warmer.mu.Unlock()
		return len(warmer.urls) == 3
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}
