package session

import (
	"context"
	"sync"
	"time"

	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
)

// prefetchImageCount - сколько первых картинок страницы прогреваем в кэше
const prefetchImageCount = 4

// PaginationSnapshot - срез состояния контроллера для слоя отображения
type PaginationSnapshot struct {
	Items              []domain.ListingItem
	HasNextPage        bool
	IsFetchingNextPage bool
	IsLoading          bool
	IsError            bool
	LastError          string
}

// PaginationController - контроллер постраничной загрузки выдачи.
//
// Инварианты:
//   - не больше одного запроса в полете на контекст (FilterSet, SortKey);
//     повторный FetchNextPage при запросе в полете - no-op;
//   - страницы запрашиваются и добавляются строго по возрастанию индекса;
//   - ошибка не трогает накопленную выдачу (битых/частичных страниц нет);
//   - смена контекста сбрасывает накопленное и начинает со страницы 0;
//     результат запроса из брошенного контекста выбрасывается по epoch.
type PaginationController struct {
	mu sync.Mutex

	fetcher port.ListingFetcherPort
	cache   port.ResultCachePort
	warmer  port.ImageWarmerPort
	logger  port.LoggerPort

	filters domain.FilterSet
	sortKey domain.SortKey

	// epoch растет при каждой смене контекста; запрос, стартовавший
	// при другом epoch, при завершении игнорируется
	epoch uint64

	result   domain.AccumulatedResult
	fetching bool
	loading  bool
	lastErr  error
}

func NewPaginationController(
	fetcher port.ListingFetcherPort,
	cache port.ResultCachePort,
	warmer port.ImageWarmerPort,
	logger port.LoggerPort,
	filters domain.FilterSet,
	sortKey domain.SortKey,
) *PaginationController {
	c := &PaginationController{
		fetcher: fetcher,
		cache:   cache,
		warmer:  warmer,
		logger:  logger,
		filters: filters,
		sortKey: sortKey,
	}
	c.adoptCachedLocked()
	return c
}

// ResetContext переключает контроллер на новый контекст (фильтры, сортировка).
// Накопленная выдача сбрасывается ДО того, как может быть добавлена
// следующая страница - страницы старого контекста сюда уже не попадут.
func (c *PaginationController) ResetContext(filters domain.FilterSet, sortKey domain.SortKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filters = filters
	c.sortKey = sortKey
	c.epoch++
	c.result.Reset()
	c.lastErr = nil
	c.loading = false
	// Запрос старого контекста может еще висеть в транспорте - нас это
	// не волнует, его результат отсечется по epoch
	c.fetching = false

	c.adoptCachedLocked()
}

// adoptCachedLocked подхватывает свежую запись кэша для нового ключа,
// чтобы не гонять в сеть за выдачей, которую только что видели
func (c *PaginationController) adoptCachedLocked() {
	if c.cache == nil {
		return
	}
	key := c.filters.CacheKey(c.sortKey)
	if entry, ok := c.cache.Get(key); ok && entry.IsFresh(time.Now()) {
		c.result = entry.Result
	}
}

// FetchNextPage запрашивает следующую страницу текущего контекста.
// Возвращает true, если запрос реально выполнялся (не был no-op).
// Блокируется на время сетевого вызова; мьютекс на это время отпускается,
// поэтому конкурентный вызов увидит fetching=true и выйдет сразу.
func (c *PaginationController) FetchNextPage(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.fetching || !c.result.HasNextPage() {
		c.mu.Unlock()
		return false, nil
	}

	pageIndex := c.result.NextPageIndex()
	filters, sortKey, epoch := c.filters, c.sortKey, c.epoch
	c.fetching = true
	if len(c.result.Items) == 0 {
		c.loading = true
	}
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(ctx, filters, sortKey, pageIndex)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		// Контекст сменили, пока запрос был в полете. Результат (или
		// ошибку) просто выбрасываем - новая выдача его не ждет.
		if c.logger != nil {
			c.logger.Debug("Discarding page from abandoned filter context", port.Fields{
				"page_index": pageIndex,
			})
		}
		return false, nil
	}

	c.fetching = false
	c.loading = false

	if err != nil {
		c.lastErr = err
		if c.logger != nil {
			c.logger.Error("Page fetch failed", err, port.Fields{"page_index": pageIndex})
		}
		return true, err
	}

	c.lastErr = nil
	c.result.Append(page)

	if c.cache != nil {
		key := filters.CacheKey(sortKey)
		c.cache.Set(key, domain.CacheEntry{Result: c.snapshotResultLocked(), FetchedAt: time.Now()})
	}

	if c.warmer != nil && len(page.Items) > 0 {
		// Прогрев картинок - советующий side effect, ждать его незачем
		urls := firstImageURLs(page.Items, prefetchImageCount)
		go c.warmer.WarmImages(context.WithoutCancel(ctx), urls)
	}

	return true, nil
}

// Refetch повторяет последний запрошенный (упавший) номер страницы.
// Упавшая страница ничего не добавила, так что NextPageIndex тот же.
func (c *PaginationController) Refetch(ctx context.Context) (bool, error) {
	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	return c.FetchNextPage(ctx)
}

// IsFetching - есть ли запрос в полете
func (c *PaginationController) IsFetching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

// HasNextPage - вычисляемый флаг "есть ли продолжение"
func (c *PaginationController) HasNextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.HasNextPage()
}

// Snapshot - копия состояния для ответа слою отображения
func (c *PaginationController) Snapshot() PaginationSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := PaginationSnapshot{
		Items:              append([]domain.ListingItem(nil), c.result.Items...),
		HasNextPage:        c.result.HasNextPage(),
		IsFetchingNextPage: c.fetching,
		IsLoading:          c.loading,
		IsError:            c.lastErr != nil,
	}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	return snap
}

func (c *PaginationController) snapshotResultLocked() domain.AccumulatedResult {
	return domain.AccumulatedResult{
		Items:     append([]domain.ListingItem(nil), c.result.Items...),
		LastPage:  c.result.LastPage,
		Exhausted: c.result.Exhausted,
	}
}

func firstImageURLs(items []domain.ListingItem, limit int) []string {
	urls := make([]string, 0, limit)
	for _, item := range items {
		for _, img := range item.Images {
			if len(urls) >= limit {
				return urls
			}
			if img != "" {
				urls = append(urls, img)
			}
		}
	}
	return urls
}
