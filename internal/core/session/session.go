package session

import (
	"context"
	"sync"
	"time"

	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"

	"github.com/google/uuid"
)

// SessionSnapshot - то, что отдаем слою отображения по запросу состояния
type SessionSnapshot struct {
	ID         uuid.UUID
	Filters    domain.FilterSet
	SortKey    domain.SortKey
	Pagination PaginationSnapshot
}

// Session - один контекст просмотра выдачи (одна вкладка/один экран поиска).
// Связывает менеджер фильтров, контроллер пагинации и триггер прокрутки.
type Session struct {
	ID uuid.UUID

	filters    *FilterState
	controller *PaginationController
	trigger    *ScrollTrigger

	cache  port.ResultCachePort
	logger port.LoggerPort

	mu         sync.Mutex
	lastAccess time.Time
	closed     bool
}

func newSession(
	fetcher port.ListingFetcherPort,
	cache port.ResultCachePort,
	warmer port.ImageWarmerPort,
	logger port.LoggerPort,
	initial domain.FilterSet,
	sortKey domain.SortKey,
	debounce time.Duration,
) *Session {
	s := &Session{
		ID:         uuid.New(),
		cache:      cache,
		logger:     logger,
		lastAccess: time.Now(),
	}

	s.controller = NewPaginationController(fetcher, cache, warmer, logger, initial, sortKey)
	s.trigger = NewScrollTrigger(s.controller, logger, DefaultVisibilityThreshold, DefaultTriggerMarginPx)

	// Коммит фильтров: сносим запись старого контекста из кэша, чтобы к ней
	// не могло приклеиться устаревшее состояние пагинации, и перезапускаем
	// контроллер со страницы 0
	s.filters = NewFilterState(initial, sortKey, debounce, func(prev domain.FilterSet, prevSort domain.SortKey, next domain.FilterSet, nextSort domain.SortKey) {
		if s.cache != nil {
			s.cache.Delete(prev.CacheKey(prevSort))
		}
		s.controller.ResetContext(next, nextSort)
	})

	return s
}

// UpdateFilters принимает сырой ввод фильтров (дебаунс внутри)
func (s *Session) UpdateFilters(filters domain.FilterSet) {
	s.touch()
	s.filters.Update(filters)
}

// SetSort меняет сортировку (коммит немедленный)
func (s *Session) SetSort(sortKey domain.SortKey) {
	s.touch()
	s.filters.SetSort(sortKey)
}

// HandleVisibility скармливает наблюдение сентинела триггеру прокрутки.
// Возвращает true, если наблюдение запустило загрузку страницы.
func (s *Session) HandleVisibility(ctx context.Context, ev SentinelEvent) bool {
	s.touch()
	return s.trigger.Observe(ctx, ev)
}

// FetchNextPage - явный запрос следующей страницы (первичная загрузка)
func (s *Session) FetchNextPage(ctx context.Context) (bool, error) {
	s.touch()
	started, err := s.controller.FetchNextPage(ctx)
	s.trigger.FetchCompleted()
	return started, err
}

// Refetch - повтор упавшего запроса по кнопке "попробовать еще раз"
func (s *Session) Refetch(ctx context.Context) (bool, error) {
	s.touch()
	started, err := s.controller.Refetch(ctx)
	s.trigger.FetchCompleted()
	return started, err
}

// Snapshot - текущее состояние сессии
func (s *Session) Snapshot() SessionSnapshot {
	s.touch()
	filters, sortKey := s.filters.Current()
	return SessionSnapshot{
		ID:         s.ID,
		Filters:    filters,
		SortKey:    sortKey,
		Pagination: s.controller.Snapshot(),
	}
}

// Close разбирает сессию: отключает триггер и гасит отложенный коммит
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.trigger.Disconnect()
	s.filters.Close()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}
