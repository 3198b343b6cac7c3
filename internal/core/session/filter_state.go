package session

import (
	"sync"
	"time"

	"listing-edge-service/internal/core/domain"
)

// DefaultDebounceInterval - окно "тишины" перед коммитом фильтров.
// Пока пользователь печатает быстрее этого окна, запросы не уходят.
const DefaultDebounceInterval = 300 * time.Millisecond

// CommitFunc вызывается после фиксации нового набора фильтров.
// prev* - контекст до коммита (его запись в кэше подлежит инвалидации).
type CommitFunc func(prev domain.FilterSet, prevSort domain.SortKey, next domain.FilterSet, nextSort domain.SortKey)

// FilterState - менеджер состояния фильтров поиска.
// "Сырое" значение из инпута держится отдельно от зафиксированного
// и перетекает в него только после окна тишины. Если за это время
// пришло новое значение - окно перезапускается, а старое pending
// просто выбрасывается (не ставится в очередь).
type FilterState struct {
	mu sync.Mutex

	committed domain.FilterSet
	sortKey   domain.SortKey

	pending    domain.FilterSet
	hasPending bool
	timer      *time.Timer

	debounce time.Duration
	onCommit CommitFunc
}

func NewFilterState(initial domain.FilterSet, sortKey domain.SortKey, debounce time.Duration, onCommit CommitFunc) *FilterState {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	return &FilterState{
		committed: initial,
		sortKey:   sortKey,
		debounce:  debounce,
		onCommit:  onCommit,
	}
}

// Current возвращает зафиксированный контекст (pending сюда не входит)
func (s *FilterState) Current() (domain.FilterSet, domain.SortKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed, s.sortKey
}

// Update принимает очередное "сырое" значение фильтров.
// Каждый вызов перезапускает окно тишины и затирает прошлое pending.
func (s *FilterState) Update(filters domain.FilterSet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = filters
	s.hasPending = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.commitPending)
}

// SetSort меняет сортировку сразу, без дебаунса: это клик, а не набор текста
func (s *FilterState) SetSort(sortKey domain.SortKey) {
	s.mu.Lock()
	if sortKey == s.sortKey {
		s.mu.Unlock()
		return
	}
	prev, prevSort := s.committed, s.sortKey
	s.sortKey = sortKey
	next, nextSort := s.committed, s.sortKey
	onCommit := s.onCommit
	s.mu.Unlock()

	if onCommit != nil {
		onCommit(prev, prevSort, next, nextSort)
	}
}

// Flush немедленно фиксирует pending, не дожидаясь таймера.
// Нужен при навигации (уход со страницы не должен терять ввод) и в тестах.
func (s *FilterState) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.commitPending()
}

// Close гасит отложенный коммит
func (s *FilterState) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.hasPending = false
}

func (s *FilterState) commitPending() {
	s.mu.Lock()
	if !s.hasPending {
		s.mu.Unlock()
		return
	}
	prev, prevSort := s.committed, s.sortKey
	s.committed = s.pending
	s.hasPending = false
	next, nextSort := s.committed, s.sortKey
	onCommit := s.onCommit
	s.mu.Unlock()

	// Колбэк зовем вне мьютекса: он лезет в кэш и контроллер пагинации
	if onCommit != nil {
		onCommit(prev, prevSort, next, nextSort)
	}
}
