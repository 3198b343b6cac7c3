package session

import (
	"context"
	"sync"
	"time"

	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"

	"github.com/google/uuid"
)

const (
	// DefaultSessionTTL - сколько живет сессия без обращений
	DefaultSessionTTL = 30 * time.Minute
	janitorInterval   = time.Minute
)

// Registry хранит живые сессии просмотра и убирает брошенные по TTL
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	fetcher  port.ListingFetcherPort
	cache    port.ResultCachePort
	warmer   port.ImageWarmerPort
	logger   port.LoggerPort
	ttl      time.Duration
	debounce time.Duration
}

func NewRegistry(
	fetcher port.ListingFetcherPort,
	cache port.ResultCachePort,
	warmer port.ImageWarmerPort,
	logger port.LoggerPort,
	ttl time.Duration,
	debounce time.Duration,
) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		fetcher:  fetcher,
		cache:    cache,
		warmer:   warmer,
		logger:   logger,
		ttl:      ttl,
		debounce: debounce,
	}
}

// Create открывает новую сессию под начальные фильтры (обычно из query
// параметров URL при загрузке страницы)
func (r *Registry) Create(initial domain.FilterSet, sortKey domain.SortKey) *Session {
	s := newSession(r.fetcher, r.cache, r.warmer, r.logger, initial, sortKey, r.debounce)

	r.mu.Lock()
	r.sessions[s.ID] = s
	total := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("Search session created", port.Fields{
		"session_id":     s.ID.String(),
		"total_sessions": total,
	})
	return s
}

func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete закрывает и выбрасывает сессию
func (r *Registry) Delete(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// Run крутит уборку брошенных сессий до отмены контекста
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.logger.Debug("Swept idle search sessions", port.Fields{"count": len(expired)})
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
