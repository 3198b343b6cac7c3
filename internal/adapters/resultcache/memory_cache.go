package resultcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"

	"golang.org/x/sync/singleflight"
)

// MemoryCacheAdapter - процессный кэш выдачи.
//
// Чтение через GetOrLoad работает в режиме stale-while-revalidate:
// свежая запись отдается без сети; устаревшая (но не протухшая) отдается
// сразу, а обновление уезжает в фон; промах и протухшая запись ждут
// загрузки. Одновременные одинаковые загрузки схлопываются через
// singleflight - на один ключ не бывает двух запросов в полете.
type MemoryCacheAdapter struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry

	group  singleflight.Group
	logger port.LoggerPort

	janitorStop chan struct{}
	stopOnce    sync.Once
}

func NewMemoryCacheAdapter(logger port.LoggerPort) *MemoryCacheAdapter {
	c := &MemoryCacheAdapter{
		entries:     make(map[string]domain.CacheEntry),
		logger:      logger,
		janitorStop: make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *MemoryCacheAdapter) Get(key string) (domain.CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.IsExpired(time.Now()) {
		return domain.CacheEntry{}, false
	}
	return entry, true
}

func (c *MemoryCacheAdapter) Set(key string, entry domain.CacheEntry) {
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

func (c *MemoryCacheAdapter) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *MemoryCacheAdapter) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCacheAdapter) GetOrLoad(ctx context.Context, key string, load port.LoadFunc) (domain.AccumulatedResult, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !entry.IsExpired(now) {
		if entry.IsFresh(now) {
			return entry.Result, nil
		}

		// Запись устарела, но еще годится: отдаем как есть, обновление в фон.
		// singleflight гарантирует, что фоновых обновлений не накопится.
		go func() {
			bgCtx := context.WithoutCancel(ctx)
			_, err, _ := c.group.Do(key, func() (interface{}, error) {
				return c.refresh(bgCtx, key, load)
			})
			if err != nil && c.logger != nil {
				// Фоновое обновление упало - не страшно, запись еще жива
				c.logger.Warn("Background cache refresh failed", port.Fields{
					"cache_key": key,
					"error":     err.Error(),
				})
			}
		}()

		return entry.Result, nil
	}

	// Промах (или запись протухла насовсем) - ждем загрузку
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.refresh(ctx, key, load)
	})
	if err != nil {
		return domain.AccumulatedResult{}, err
	}
	return v.(domain.AccumulatedResult), nil
}

func (c *MemoryCacheAdapter) refresh(ctx context.Context, key string, load port.LoadFunc) (domain.AccumulatedResult, error) {
	result, err := load(ctx)
	if err != nil {
		return domain.AccumulatedResult{}, err
	}
	c.Set(key, domain.CacheEntry{Result: result, FetchedAt: time.Now()})
	return result, nil
}

// Close останавливает фоновую уборку
func (c *MemoryCacheAdapter) Close() {
	c.stopOnce.Do(func() { close(c.janitorStop) })
}

// janitor пассивно выметает протухшие записи, чтобы кэш не рос бесконечно
func (c *MemoryCacheAdapter) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.janitorStop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if entry.IsExpired(now) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
