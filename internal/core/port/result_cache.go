package port

import (
	"context"
	"listing-edge-service/internal/core/domain"
)

// LoadFunc загружает актуальную выдачу при промахе или устаревании кэша
type LoadFunc func(ctx context.Context) (domain.AccumulatedResult, error)

// ResultCachePort - кэш выдачи, общий на весь процесс.
// Ключ = стабильная сериализация (FilterSet, SortKey).
type ResultCachePort interface {
	Get(key string) (domain.CacheEntry, bool)

	Set(key string, entry domain.CacheEntry)

	Delete(key string)

	// Invalidate удаляет все записи с данным префиксом ключа.
	// Возвращает количество удаленных.
	Invalidate(prefix string) int

	// GetOrLoad - чтение в режиме stale-while-revalidate:
	// свежая запись отдается как есть; устаревшая (но не протухшая) отдается
	// сразу, а обновление уходит в фон; промах ждет загрузки.
	// Конкурентные одинаковые загрузки дедуплицируются - не больше одного
	// запроса в полете на ключ.
	GetOrLoad(ctx context.Context, key string, load LoadFunc) (domain.AccumulatedResult, error)
}
