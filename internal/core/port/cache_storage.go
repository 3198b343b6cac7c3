package port

import (
	"context"
	"net/http"
	"time"
)

// CachedResponse - сохраненный HTTP-ответ (аналог Response в Cache Storage браузера)
type CachedResponse struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// CacheStorePort - одно именованное хранилище ответов (static-vN / dynamic-vN / image-vN)
type CacheStorePort interface {
	Name() string

	// Match ищет сохраненный ответ по ключу запроса (метод+URL)
	Match(ctx context.Context, key string) (*CachedResponse, bool, error)

	Put(ctx context.Context, key string, resp *CachedResponse) error

	Delete(ctx context.Context, key string) (bool, error)

	// Keys возвращает все ключи хранилища (нужно для атомарного отката install)
	Keys(ctx context.Context) ([]string, error)
}

// CacheStoragePort - реестр именованных хранилищ, зеркало браузерного caches API.
// Open создает хранилище при первом обращении; Names/Drop нужны сборке мусора
// старых поколений на этапе activate.
type CacheStoragePort interface {
	Open(ctx context.Context, name string) (CacheStorePort, error)

	Names(ctx context.Context) ([]string, error)

	Drop(ctx context.Context, name string) (bool, error)
}
