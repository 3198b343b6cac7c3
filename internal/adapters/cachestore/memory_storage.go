package cachestore

import (
	"context"
	"sync"

	"listing-edge-service/internal/core/port"
)

// MemoryStorage - реестр именованных хранилищ ответов в памяти.
// Зеркалит браузерный caches API: Open создает при первом обращении,
// Names/Drop нужны сборке мусора поколений.
type MemoryStorage struct {
	mu     sync.RWMutex
	stores map[string]*MemoryStore
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{stores: make(map[string]*MemoryStore)}
}

func (s *MemoryStorage) Open(ctx context.Context, name string) (port.CacheStorePort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store, ok := s.stores[name]
	if !ok {
		store = &MemoryStore{name: name, entries: make(map[string]*port.CachedResponse)}
		s.stores[name] = store
	}
	return store, nil
}

func (s *MemoryStorage) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	return names, nil
}

func (s *MemoryStorage) Drop(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.stores[name]
	delete(s.stores, name)
	return ok, nil
}

// MemoryStore - одно именованное хранилище.
// Гонки put'ов допустимы, побеждает последняя запись.
type MemoryStore struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*port.CachedResponse
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) Match(ctx context.Context, key string) (*port.CachedResponse, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return resp, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, resp *port.CachedResponse) error {
	s.mu.Lock()
	s.entries[key] = resp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys, nil
}
