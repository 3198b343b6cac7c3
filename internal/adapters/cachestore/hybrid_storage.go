package cachestore

import (
	"context"

	"listing-edge-service/internal/core/port"
)

// HybridStorage раскладывает хранилища по бэкендам: dynamic-кэш живет
// в персистентном бэкенде (postgres) и переживает рестарты, остальные
// поколения держим в памяти - их дешево прогреть заново на install.
type HybridStorage struct {
	memory     port.CacheStoragePort
	persistent port.CacheStoragePort

	// имена хранилищ, которые уходят в персистентный бэкенд
	persistentNames map[string]struct{}
}

func NewHybridStorage(memory, persistent port.CacheStoragePort, persistentNames []string) *HybridStorage {
	names := make(map[string]struct{}, len(persistentNames))
	for _, n := range persistentNames {
		names[n] = struct{}{}
	}
	return &HybridStorage{
		memory:          memory,
		persistent:      persistent,
		persistentNames: names,
	}
}

func (h *HybridStorage) backendFor(name string) port.CacheStoragePort {
	if _, ok := h.persistentNames[name]; ok {
		return h.persistent
	}
	return h.memory
}

func (h *HybridStorage) Open(ctx context.Context, name string) (port.CacheStorePort, error) {
	return h.backendFor(name).Open(ctx, name)
}

// Names объединяет имена обоих бэкендов. Дубликатов не бывает:
// каждое имя закреплено ровно за одним бэкендом.
func (h *HybridStorage) Names(ctx context.Context) ([]string, error) {
	memNames, err := h.memory.Names(ctx)
	if err != nil {
		return nil, err
	}
	persNames, err := h.persistent.Names(ctx)
	if err != nil {
		return nil, err
	}
	return append(memNames, persNames...), nil
}

func (h *HybridStorage) Drop(ctx context.Context, name string) (bool, error) {
	return h.backendFor(name).Drop(ctx, name)
}
