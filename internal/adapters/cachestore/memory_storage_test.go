package cachestore

import (
	"context"
	"sort"
	"testing"
	"time"

	"listing-edge-service/internal/core/port"
)

func cachedResp(body string) *port.CachedResponse {
	return &port.CachedResponse{Status: 200, Body: []byte(body), StoredAt: time.Now()}
}

func TestMemoryStorage_OpenCreatesOnFirstUse(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	store, err := storage.Open(ctx, "static-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Name() != "static-v1" {
		t.Fatalf("store name = %q", store.Name())
	}

	if err := store.Put(ctx, "GET /", cachedResp("shell")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Повторный Open возвращает то же хранилище с содержимым
	again, _ := storage.Open(ctx, "static-v1")
	if resp, ok, _ := again.Match(ctx, "GET /"); !ok || string(resp.Body) != "shell" {
		t.Fatalf("reopened store lost its entries: ok=%v", ok)
	}
}

func TestMemoryStorage_DropRemovesStore(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	storage.Open(ctx, "static-v0")

	if ok, _ := storage.Drop(ctx, "static-v0"); !ok {
		t.Fatalf("dropping an existing store must report true")
	}
	if ok, _ := storage.Drop(ctx, "static-v0"); ok {
		t.Fatalf("dropping a missing store must report false")
	}

	names, _ := storage.Names(ctx)
	if len(names) != 0 {
		t.Fatalf("expected no stores, got %v", names)
	}
}

func TestMemoryStore_DeleteAndKeys(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store, _ := storage.Open(ctx, "dynamic-v1")

	store.Put(ctx, "GET /api/properties?page=1", cachedResp("a"))
	store.Put(ctx, "GET /api/properties?page=2", cachedResp("b"))

	if ok, _ := store.Delete(ctx, "GET /api/properties?page=1"); !ok {
		t.Fatalf("delete of an existing key must report true")
	}
	keys, _ := store.Keys(ctx)
	if len(keys) != 1 || keys[0] != "GET /api/properties?page=2" {
		t.Fatalf("unexpected keys after delete: %v", keys)
	}
}

func TestHybridStorage_RoutesByStoreName(t *testing.T) {
	ctx := context.Background()
	memory := NewMemoryStorage()
	persistent := NewMemoryStorage()
	hybrid := NewHybridStorage(memory, persistent, []string{"dynamic-v1"})

	hybrid.Open(ctx, "static-v1")
	hybrid.Open(ctx, "dynamic-v1")

	memNames, _ := memory.Names(ctx)
	if len(memNames) != 1 || memNames[0] != "static-v1" {
		t.Fatalf("memory backend names = %v", memNames)
	}
	persNames, _ := persistent.Names(ctx)
	if len(persNames) != 1 || persNames[0] != "dynamic-v1" {
		t.Fatalf("persistent backend names = %v", persNames)
	}

	// Объединенный список видит оба бэкенда
	all, _ := hybrid.Names(ctx)
	sort.Strings(all)
	if len(all) != 2 || all[0] != "dynamic-v1" || all[1] != "static-v1" {
		t.Fatalf("hybrid names = %v", all)
	}

	// Drop уходит в тот же бэкенд, что и Open
	if ok, _ := hybrid.Drop(ctx, "dynamic-v1"); !ok {
		t.Fatalf("drop of a persistent store must succeed")
	}
	if names, _ := persistent.Names(ctx); len(names) != 0 {
		t.Fatalf("persistent backend still holds %v", names)
	}
}
