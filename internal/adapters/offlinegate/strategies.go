package offlinegate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"listing-edge-service/internal/constants"
	"listing-edge-service/internal/core/port"
)

// fetchNetwork выполняет сетевой запрос за перехваченным GET
func (g *Gateway) fetchNetwork(r *http.Request) (*port.CachedResponse, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, g.targetURL(r), nil)
	if err != nil {
		return nil, fmt.Errorf("offline gate: failed to build network request: %w", err)
	}

	// Пробрасываем заголовки, влияющие на содержимое ответа
	for _, h := range []string{"Accept", "Accept-Language", "Authorization", "X-Trace-ID"} {
		if v := r.Header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("offline gate: failed to read network response: %w", err)
	}

	return &port.CachedResponse{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now(),
	}, nil
}

// putBestEffort пишет ответ в кэш; сбой только логируется.
// Гонки записей допустимы, последняя побеждает.
func (g *Gateway) putBestEffort(ctx context.Context, storeName, key string, resp *port.CachedResponse) {
	store, err := g.storage.Open(ctx, storeName)
	if err != nil {
		g.logger.Warn("Cache write skipped: failed to open store", port.Fields{
			"store": storeName,
			"error": err.Error(),
		})
		return
	}
	if err := store.Put(ctx, key, resp); err != nil {
		g.logger.Warn("Cache write failed", port.Fields{
			"store": storeName,
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (g *Gateway) matchStore(ctx context.Context, storeName, key string) (*port.CachedResponse, bool) {
	store, err := g.storage.Open(ctx, storeName)
	if err != nil {
		g.logger.Warn("Cache lookup failed to open store", port.Fields{
			"store": storeName,
			"error": err.Error(),
		})
		return nil, false
	}
	resp, ok, err := store.Match(ctx, key)
	if err != nil {
		g.logger.Warn("Cache lookup failed", port.Fields{
			"store": storeName,
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	return resp, ok
}

func writeCached(w http.ResponseWriter, resp *port.CachedResponse, cacheStatus string) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set("X-Edge-Cache", cacheStatus)
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

// writeUnavailable синтезирует 503 JSON, когда ни сеть, ни кэш не помогли
func writeUnavailable(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprintf(w, `{"error":"offline","message":%q}`, message)
}

// cacheFirst: кэш -> сеть -> (на 200) записать клон в кэш.
// fallbackStores просматриваются после основного хранилища: ассеты
// манифеста с картиночным расширением лежат в static-кэше, а запрос за
// ними падает в image-бакет - без фоллбэка install их бы не спасал.
func (g *Gateway) cacheFirst(w http.ResponseWriter, r *http.Request, storeName string, fallbackStores ...string) {
	ctx := r.Context()
	key := cacheKey(r.Method, r.URL.RequestURI())

	for _, name := range append([]string{storeName}, fallbackStores...) {
		if cached, ok := g.matchStore(ctx, name, key); ok {
			writeCached(w, cached, "HIT")
			return
		}
	}

	resp, err := g.fetchNetwork(r)
	if err != nil {
		g.logger.Warn("Cache-first network fetch failed", port.Fields{
			"key":   key,
			"error": err.Error(),
		})
		writeUnavailable(w, "resource unavailable offline")
		return
	}

	if resp.Status == http.StatusOK {
		g.putBestEffort(ctx, storeName, key, resp)
	}
	writeCached(w, resp, "MISS")
}

// networkFirst: сеть -> (на 2xx) записать клон -> при сбое сети кэш -> 503
func (g *Gateway) networkFirst(w http.ResponseWriter, r *http.Request, storeName string) {
	ctx := r.Context()
	key := cacheKey(r.Method, r.URL.RequestURI())

	resp, err := g.fetchNetwork(r)
	if err == nil {
		if resp.Status >= 200 && resp.Status < 300 {
			g.putBestEffort(ctx, storeName, key, resp)
		}
		writeCached(w, resp, "NETWORK")
		return
	}

	g.logger.Warn("Network-first fetch failed, falling back to cache", port.Fields{
		"key":   key,
		"error": err.Error(),
	})

	if cached, ok := g.matchStore(ctx, storeName, key); ok {
		writeCached(w, cached, "STALE")
		return
	}
	writeUnavailable(w, "api unavailable offline")
}

// navigate: сеть -> при сбое отдать закэшированный app shell -> 503.
// Shell позволяет SPA-роутеру дорисовать страницу офлайн.
func (g *Gateway) navigate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := g.fetchNetwork(r)
	if err == nil {
		writeCached(w, resp, "NETWORK")
		return
	}

	g.logger.Warn("Navigation fetch failed, serving app shell", port.Fields{
		"path":  r.URL.Path,
		"error": err.Error(),
	})

	shellKey := cacheKey(http.MethodGet, constants.AppShellPath)
	if shell, ok := g.matchStore(ctx, constants.StaticCacheName, shellKey); ok {
		writeCached(w, shell, "SHELL")
		return
	}
	writeUnavailable(w, "application shell is not cached")
}
