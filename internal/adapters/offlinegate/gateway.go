package offlinegate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"listing-edge-service/internal/constants"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
)

// Состояния жизненного цикла шлюза. Аналог жизненного цикла service
// worker'а: installing -> installed -> activating -> active.
// Переходы гонит Run, обработчики запросов их только читают.
type State int32

const (
	StateInstalling State = iota
	StateInstalled
	StateActivating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	default:
		return "active"
	}
}

// Gateway - offline-шлюз перед upstream property API.
//
// Перехватываются только GET-запросы; каждый падает ровно в один бакет
// (image/api/static/navigation) и обслуживается стратегией бакета.
// Все записи в кэш - best effort: сбой записи никогда не роняет ответ.
// Пока шлюз не активен, запросы прозрачно проксируются без кэширования.
type Gateway struct {
	storage    port.CacheStoragePort
	classifier *Classifier
	upstream   *url.URL
	httpClient *http.Client
	passProxy  *httputil.ReverseProxy
	reporter   port.GateReporterPort
	logger     port.LoggerPort

	state atomic.Int32
}

func NewGateway(
	storage port.CacheStoragePort,
	classifier *Classifier,
	upstreamURL string,
	reporter port.GateReporterPort,
	logger port.LoggerPort,
) (*Gateway, error) {
	upstream, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("offline gate: invalid upstream URL %q: %w", upstreamURL, err)
	}

	g := &Gateway{
		storage:    storage,
		classifier: classifier,
		upstream:   upstream,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		passProxy:  httputil.NewSingleHostReverseProxy(upstream),
		reporter:   reporter,
		logger:     logger.WithFields(port.Fields{"component": "OfflineGate"}),
	}
	g.state.Store(int32(StateInstalling))
	return g, nil
}

func (g *Gateway) State() State {
	return State(g.state.Load())
}

// AddImageHosts пополняет allowlist хостов картинок классификатора
// (хосты карт подтягиваются из конфигурации после старта)
func (g *Gateway) AddImageHosts(hosts []string) {
	g.classifier.AddImageHosts(hosts)
}

// Run прогоняет шлюз по жизненному циклу до active.
// Ошибка install фатальна для шлюза, но не для процесса: вызывающий
// решает, жить дальше в режиме прозрачного прокси или падать.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.Install(ctx); err != nil {
		return err
	}
	return g.Activate(ctx)
}

// Install заливает в static-кэш фиксированный манифест критичных ассетов.
// Всё или ничего: не скачался/не записался один - откатываем записанное
// в этом install и возвращаем ошибку.
func (g *Gateway) Install(ctx context.Context) error {
	g.state.Store(int32(StateInstalling))
	g.logger.Info("Install started", port.Fields{"manifest_size": len(constants.StaticAssetManifest)})

	store, err := g.storage.Open(ctx, constants.StaticCacheName)
	if err != nil {
		return fmt.Errorf("offline gate install: failed to open static store: %w", err)
	}

	var written []string
	rollback := func() {
		for _, key := range written {
			if _, delErr := store.Delete(ctx, key); delErr != nil {
				g.logger.Warn("Install rollback failed to delete key", port.Fields{
					"key":   key,
					"error": delErr.Error(),
				})
			}
		}
	}

	for _, assetPath := range constants.StaticAssetManifest {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.upstream.JoinPath(assetPath).String(), nil)
		if err != nil {
			rollback()
			return fmt.Errorf("offline gate install: failed to build request for %s: %w", assetPath, err)
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			rollback()
			return fmt.Errorf("offline gate install: failed to fetch %s: %w", assetPath, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			rollback()
			return fmt.Errorf("offline gate install: failed to read %s: %w", assetPath, readErr)
		}
		if resp.StatusCode != http.StatusOK {
			rollback()
			return fmt.Errorf("offline gate install: asset %s returned status %d", assetPath, resp.StatusCode)
		}

		key := cacheKey(http.MethodGet, assetPath)
		cached := &port.CachedResponse{
			Status:   resp.StatusCode,
			Header:   resp.Header.Clone(),
			Body:     body,
			StoredAt: time.Now(),
		}
		if err := store.Put(ctx, key, cached); err != nil {
			rollback()
			return fmt.Errorf("offline gate install: failed to cache %s: %w", assetPath, err)
		}
		written = append(written, key)
	}

	g.state.Store(int32(StateInstalled))
	g.logger.Info("Install finished", port.Fields{"assets_cached": len(written)})
	return nil
}

// Activate сносит хранилища чужих поколений и берет трафик на себя
func (g *Gateway) Activate(ctx context.Context) error {
	g.state.Store(int32(StateActivating))

	current := make(map[string]struct{}, len(constants.CurrentCacheGenerations))
	for _, name := range constants.CurrentCacheGenerations {
		current[name] = struct{}{}
	}

	names, err := g.storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("offline gate activate: failed to enumerate stores: %w", err)
	}

	var dropped []string
	for _, name := range names {
		if _, ok := current[name]; ok {
			continue
		}
		if _, err := g.storage.Drop(ctx, name); err != nil {
			// Недочищенное старое поколение не мешает работать
			g.logger.Warn("Failed to drop stale cache generation", port.Fields{
				"store": name,
				"error": err.Error(),
			})
			continue
		}
		dropped = append(dropped, name)
	}

	g.state.Store(int32(StateActive))
	g.logger.Info("Activated, taking control of requests", port.Fields{
		"dropped_generations": dropped,
	})

	if g.reporter != nil {
		report := domain.ActivationReport{
			Generations:   constants.CurrentCacheGenerations,
			DroppedStores: dropped,
			ActivatedAt:   time.Now(),
		}
		if err := g.reporter.ReportActivation(ctx, report); err != nil {
			g.logger.Warn("Failed to publish activation report", port.Fields{"error": err.Error()})
		}
	}
	return nil
}

// cacheKey - ключ запроса в хранилище: метод + путь с query.
// Query входит в ключ: /api/properties?page=1 и ?page=2 - разные ответы.
func cacheKey(method, requestURI string) string {
	return method + " " + requestURI
}

// targetURL - куда реально идти в сеть за этим запросом
func (g *Gateway) targetURL(r *http.Request) string {
	if host := externalHost(r.URL.Path); host != "" {
		rest := strings.TrimPrefix(r.URL.Path, imgProxyPrefix+host)
		u := url.URL{Scheme: "https", Host: host, Path: rest, RawQuery: r.URL.RawQuery}
		return u.String()
	}
	u := *g.upstream
	u.Path = strings.TrimSuffix(u.Path, "/") + r.URL.Path
	u.RawQuery = r.URL.RawQuery
	return u.String()
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Перехватываем только GET; мутации и прочее идут насквозь
	if r.Method != http.MethodGet || g.State() != StateActive {
		g.passProxy.ServeHTTP(w, r)
		return
	}

	bucket := g.classifier.Classify(r)

	switch bucket {
	case BucketImage:
		g.cacheFirst(w, r, constants.ImageCacheName, constants.StaticCacheName)
	case BucketAPI:
		g.networkFirst(w, r, constants.DynamicCacheName)
	case BucketStatic:
		g.cacheFirst(w, r, constants.StaticCacheName)
	default:
		g.navigate(w, r)
	}
}
