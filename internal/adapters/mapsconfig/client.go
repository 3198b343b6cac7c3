package mapsconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/port"
)

// Хосты тайлов/статики Google Maps; включаются в allowlist, только если
// upstream вообще выдал ключ (иначе карт на фронте нет и кэшировать нечего)
var googleMapsHosts = []string{"maps.googleapis.com", "maps.gstatic.com"}

type mapsConfigDTO struct {
	APIKey     string   `json:"apiKey"`
	ImageHosts []string `json:"imageHosts"`
}

// Client лениво тянет конфигурацию карт с upstream (/api/config/maps).
// Инициализация строго одноразовая (sync.Once вместо глобального флага
// на уровне пакета): повторные вызовы отдают закэшированный результат,
// включая закэшированную ошибку.
type Client struct {
	baseURL    string
	httpClient *http.Client

	once    sync.Once
	cfg     mapsConfigDTO
	initErr error
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

func (c *Client) load(ctx context.Context) {
	logger := contextkeys.LoggerFromContext(ctx)
	clientLogger := logger.WithFields(port.Fields{"component": "MapsConfigClient"})

	url := c.baseURL + "/api/config/maps"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.initErr = fmt.Errorf("maps config: failed to create request: %w", err)
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.initErr = fmt.Errorf("maps config: request failed: %w", err)
		clientLogger.Error("Failed to fetch maps configuration", err, nil)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.initErr = fmt.Errorf("maps config: unexpected status %d", resp.StatusCode)
		clientLogger.Error("Maps configuration endpoint returned error", c.initErr, port.Fields{"status_code": resp.StatusCode})
		return
	}

	if err := json.NewDecoder(resp.Body).Decode(&c.cfg); err != nil {
		c.initErr = fmt.Errorf("maps config: failed to decode response: %w", err)
		return
	}

	clientLogger.Info("Maps configuration loaded", port.Fields{
		"extra_image_hosts": len(c.cfg.ImageHosts),
		"has_api_key":       c.cfg.APIKey != "",
	})
}

// ImageHosts возвращает хосты картинок карт для классификации в шлюзе
func (c *Client) ImageHosts(ctx context.Context) ([]string, error) {
	c.once.Do(func() { c.load(ctx) })
	if c.initErr != nil {
		return nil, c.initErr
	}

	hosts := append([]string(nil), c.cfg.ImageHosts...)
	if c.cfg.APIKey != "" {
		hosts = append(hosts, googleMapsHosts...)
	}
	return hosts, nil
}
