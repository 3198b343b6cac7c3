package listingapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/port"
)

// FavoritesClient зовет upstream-эндпоинт избранного обычным http.Client
// (тут не нужны ни лимиты, ни ротация User-Agent - это наш же backend)
type FavoritesClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewFavoritesClient(baseURL string) *FavoritesClient {
	return &FavoritesClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

func (c *FavoritesClient) doRequest(ctx context.Context, method, url string) error {
	logger := contextkeys.LoggerFromContext(ctx)
	clientLogger := logger.WithFields(port.Fields{
		"component": "FavoritesClient",
		"method":    method,
		"url":       url,
	})

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	req.Header.Set("Accept", "application/json")

	clientLogger.Debug("Sending favorite toggle to upstream", nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		clientLogger.Error("Failed to perform request to upstream", err, nil)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("upstream returned non-success status code %d: %s", resp.StatusCode, string(bodyBytes))
		clientLogger.Error("Received error response from upstream", err, port.Fields{"status_code": resp.StatusCode})
		return err
	}

	return nil
}

func (c *FavoritesClient) Add(ctx context.Context, listingID string, userID string) error {
	url := fmt.Sprintf("%s/api/properties/%s/favorite?userId=%s", c.baseURL, listingID, userID)
	return c.doRequest(ctx, http.MethodPost, url)
}

func (c *FavoritesClient) Remove(ctx context.Context, listingID string, userID string) error {
	url := fmt.Sprintf("%s/api/properties/%s/favorite?userId=%s", c.baseURL, listingID, userID)
	return c.doRequest(ctx, http.MethodDelete, url)
}
