package listingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"

	"github.com/gocolly/colly/v2"
)

func (a *ListingAPIAdapter) buildPageURL(filters domain.FilterSet, sortKey domain.SortKey, pageIndex int) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", err
	}
	u.Path = "/api/properties"

	q := filters.QueryValues()
	q.Set("sortBy", string(sortKey))
	q.Set("limit", strconv.Itoa(domain.PageSize))
	q.Set("offset", strconv.Itoa(pageIndex*domain.PageSize))

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPage запрашивает одну страницу выдачи у upstream.
// Клонируем коллектор под конкретный запрос: клон наследует лимиты,
// но имеет свои собственные обработчики.
func (a *ListingAPIAdapter) FetchPage(ctx context.Context, filters domain.FilterSet, sortKey domain.SortKey, pageIndex int) (domain.Page, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	fetchLogger := logger.WithFields(port.Fields{"component": "ListingAPIAdapter(FetchPage)"})

	targetURL, err := a.buildPageURL(filters, sortKey, pageIndex)
	if err != nil {
		return domain.Page{}, fmt.Errorf("listing api adapter: failed to build page URL: %w", err)
	}

	collector := a.collector.Clone()

	var items []domain.ListingItem
	var responseErr error // ошибка из колбэка

	collector.OnRequest(func(r *colly.Request) {
		fetchLogger.Debug("Requesting listings page", port.Fields{
			"url":        r.URL.String(),
			"page_index": pageIndex,
		})
	})

	collector.OnResponse(func(r *colly.Response) {
		var dtos []listingItemDTO
		if jsonErr := json.Unmarshal(r.Body, &dtos); jsonErr != nil {
			responseErr = fmt.Errorf("listing api adapter: failed to parse response from %s: %w", r.Request.URL.String(), jsonErr)
			return
		}

		items = make([]domain.ListingItem, 0, len(dtos))
		for _, dto := range dtos {
			item, mapErr := toDomainListingItem(dto)
			if mapErr != nil {
				// Кривую карточку пропускаем, остальная страница не виновата
				fetchLogger.Warn("Skipping malformed listing item", port.Fields{
					"listing_id": dto.ID,
					"error":      mapErr.Error(),
				})
				continue
			}
			items = append(items, item)
		}
	})

	collector.OnError(func(r *colly.Response, cbErr error) {
		fetchLogger.Error("Listings page request failed", cbErr, port.Fields{
			"url":    r.Request.URL.String(),
			"status": r.StatusCode,
		})
		responseErr = fmt.Errorf("listing api adapter: request to %s failed with status %d: %w", r.Request.URL, r.StatusCode, cbErr)
	})

	if visitErr := collector.Visit(targetURL); visitErr != nil {
		fetchLogger.Error("Failed to initiate listings page visit", visitErr, port.Fields{"url": targetURL})
		return domain.Page{}, fmt.Errorf("listing api adapter: failed to visit %s: %w", targetURL, visitErr)
	}
	collector.Wait()

	if responseErr != nil {
		return domain.Page{}, responseErr
	}

	fetchLogger.Info("Listings page fetched", port.Fields{
		"page_index": pageIndex,
		"items":      len(items),
	})

	return domain.Page{Index: pageIndex, Items: items}, nil
}
