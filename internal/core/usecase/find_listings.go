package usecase

import (
	"context"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
	"listing-edge-service/internal/core/port/usecases_port"
)

// FindListingsUseCase - одноразовый (не сессионный) поиск: первая страница
// выдачи через кэш в режиме stale-while-revalidate.
type FindListingsUseCase struct {
	fetcher port.ListingFetcherPort
	cache   port.ResultCachePort
	warmUC  usecases_port.WarmImagesUseCase
}

func NewFindListingsUseCase(fetcher port.ListingFetcherPort, cache port.ResultCachePort, warmUC usecases_port.WarmImagesUseCase) *FindListingsUseCase {
	return &FindListingsUseCase{fetcher: fetcher, cache: cache, warmUC: warmUC}
}

func (uc *FindListingsUseCase) Execute(ctx context.Context, filters domain.FilterSet, sortKey domain.SortKey) (domain.AccumulatedResult, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "FindListings",
		"sort":     string(sortKey),
	})

	key := filters.CacheKey(sortKey)

	result, err := uc.cache.GetOrLoad(ctx, key, func(loadCtx context.Context) (domain.AccumulatedResult, error) {
		page, fetchErr := uc.fetcher.FetchPage(loadCtx, filters, sortKey, 0)
		if fetchErr != nil {
			return domain.AccumulatedResult{}, fetchErr
		}

		var acc domain.AccumulatedResult
		acc.Append(page)

		if uc.warmUC != nil && len(page.Items) > 0 {
			go uc.warmUC.Execute(context.WithoutCancel(loadCtx), page.Items)
		}
		return acc, nil
	})
	if err != nil {
		ucLogger.Error("Listing search failed", err, nil)
		return domain.AccumulatedResult{}, err
	}

	ucLogger.Info("Use case finished successfully", port.Fields{
		"items_returned": len(result.Items),
		"has_next_page":  result.HasNextPage(),
	})
	return result, nil
}

func firstImages(items []domain.ListingItem, limit int) []string {
	urls := make([]string, 0, limit)
	for _, item := range items {
		for _, img := range item.Images {
			if len(urls) >= limit {
				return urls
			}
			if img != "" {
				urls = append(urls, img)
			}
		}
	}
	return urls
}
