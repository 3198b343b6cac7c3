package usecase

import (
	"context"
	"fmt"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
)

// InvalidateListingsUseCase обрабатывает события инвалидации из шины:
// объект обновился/ушел из продажи - выдача с ним могла устареть.
type InvalidateListingsUseCase struct {
	cache port.ResultCachePort
}

func NewInvalidateListingsUseCase(cache port.ResultCachePort) *InvalidateListingsUseCase {
	return &InvalidateListingsUseCase{cache: cache}
}

func (uc *InvalidateListingsUseCase) Execute(ctx context.Context, event domain.InvalidationEvent) error {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case": "InvalidateListings",
		"reason":   event.Reason,
	})

	switch event.Reason {
	case domain.InvalidationListingUpdated, domain.InvalidationListingRemoved:
		// Объект мог быть в любой выдаче - инвалидируем по префиксу
		removed := uc.cache.Invalidate(domain.ListingsKeyPrefix)
		if event.ListingID != "" {
			uc.cache.Delete(domain.CacheKeyListing(event.ListingID))
		}
		ucLogger.Info("Listing caches invalidated", port.Fields{"entries_removed": removed})

	case domain.InvalidationFavoriteToggled:
		if event.UserID != "" {
			uc.cache.Delete(domain.CacheKeyFavoritesList(event.UserID))
		}
		if event.ListingID != "" {
			uc.cache.Delete(domain.CacheKeyListing(event.ListingID))
		}
		ucLogger.Info("Favorite caches invalidated", nil)

	default:
		return fmt.Errorf("unknown invalidation reason %q", event.Reason)
	}

	return nil
}
