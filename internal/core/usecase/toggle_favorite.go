package usecase

import (
	"context"
	"fmt"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
)

// ToggleFavoriteUseCase проксирует переключение избранного на upstream.
// Сама логика избранного живет там; наша забота - после успеха снести
// из кэша выдачу избранного и карточку затронутого объекта.
type ToggleFavoriteUseCase struct {
	client port.FavoritesClientPort
	cache  port.ResultCachePort
}

func NewToggleFavoriteUseCase(client port.FavoritesClientPort, cache port.ResultCachePort) *ToggleFavoriteUseCase {
	return &ToggleFavoriteUseCase{client: client, cache: cache}
}

func (uc *ToggleFavoriteUseCase) Execute(ctx context.Context, listingID string, userID string, add bool) error {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":   "ToggleFavorite",
		"listing_id": listingID,
		"add":        add,
	})

	var err error
	if add {
		err = uc.client.Add(ctx, listingID, userID)
	} else {
		err = uc.client.Remove(ctx, listingID, userID)
	}
	if err != nil {
		ucLogger.Error("Upstream favorite toggle failed", err, nil)
		return fmt.Errorf("toggle favorite: %w", err)
	}

	// Мутация прошла - связанные записи кэша больше не актуальны
	uc.cache.Delete(domain.CacheKeyFavoritesList(userID))
	uc.cache.Delete(domain.CacheKeyListing(listingID))

	ucLogger.Info("Favorite toggled, related cache entries invalidated", nil)
	return nil
}
