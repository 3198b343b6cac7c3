package usecase

import (
	"context"

	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
)

// WarmImagesUseCase прогревает кэш картинок под карточки выдачи
type WarmImagesUseCase struct {
	warmer port.ImageWarmerPort
	// сколько картинок берем с одного батча
	limit int
}

func NewWarmImagesUseCase(warmer port.ImageWarmerPort, limit int) *WarmImagesUseCase {
	if limit <= 0 {
		limit = 4
	}
	return &WarmImagesUseCase{warmer: warmer, limit: limit}
}

func (uc *WarmImagesUseCase) Execute(ctx context.Context, items []domain.ListingItem) {
	urls := firstImages(items, uc.limit)
	if len(urls) == 0 {
		return
	}
	uc.warmer.WarmImages(ctx, urls)
}
