package usecases_port

import (
	"context"
	"listing-edge-service/internal/core/domain"
)

type WarmImagesUseCase interface {
	Execute(ctx context.Context, items []domain.ListingItem)
}
