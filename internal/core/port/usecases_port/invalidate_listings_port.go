package usecases_port

import (
	"context"
	"listing-edge-service/internal/core/domain"
)

type InvalidateListingsUseCase interface {
	Execute(ctx context.Context, event domain.InvalidationEvent) error
}
