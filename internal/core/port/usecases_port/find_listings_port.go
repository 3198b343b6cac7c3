package usecases_port

import (
	"context"
	"listing-edge-service/internal/core/domain"
)

type FindListingsUseCase interface {
	Execute(ctx context.Context, filters domain.FilterSet, sortKey domain.SortKey) (domain.AccumulatedResult, error)
}
