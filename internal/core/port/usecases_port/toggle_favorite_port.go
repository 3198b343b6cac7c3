package usecases_port

import "context"

type ToggleFavoriteUseCase interface {
	Execute(ctx context.Context, listingID string, userID string, add bool) error
}
