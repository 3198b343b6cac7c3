package port

import "context"

// FavoritesClientPort - клиент upstream-эндпоинта избранного.
// Для нас это внешний коллаборатор: сама логика избранного живет не здесь,
// нам важен только факт успеха (он триггерит инвалидацию кэша выдачи).
type FavoritesClientPort interface {
	Add(ctx context.Context, listingID string, userID string) error

	Remove(ctx context.Context, listingID string, userID string) error
}
