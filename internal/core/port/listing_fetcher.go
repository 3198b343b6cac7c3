package port

import (
	"context"
	"listing-edge-service/internal/core/domain"
)

// ListingFetcherPort - все операции с upstream API объявлений.
type ListingFetcherPort interface {
	// FetchPage запрашивает одну страницу выдачи под заданные фильтры
	// и сортировку. pageIndex считается с нуля.
	FetchPage(ctx context.Context, filters domain.FilterSet, sortKey domain.SortKey, pageIndex int) (domain.Page, error)
}
