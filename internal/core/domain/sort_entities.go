package domain

import "fmt"

// SortKey - активный критерий сортировки выдачи. Всегда ровно один.
type SortKey string

const (
	SortNewest       SortKey = "newest"
	SortOldest       SortKey = "oldest"
	SortPriceLow     SortKey = "price-low"
	SortPriceHigh    SortKey = "price-high"
	SortSizeLow      SortKey = "size-low"
	SortSizeHigh     SortKey = "size-high"
	SortBedroomsLow  SortKey = "bedrooms-low"
	SortBedroomsHigh SortKey = "bedrooms-high"
)

var allSortKeys = map[SortKey]struct{}{
	SortNewest:       {},
	SortOldest:       {},
	SortPriceLow:     {},
	SortPriceHigh:    {},
	SortSizeLow:      {},
	SortSizeHigh:     {},
	SortBedroomsLow:  {},
	SortBedroomsHigh: {},
}

// ParseSortKey валидирует строку из query-параметра.
// Пустая строка - сортировка по умолчанию (newest).
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortNewest, nil
	}
	key := SortKey(s)
	if _, ok := allSortKeys[key]; !ok {
		return "", fmt.Errorf("unknown sort key %q", s)
	}
	return key, nil
}
