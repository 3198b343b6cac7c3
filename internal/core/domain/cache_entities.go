package domain

import "time"

// Окна жизни записи в кэше выдачи.
// FreshnessWindow - пока запись "свежая", отдаем без похода в сеть.
// HardExpiry - после этого запись считается мертвой независимо от свежести.
const (
	CacheFreshnessWindow = 5 * time.Minute
	CacheHardExpiry      = 10 * time.Minute
)

// CacheEntry - запись кэша выдачи, ключ = FilterSet.CacheKey(sort).
type CacheEntry struct {
	Result    AccumulatedResult
	FetchedAt time.Time
}

// IsFresh - в пределах окна свежести, сеть не нужна
func (e CacheEntry) IsFresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < CacheFreshnessWindow
}

// IsExpired - жесткое устаревание, запись подлежит удалению
func (e CacheEntry) IsExpired(now time.Time) bool {
	return now.Sub(e.FetchedAt) >= CacheHardExpiry
}

// Ключи кэша для связанных с избранным выборок - единое место,
// чтобы не расползались по коду.
func CacheKeyFavoritesList(userID string) string { return "favorites:" + userID }
func CacheKeyListing(listingID string) string    { return "listing:" + listingID }
