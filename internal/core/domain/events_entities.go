package domain

import "time"

// Причины инвалидации, приходящие событиями из шины
const (
	InvalidationListingUpdated  = "listing_updated"
	InvalidationListingRemoved  = "listing_removed"
	InvalidationFavoriteToggled = "favorite_toggled"
)

// InvalidationEvent - событие, требующее выборочной инвалидации кэша выдачи
type InvalidationEvent struct {
	Reason    string
	ListingID string
	UserID    string
}

// ActivationReport - отчет offline-шлюза о смене поколения кэшей
type ActivationReport struct {
	Generations   []string  `json:"generations"`
	DroppedStores []string  `json:"dropped_stores"`
	ActivatedAt   time.Time `json:"activated_at"`
}
