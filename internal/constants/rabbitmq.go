package constants

// Очереди и ключи маршрутизации событий инвалидации
const (
	ListingEventsExchange = "listing_events_exchange"

	QueueListingInvalidation      = "listing_invalidation"
	RoutingKeyListingInvalidation = "listing.invalidation"

	RoutingKeyCacheReports = "edge.cache.reports"

	// Сателлиты retry-механизма консьюмера
	FinalDLXExchange   = "final_dlx_exchange"
	FinalDLQ           = "final_dlq"
	FinalDLQRoutingKey = "final.dlq"
)
