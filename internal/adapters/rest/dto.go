package rest

import (
	"time"

	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/session"
)

// FilterSetRequest - фильтры, присланные слоем отображения.
// Незаполненные поля означают "фильтр не задан".
type FilterSetRequest struct {
	Search        string   `json:"search,omitempty"`
	PropertyTypes []string `json:"propertyTypes,omitempty"`
	DealType      string   `json:"dealType,omitempty"`

	PriceMin     *float64 `json:"priceMin,omitempty"`
	PriceMax     *float64 `json:"priceMax,omitempty"`
	SizeMin      *float64 `json:"sizeMin,omitempty"`
	SizeMax      *float64 `json:"sizeMax,omitempty"`
	BedroomsMin  *int     `json:"bedroomsMin,omitempty"`
	BedroomsMax  *int     `json:"bedroomsMax,omitempty"`
	BathroomsMin *int     `json:"bathroomsMin,omitempty"`
	YearBuiltMin *int     `json:"yearBuiltMin,omitempty"`
	YearBuiltMax *int     `json:"yearBuiltMax,omitempty"`

	HasGarage   bool `json:"hasGarage,omitempty"`
	HasGarden   bool `json:"hasGarden,omitempty"`
	HasPool     bool `json:"hasPool,omitempty"`
	HasBalcony  bool `json:"hasBalcony,omitempty"`
	PetsAllowed bool `json:"petsAllowed,omitempty"`

	Geo *GeoFilterRequest `json:"geo,omitempty"`
}

type GeoFilterRequest struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	RadiusKm  float64 `json:"radiusKm"`
}

func (r FilterSetRequest) toDomain() domain.FilterSet {
	f := domain.FilterSet{
		Search:        r.Search,
		PropertyTypes: r.PropertyTypes,
		DealType:      r.DealType,
		PriceMin:      r.PriceMin,
		PriceMax:      r.PriceMax,
		SizeMin:       r.SizeMin,
		SizeMax:       r.SizeMax,
		BedroomsMin:   r.BedroomsMin,
		BedroomsMax:   r.BedroomsMax,
		BathroomsMin:  r.BathroomsMin,
		YearBuiltMin:  r.YearBuiltMin,
		YearBuiltMax:  r.YearBuiltMax,
		HasGarage:     r.HasGarage,
		HasGarden:     r.HasGarden,
		HasPool:       r.HasPool,
		HasBalcony:    r.HasBalcony,
		PetsAllowed:   r.PetsAllowed,
	}
	if r.Geo != nil {
		f.Location = &domain.GeoFilter{
			Latitude:  r.Geo.Latitude,
			Longitude: r.Geo.Longitude,
			RadiusKm:  r.Geo.RadiusKm,
		}
	}
	return f
}

// CreateSessionRequest - POST /sessions
type CreateSessionRequest struct {
	Filters FilterSetRequest `json:"filters"`
	SortKey string           `json:"sortKey,omitempty"`
}

// UpdateFiltersRequest - PATCH /sessions/{id}/filters
type UpdateFiltersRequest struct {
	Filters FilterSetRequest `json:"filters"`
}

// UpdateSortRequest - PATCH /sessions/{id}/sort
type UpdateSortRequest struct {
	SortKey string `json:"sortKey"`
}

// SentinelEventRequest - POST /sessions/{id}/sentinel
type SentinelEventRequest struct {
	Visible    bool    `json:"visible"`
	Ratio      float64 `json:"ratio"`
	DistancePx int     `json:"distancePx"`
}

// ListingCardResponse - карточка объекта в выдаче
type ListingCardResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	PropertyType string    `json:"property_type"`
	DealType     string    `json:"deal_type"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    int       `json:"bathrooms"`
	SizeM2       float64   `json:"size_m2"`
	Address      string    `json:"address"`
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lng"`
	Images       []string  `json:"images"`
	HasGarage    bool      `json:"has_garage"`
	HasGarden    bool      `json:"has_garden"`
	HasPool      bool      `json:"has_pool"`
	HasBalcony   bool      `json:"has_balcony"`
	PetsAllowed  bool      `json:"pets_allowed"`
	ListedAt     time.Time `json:"listed_at"`
}

// SessionStateResponse - снимок состояния сессии для слоя отображения
type SessionStateResponse struct {
	SessionID          string                `json:"session_id"`
	SortKey            string                `json:"sort_key"`
	Items              []ListingCardResponse `json:"items"`
	HasNextPage        bool                  `json:"has_next_page"`
	IsFetchingNextPage bool                  `json:"is_fetching_next_page"`
	IsLoading          bool                  `json:"is_loading"`
	IsError            bool                  `json:"is_error"`
	Error              string                `json:"error,omitempty"`
}

// SentinelResponse сообщает, запустило ли наблюдение подгрузку
type SentinelResponse struct {
	Triggered bool                 `json:"triggered"`
	State     SessionStateResponse `json:"state"`
}

// ListingsResponse - GET /listings без сессии
type ListingsResponse struct {
	Items       []ListingCardResponse `json:"items"`
	HasNextPage bool                  `json:"has_next_page"`
}

func toListingCard(it domain.ListingItem) ListingCardResponse {
	return ListingCardResponse{
		ID:           it.ID.String(),
		Title:        it.Title,
		PropertyType: it.PropertyType,
		DealType:     it.DealType,
		Price:        it.Price,
		Currency:     it.Currency,
		Bedrooms:     it.Bedrooms,
		Bathrooms:    it.Bathrooms,
		SizeM2:       it.SizeM2,
		Address:      it.Address,
		Latitude:     it.Latitude,
		Longitude:    it.Longitude,
		Images:       it.Images,
		HasGarage:    it.Features.HasGarage,
		HasGarden:    it.Features.HasGarden,
		HasPool:      it.Features.HasPool,
		HasBalcony:   it.Features.HasBalcony,
		PetsAllowed:  it.Features.PetsAllowed,
		ListedAt:     it.ListedAt,
	}
}

func toSessionState(snap session.SessionSnapshot) SessionStateResponse {
	items := make([]ListingCardResponse, 0, len(snap.Pagination.Items))
	for _, it := range snap.Pagination.Items {
		items = append(items, toListingCard(it))
	}
	return SessionStateResponse{
		SessionID:          snap.ID.String(),
		SortKey:            string(snap.SortKey),
		Items:              items,
		HasNextPage:        snap.Pagination.HasNextPage,
		IsFetchingNextPage: snap.Pagination.IsFetchingNextPage,
		IsLoading:          snap.Pagination.IsLoading,
		IsError:            snap.Pagination.IsError,
		Error:              snap.Pagination.LastError,
	}
}
