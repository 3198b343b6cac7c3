package rest

import (
	"net/http"
	"net/url"
	"strconv"

	"listing-edge-service/internal/contextkeys"
	"listing-edge-service/internal/core/domain"
	"listing-edge-service/internal/core/port"
	"listing-edge-service/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
)

// ListingHandler обслуживает бессессионный поиск и избранное
type ListingHandler struct {
	findListingsUC   usecases_port.FindListingsUseCase
	toggleFavoriteUC usecases_port.ToggleFavoriteUseCase
}

func NewListingHandler(
	findListingsUC usecases_port.FindListingsUseCase,
	toggleFavoriteUC usecases_port.ToggleFavoriteUseCase,
) *ListingHandler {
	return &ListingHandler{
		findListingsUC:   findListingsUC,
		toggleFavoriteUC: toggleFavoriteUC,
	}
}

// FindListings обрабатывает GET /api/v1/listings.
// Одноразовая выборка первой страницы без сессии: фильтры из query,
// результат через общий кэш выдачи.
func (h *ListingHandler) FindListings(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())

	query := r.URL.Query()

	filters := domain.FilterSet{
		Search:        query.Get("search"),
		PropertyTypes: query["propertyType"],
		DealType:      query.Get("dealType"),

		PriceMin:     parseFloat(query, "priceMin"),
		PriceMax:     parseFloat(query, "priceMax"),
		SizeMin:      parseFloat(query, "sizeMin"),
		SizeMax:      parseFloat(query, "sizeMax"),
		BedroomsMin:  parseInt(query, "bedroomsMin"),
		BedroomsMax:  parseInt(query, "bedroomsMax"),
		BathroomsMin: parseInt(query, "bathroomsMin"),
		YearBuiltMin: parseInt(query, "yearBuiltMin"),
		YearBuiltMax: parseInt(query, "yearBuiltMax"),

		HasGarage:   parseBool(query, "hasGarage"),
		HasGarden:   parseBool(query, "hasGarden"),
		HasPool:     parseBool(query, "hasPool"),
		HasBalcony:  parseBool(query, "hasBalcony"),
		PetsAllowed: parseBool(query, "petsAllowed"),
	}

	if lat, lng, radius := parseFloat(query, "lat"), parseFloat(query, "lng"), parseFloat(query, "radiusKm"); lat != nil && lng != nil && radius != nil {
		filters.Location = &domain.GeoFilter{
			Latitude:  *lat,
			Longitude: *lng,
			RadiusKm:  *radius,
		}
	}

	sortKey, err := domain.ParseSortKey(query.Get("sortBy"))
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	handlerLogger := logger.WithFields(port.Fields{
		"handler":  "FindListings",
		"sort_key": string(sortKey),
	})
	handlerLogger.Debug("Processing request to find listings", nil)

	result, err := h.findListingsUC.Execute(r.Context(), filters, sortKey)
	if err != nil {
		handlerLogger.Error("Failed to find listings", err, nil)
		WriteJSONError(w, http.StatusBadGateway, "failed to load listings")
		return
	}

	items := make([]ListingCardResponse, 0, len(result.Items))
	for _, it := range result.Items {
		items = append(items, toListingCard(it))
	}

	RespondWithJSON(w, http.StatusOK, ListingsResponse{
		Items:       items,
		HasNextPage: result.HasNextPage(),
	})
}

// AddFavorite обрабатывает POST /api/v1/listings/{listingID}/favorite
func (h *ListingHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggleFavorite(w, r, true)
}

// RemoveFavorite обрабатывает DELETE /api/v1/listings/{listingID}/favorite
func (h *ListingHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggleFavorite(w, r, false)
}

func (h *ListingHandler) toggleFavorite(w http.ResponseWriter, r *http.Request, add bool) {
	logger := contextkeys.LoggerFromContext(r.Context())

	listingID := chi.URLParam(r, "listingID")
	if listingID == "" {
		WriteJSONError(w, http.StatusBadRequest, "listing id is required")
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		WriteJSONError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := h.toggleFavoriteUC.Execute(r.Context(), listingID, userID, add); err != nil {
		logger.Error("Failed to toggle favorite", err, port.Fields{
			"listing_id": listingID,
			"user_id":    userID,
		})
		WriteJSONError(w, http.StatusBadGateway, "failed to update favorite")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]bool{"favorite": add})
}

// --- хелперы парсинга query-параметров ---

func parseFloat(q url.Values, name string) *float64 {
	s := q.Get(name)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(q url.Values, name string) *int {
	s := q.Get(name)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func parseBool(q url.Values, name string) bool {
	v, err := strconv.ParseBool(q.Get(name))
	return err == nil && v
}
