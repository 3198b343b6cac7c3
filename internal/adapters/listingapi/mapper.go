package listingapi

import (
	"fmt"
	"time"

	"listing-edge-service/internal/core/domain"

	"github.com/google/uuid"
)

// listingItemDTO - карточка объекта в том виде, как ее отдает upstream
type listingItemDTO struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	PropertyType string   `json:"propertyType"`
	DealType     string   `json:"dealType"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	SizeM2       float64  `json:"sizeM2"`
	Address      string   `json:"address"`
	Latitude     float64  `json:"lat"`
	Longitude    float64  `json:"lng"`
	Images       []string `json:"images"`
	HasGarage    bool     `json:"hasGarage"`
	HasGarden    bool     `json:"hasGarden"`
	HasPool      bool     `json:"hasPool"`
	HasBalcony   bool     `json:"hasBalcony"`
	PetsAllowed  bool     `json:"petsAllowed"`
	ListedAt     string   `json:"listedAt"`
}

func toDomainListingItem(dto listingItemDTO) (domain.ListingItem, error) {
	id, err := uuid.Parse(dto.ID)
	if err != nil {
		return domain.ListingItem{}, fmt.Errorf("invalid listing id %q: %w", dto.ID, err)
	}

	var listedAt time.Time
	if dto.ListedAt != "" {
		listedAt, err = time.Parse(time.RFC3339, dto.ListedAt)
		if err != nil {
			return domain.ListingItem{}, fmt.Errorf("invalid listedAt %q: %w", dto.ListedAt, err)
		}
	}

	return domain.ListingItem{
		ID:           id,
		Title:        dto.Title,
		PropertyType: dto.PropertyType,
		DealType:     dto.DealType,
		Price:        dto.Price,
		Currency:     dto.Currency,
		Bedrooms:     dto.Bedrooms,
		Bathrooms:    dto.Bathrooms,
		SizeM2:       dto.SizeM2,
		Address:      dto.Address,
		Latitude:     dto.Latitude,
		Longitude:    dto.Longitude,
		Images:       dto.Images,
		Features: domain.ListingFeatures{
			HasGarage:   dto.HasGarage,
			HasGarden:   dto.HasGarden,
			HasPool:     dto.HasPool,
			HasBalcony:  dto.HasBalcony,
			PetsAllowed: dto.PetsAllowed,
		},
		ListedAt: listedAt,
	}, nil
}
