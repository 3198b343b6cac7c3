package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"
)

// GeoFilter - поиск "вокруг точки": координаты + радиус в километрах
type GeoFilter struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// FilterSet - полный набор активных ограничений поиска.
// Опциональные границы диапазонов - указатели (nil = фильтр не задан),
// как в query builder'е хранилища.
type FilterSet struct {
	// Текстовый поиск (по заголовку/описанию/адресу)
	Search string

	// Мультиселекты
	PropertyTypes []string // apartment, house, commercial, ...
	DealType      string   // sale / rent

	// Диапазоны
	PriceMin     *float64
	PriceMax     *float64
	SizeMin      *float64
	SizeMax      *float64
	BedroomsMin  *int
	BedroomsMax  *int
	BathroomsMin *int
	YearBuiltMin *int
	YearBuiltMax *int

	// Булевы флаги удобств
	HasGarage   bool
	HasGarden   bool
	HasPool     bool
	HasBalcony  bool
	PetsAllowed bool

	// Гео-поиск
	Location *GeoFilter
}

// точность геохэша для ключа кэша: ~5 метров, для наших целей с запасом.
// Главное - одинаковые координаты всегда дают одинаковую строку.
const cacheKeyGeohashPrecision = 8

// QueryValues собирает query-параметры для запроса к upstream API.
// Инвариант: пустые/незаданные значения НЕ попадают в запрос.
func (f FilterSet) QueryValues() url.Values {
	q := url.Values{}

	if f.Search != "" {
		q.Set("search", f.Search)
	}
	for _, pt := range f.PropertyTypes {
		if pt != "" {
			q.Add("propertyType", pt)
		}
	}
	if f.DealType != "" {
		q.Set("dealType", f.DealType)
	}

	setFloat := func(name string, v *float64) {
		if v != nil {
			q.Set(name, strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}
	setInt := func(name string, v *int) {
		if v != nil {
			q.Set(name, strconv.Itoa(*v))
		}
	}

	setFloat("priceMin", f.PriceMin)
	setFloat("priceMax", f.PriceMax)
	setFloat("sizeMin", f.SizeMin)
	setFloat("sizeMax", f.SizeMax)
	setInt("bedroomsMin", f.BedroomsMin)
	setInt("bedroomsMax", f.BedroomsMax)
	setInt("bathroomsMin", f.BathroomsMin)
	setInt("yearBuiltMin", f.YearBuiltMin)
	setInt("yearBuiltMax", f.YearBuiltMax)

	// Флаги сериализуем только когда включены
	if f.HasGarage {
		q.Set("hasGarage", "true")
	}
	if f.HasGarden {
		q.Set("hasGarden", "true")
	}
	if f.HasPool {
		q.Set("hasPool", "true")
	}
	if f.HasBalcony {
		q.Set("hasBalcony", "true")
	}
	if f.PetsAllowed {
		q.Set("petsAllowed", "true")
	}

	if f.Location != nil {
		q.Set("lat", strconv.FormatFloat(f.Location.Latitude, 'f', 6, 64))
		q.Set("lng", strconv.FormatFloat(f.Location.Longitude, 'f', 6, 64))
		q.Set("radiusKm", strconv.FormatFloat(f.Location.RadiusKm, 'f', -1, 64))
	}

	return q
}

// CacheKey строит стабильный ключ кэша для пары (фильтры, сортировка).
// Поля всегда в одном и том же порядке, поэтому эквивалентные наборы
// фильтров дают одинаковый ключ независимо от порядка их заполнения.
// Координаты кодируем геохэшем - так близкие по записи, но одинаковые
// точки не порождают разные ключи из-за форматирования float.
func (f FilterSet) CacheKey(sortKey SortKey) string {
	q := f.QueryValues()

	if f.Location != nil {
		// Заменяем сырые координаты на геохэш
		q.Del("lat")
		q.Del("lng")
		q.Set("geo", geohash.EncodeWithPrecision(f.Location.Latitude, f.Location.Longitude, cacheKeyGeohashPrecision))
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("listings:")
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals) // мультиселекты тоже в стабильном порядке
		for _, v := range vals {
			fmt.Fprintf(&b, "%s=%s|", k, v)
		}
	}
	fmt.Fprintf(&b, "sort=%s", sortKey)
	return b.String()
}

// ListingsKeyPrefix - общий префикс всех ключей выдачи.
// Нужен для массовой инвалидации после мутаций.
const ListingsKeyPrefix = "listings:"
