package domain

import (
	"time"

	"github.com/google/uuid"
)

// ListingFeatures - флаги удобств объекта
type ListingFeatures struct {
	HasGarage   bool
	HasGarden   bool
	HasPool     bool
	HasBalcony  bool
	PetsAllowed bool
}

// ListingItem - read-only проекция объекта недвижимости для карточки в выдаче.
// После получения от upstream НЕ мутируется на нашей стороне,
// обновление возможно только полным refetch'ем.
type ListingItem struct {
	ID           uuid.UUID
	Title        string
	PropertyType string
	DealType     string
	Price        float64
	Currency     string
	Bedrooms     int
	Bathrooms    int
	SizeM2       float64
	Address      string
	Latitude     float64
	Longitude    float64
	Images       []string
	Features     ListingFeatures
	ListedAt     time.Time
}

// PageSize - фиксированный размер страницы выдачи
const PageSize = 20

// Page - один "батч" выдачи: результат одного запроса к upstream
type Page struct {
	Index int
	Items []ListingItem
}

// HasMore - эвристика "есть ли продолжение": страница полная (ровно PageSize
// элементов) значит дальше что-то есть. Короткая страница - конец выдачи.
// Крайний случай "осталось ровно PageSize" эвристика не различает, но
// upstream не отдает total, так что живем с этим.
func (p Page) HasMore() bool {
	return len(p.Items) == PageSize
}

// AccumulatedResult - конкатенация всех полученных страниц для текущего
// контекста (FilterSet, SortKey). Порядок элементов = порядок прихода страниц.
// При любой смене фильтров или сортировки сбрасывается в пустой.
type AccumulatedResult struct {
	Items     []ListingItem
	LastPage  int  // индекс последней успешно полученной страницы
	Exhausted bool // последняя страница была короткой
}

// Append добавляет страницу в конец накопленной выдачи
func (r *AccumulatedResult) Append(p Page) {
	r.Items = append(r.Items, p.Items...)
	r.LastPage = p.Index
	if !p.HasMore() {
		r.Exhausted = true
	}
}

// NextPageIndex - индекс следующей страницы для запроса
func (r *AccumulatedResult) NextPageIndex() int {
	if len(r.Items) == 0 && !r.Exhausted {
		return 0
	}
	return r.LastPage + 1
}

// HasNextPage - вычисляемый флаг продолжения (не серверный!)
func (r *AccumulatedResult) HasNextPage() bool {
	if r.Exhausted {
		return false
	}
	// до первой загрузки считаем, что страницы есть
	return true
}

// Reset очищает накопленное. Вызывается при смене контекста.
func (r *AccumulatedResult) Reset() {
	r.Items = nil
	r.LastPage = 0
	r.Exhausted = false
}
