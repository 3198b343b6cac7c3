package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"listing-edge-service/internal/core/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type fakeFindListingsUC struct {
	result  domain.AccumulatedResult
	err     error
	filters domain.FilterSet
	sortKey domain.SortKey
}

func (uc *fakeFindListingsUC) Execute(ctx context.Context, filters domain.FilterSet, sortKey domain.SortKey) (domain.AccumulatedResult, error) {
	uc.filters = filters
	uc.sortKey = sortKey
	return uc.result, uc.err
}

type fakeToggleFavoriteUC struct {
	err       error
	listingID string
	userID    string
	add       bool
	calls     int
}

func (uc *fakeToggleFavoriteUC) Execute(ctx context.Context, listingID string, userID string, add bool) error {
	uc.calls++
	uc.listingID = listingID
	uc.userID = userID
	uc.add = add
	return uc.err
}

func newListingRouter(find *fakeFindListingsUC, toggle *fakeToggleFavoriteUC) http.Handler {
	h := NewListingHandler(find, toggle)
	r := chi.NewRouter()
	r.Get("/api/v1/listings", h.FindListings)
	r.Post("/api/v1/listings/{listingID}/favorite", h.AddFavorite)
	r.Delete("/api/v1/listings/{listingID}/favorite", h.RemoveFavorite)
	return r
}

func TestFindListings_ReturnsItems(t *testing.T) {
	find := &fakeFindListingsUC{result: domain.AccumulatedResult{
		Items:     []domain.ListingItem{{ID: uuid.New(), Title: "Cottage"}},
		Exhausted: true,
	}}
	router := newListingRouter(find, &fakeToggleFavoriteUC{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/listings?search=cottage&sortBy=price-low&priceMax=200000", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var resp ListingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Title != "Cottage" {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
	if resp.HasNextPage {
		t.Fatalf("exhausted result must report has_next_page=false")
	}

	if find.filters.Search != "cottage" || find.sortKey != domain.SortPriceLow {
		t.Fatalf("use case received filters=%+v sort=%q", find.filters, find.sortKey)
	}
	if find.filters.PriceMax == nil || *find.filters.PriceMax != 200000 {
		t.Fatalf("priceMax not parsed: %+v", find.filters.PriceMax)
	}
}

func TestFindListings_BadSortKeyIs400(t *testing.T) {
	router := newListingRouter(&fakeFindListingsUC{}, &fakeToggleFavoriteUC{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/listings?sortBy=cheapest", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestFindListings_UpstreamFailureIs502(t *testing.T) {
	find := &fakeFindListingsUC{err: errors.New("upstream down")}
	router := newListingRouter(find, &fakeToggleFavoriteUC{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/listings", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}

func TestToggleFavorite_AddAndRemove(t *testing.T) {
	toggle := &fakeToggleFavoriteUC{}
	router := newListingRouter(&fakeFindListingsUC{}, toggle)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/listings/42/favorite?userId=u1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("add: status %d, want 200", rec.Code)
	}
	if toggle.listingID != "42" || toggle.userID != "u1" || !toggle.add {
		t.Fatalf("add call: %+v", toggle)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/listings/42/favorite?userId=u1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: status %d, want 200", rec.Code)
	}
	if toggle.add {
		t.Fatalf("remove must pass add=false")
	}
}

func TestToggleFavorite_MissingUserIs400(t *testing.T) {
	toggle := &fakeToggleFavoriteUC{}
	router := newListingRouter(&fakeFindListingsUC{}, toggle)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/listings/42/favorite", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	if toggle.calls != 0 {
		t.Fatalf("use case must not run without userId")
	}
}

func TestToggleFavorite_UpstreamFailureIs502(t *testing.T) {
	toggle := &fakeToggleFavoriteUC{err: errors.New("upstream down")}
	router := newListingRouter(&fakeFindListingsUC{}, toggle)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/listings/42/favorite?userId=u1", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
}
