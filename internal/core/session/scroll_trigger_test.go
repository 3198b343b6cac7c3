package session

import (
	"context"
	"testing"

	"listing-edge-service/internal/core/domain"
)

func newTriggerFixture(t *testing.T, pages map[int]domain.Page) (*ScrollTrigger, *scriptedFetcher) {
	t.Helper()
	fetcher := &scriptedFetcher{pages: pages}
	controller := NewPaginationController(fetcher, newStubCache(), nil, &testLogger{}, domain.FilterSet{}, domain.SortNewest)
	trigger := NewScrollTrigger(controller, &testLogger{}, DefaultVisibilityThreshold, DefaultTriggerMarginPx)
	return trigger, fetcher
}

func TestScrollTrigger_FiresOnceOnEnterTransition(t *testing.T) {
	trigger, fetcher := newTriggerFixture(t, map[int]domain.Page{
		0: pageOf(0, domain.PageSize),
	})

	if !trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 0.3}) {
		t.Fatalf("enter transition must trigger a fetch")
	}

	// Сентинел все еще виден - повторные события не перезапускают загрузку
	for i := 0; i < 3; i++ {
		if trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 1.0}) {
			t.Fatalf("still-visible observation %d must not refire", i)
		}
	}
	if got := fetcher.callCount(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
}

func TestScrollTrigger_MarginCountsAsVisible(t *testing.T) {
	trigger, fetcher := newTriggerFixture(t, map[int]domain.Page{
		0: pageOf(0, domain.PageSize),
	})

	// Сентинел за краем viewport, но в пределах упреждающего запаса
	if !trigger.Observe(context.Background(), SentinelEvent{Visible: false, DistancePx: 150}) {
		t.Fatalf("sentinel within trigger margin must fire")
	}
	if got := fetcher.callCount(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
}

func TestScrollTrigger_OutsideMarginDoesNotFire(t *testing.T) {
	trigger, fetcher := newTriggerFixture(t, map[int]domain.Page{
		0: pageOf(0, domain.PageSize),
	})

	if trigger.Observe(context.Background(), SentinelEvent{Visible: false, DistancePx: 800}) {
		t.Fatalf("sentinel outside trigger margin must not fire")
	}
	if got := fetcher.callCount(); got != 0 {
		t.Fatalf("expected no fetches, got %d", got)
	}
}

func TestScrollTrigger_RearmsAfterNextObservation(t *testing.T) {
	trigger, fetcher := newTriggerFixture(t, map[int]domain.Page{
		0: pageOf(0, domain.PageSize),
		1: pageOf(1, domain.PageSize),
	})

	if !trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 0.5}) {
		t.Fatalf("first enter must fire")
	}

	// После завершения фетча триггер в cooldown: первое наблюдение только
	// взводит его, второе (новый enter) запускает следующую страницу
	if trigger.Observe(context.Background(), SentinelEvent{Visible: false, DistancePx: 900}) {
		t.Fatalf("re-arming observation must not fire")
	}
	if !trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 0.5}) {
		t.Fatalf("enter after re-arm must fire")
	}
	if got := fetcher.callCount(); got != 2 {
		t.Fatalf("expected 2 fetches, got %d", got)
	}
}

func TestScrollTrigger_StillVisibleAfterFetchDoesNotRefire(t *testing.T) {
	trigger, fetcher := newTriggerFixture(t, map[int]domain.Page{
		0: pageOf(0, domain.PageSize),
		1: pageOf(1, domain.PageSize),
	})

	if !trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 0.5}) {
		t.Fatalf("enter transition must fire")
	}

	// Фетч завершился, сентинел так и висит в viewport: повторное
	// наблюдение взводит триггер, но выстрела без нового входа нет
	for i := 0; i < 3; i++ {
		if trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 1.0}) {
			t.Fatalf("observation %d while sentinel stays visible must not refire", i)
		}
	}

	// Только честный цикл "ушел из видимости - вернулся" стреляет снова
	if trigger.Observe(context.Background(), SentinelEvent{Visible: false, DistancePx: 900}) {
		t.Fatalf("leave observation must not fire")
	}
	if !trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 0.5}) {
		t.Fatalf("fresh enter transition must fire")
	}
	if got := fetcher.callCount(); got != 2 {
		t.Fatalf("expected 2 fetches, got %d", got)
	}
}

func TestScrollTrigger_NoFireWhenFeedExhausted(t *testing.T) {
	trigger, fetcher := newTriggerFixture(t, map[int]domain.Page{
		0: pageOf(0, 5), // короткая страница - конец выдачи
	})

	if !trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 1.0}) {
		t.Fatalf("first enter must fire")
	}
	trigger.Observe(context.Background(), SentinelEvent{Visible: false, DistancePx: 900})
	if trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 1.0}) {
		t.Fatalf("exhausted feed must not trigger more fetches")
	}
	if got := fetcher.callCount(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
}

func TestScrollTrigger_DisconnectIgnoresEverything(t *testing.T) {
	trigger, fetcher := newTriggerFixture(t, map[int]domain.Page{
		0: pageOf(0, domain.PageSize),
	})

	trigger.Disconnect()
	if trigger.Observe(context.Background(), SentinelEvent{Visible: true, Ratio: 1.0}) {
		t.Fatalf("disconnected trigger must ignore observations")
	}
	if got := fetcher.callCount(); got != 0 {
		t.Fatalf("expected no fetches, got %d", got)
	}
}
