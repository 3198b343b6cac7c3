package session

import (
	"sync"
	"testing"
	"time"

	"listing-edge-service/internal/core/domain"
)

type commitRecorder struct {
	mu      sync.Mutex
	commits []domain.FilterSet
	sorts   []domain.SortKey
}

func (r *commitRecorder) record(prev domain.FilterSet, prevSort domain.SortKey, next domain.FilterSet, nextSort domain.SortKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, next)
	r.sorts = append(r.sorts, nextSort)
}

func (r *commitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

func (r *commitRecorder) last() (domain.FilterSet, domain.SortKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits[len(r.commits)-1], r.sorts[len(r.sorts)-1]
}

func TestFilterState_RapidUpdatesCollapseIntoOneCommit(t *testing.T) {
	rec := &commitRecorder{}
	fs := NewFilterState(domain.FilterSet{}, domain.SortNewest, 30*time.Millisecond, rec.record)
	defer fs.Close()

	// Печатаем быстрее окна тишины: каждое значение затирает предыдущее
	fs.Update(domain.FilterSet{Search: "c"})
	fs.Update(domain.FilterSet{Search: "co"})
	fs.Update(domain.FilterSet{Search: "cot"})
	fs.Update(domain.FilterSet{Search: "cottage"})

	if rec.count() != 0 {
		t.Fatalf("commit must not happen before the quiet window elapses")
	}

	time.Sleep(80 * time.Millisecond)

	if got := rec.count(); got != 1 {
		t.Fatalf("expected exactly one commit, got %d", got)
	}
	committed, _ := rec.last()
	if committed.Search != "cottage" {
		t.Fatalf("expected last pending value to win, got %q", committed.Search)
	}

	current, _ := fs.Current()
	if current.Search != "cottage" {
		t.Fatalf("committed state not visible via Current, got %q", current.Search)
	}
}

func TestFilterState_UpdateRestartsQuietWindow(t *testing.T) {
	rec := &commitRecorder{}
	fs := NewFilterState(domain.FilterSet{}, domain.SortNewest, 50*time.Millisecond, rec.record)
	defer fs.Close()

	fs.Update(domain.FilterSet{Search: "a"})
	time.Sleep(30 * time.Millisecond)
	fs.Update(domain.FilterSet{Search: "ab"})
	time.Sleep(30 * time.Millisecond)

	// 60ms прошло с первого Update, но окно перезапускалось
	if rec.count() != 0 {
		t.Fatalf("restarted window must delay the commit")
	}

	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Fatalf("expected one commit after the window, got %d", got)
	}
}

func TestFilterState_SetSortCommitsImmediately(t *testing.T) {
	rec := &commitRecorder{}
	fs := NewFilterState(domain.FilterSet{Search: "villa"}, domain.SortNewest, time.Second, rec.record)
	defer fs.Close()

	fs.SetSort(domain.SortPriceLow)

	if got := rec.count(); got != 1 {
		t.Fatalf("sort change must commit without debounce, got %d commits", got)
	}
	committed, sort := rec.last()
	if sort != domain.SortPriceLow {
		t.Fatalf("expected committed sort price-low, got %q", sort)
	}
	if committed.Search != "villa" {
		t.Fatalf("sort commit must keep committed filters, got %q", committed.Search)
	}

	// Повтор той же сортировки - no-op
	fs.SetSort(domain.SortPriceLow)
	if got := rec.count(); got != 1 {
		t.Fatalf("same sort key must not re-commit, got %d commits", got)
	}
}

func TestFilterState_FlushCommitsPendingNow(t *testing.T) {
	rec := &commitRecorder{}
	fs := NewFilterState(domain.FilterSet{}, domain.SortNewest, time.Hour, rec.record)
	defer fs.Close()

	fs.Update(domain.FilterSet{Search: "penthouse"})
	fs.Flush()

	if got := rec.count(); got != 1 {
		t.Fatalf("flush must commit pending immediately, got %d commits", got)
	}

	// Flush без pending ничего не делает
	fs.Flush()
	if got := rec.count(); got != 1 {
		t.Fatalf("flush without pending must be a no-op, got %d commits", got)
	}
}

func TestFilterState_CloseDropsPending(t *testing.T) {
	rec := &commitRecorder{}
	fs := NewFilterState(domain.FilterSet{}, domain.SortNewest, 20*time.Millisecond, rec.record)

	fs.Update(domain.FilterSet{Search: "dropped"})
	fs.Close()

	time.Sleep(60 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("close must cancel the pending commit")
	}
}
