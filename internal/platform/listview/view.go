// Package listview holds the list-page pattern shared by every record
// table: fetch the set from the backend, filter it locally, sort and page
// it. A View remembers the last set it fetched successfully so a failed
// refresh can still show something.
package listview

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// State is where a view is in its fetch cycle.
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Errored
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

// FetchFunc loads the full record set for a view.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// View is one list's state: idle, then loading on every refresh, ending in
// loaded or errored. It is safe for concurrent use; overlapping refreshes
// are not cancelled and the last one to finish wins.
type View[T any] struct {
	mu        sync.RWMutex
	state     State
	all       []T
	filter    Filter[T]
	filtered  []T
	err       error
	fetchedAt time.Time
	now       func() time.Time
}

func NewView[T any]() *View[T] {
	return &View[T]{now: time.Now}
}

// Refresh re-enters loading and runs fetch. On success the fetched set
// replaces the old one and the current filter is re-applied. On failure the
// previous set stays visible and the view is marked errored.
func (v *View[T]) Refresh(ctx context.Context, fetch FetchFunc[T]) error {
	_, err := v.refresh(ctx, fetch)
	return err
}

// Load refreshes the view and returns the caller's own snapshot: the set
// this fetch produced (or the last good set if it failed) with f applied.
// The view's shared filter is left alone, so overlapping requests from the
// same session never see each other's predicates.
func (v *View[T]) Load(ctx context.Context, f Filter[T], fetch FetchFunc[T]) (*Snapshot[T], error) {
	snap, err := v.refresh(ctx, fetch)
	snap.items = f.Apply(snap.all)
	return snap, err
}

func (v *View[T]) refresh(ctx context.Context, fetch FetchFunc[T]) (*Snapshot[T], error) {
	v.mu.Lock()
	v.state = Loading
	v.mu.Unlock()

	items, err := fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.state = Errored
		v.err = err
		return &Snapshot[T]{
			all:       slices.Clone(v.all),
			state:     Errored,
			err:       err,
			fetchedAt: v.fetchedAt,
		}, err
	}
	v.state = Loaded
	v.err = nil
	v.all = items
	v.fetchedAt = v.now()
	v.filtered = v.filter.Apply(v.all)
	return &Snapshot[T]{all: slices.Clone(items), state: Loaded, fetchedAt: v.fetchedAt}, nil
}

// SetFilter replaces the active filter and re-derives the visible subset
// from the last fetched set. No fetch happens.
func (v *View[T]) SetFilter(f Filter[T]) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter = f
	v.filtered = f.Apply(v.all)
}

// State returns the current fetch state.
func (v *View[T]) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Err is the error from the last failed refresh, nil once a refresh
// succeeds.
func (v *View[T]) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// All returns the last fetched set.
func (v *View[T]) All() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.all)
}

// Items returns the filtered subset.
func (v *View[T]) Items() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.filtered)
}

// FetchedAt is when the visible set was fetched, zero if never.
func (v *View[T]) FetchedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fetchedAt
}

// Stale reports whether the visible set is a leftover from an earlier
// successful refresh.
func (v *View[T]) Stale() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state == Errored && !v.fetchedAt.IsZero()
}

// Snapshot is one request's picture of a view, taken when its refresh
// finished. Later refreshes of the same view do not change it.
type Snapshot[T any] struct {
	all       []T
	items     []T
	state     State
	err       error
	fetchedAt time.Time
}

// All is the fetched set the snapshot was built from.
func (s *Snapshot[T]) All() []T { return s.all }

// Items is the request's filtered subset of All.
func (s *Snapshot[T]) Items() []T { return s.items }

func (s *Snapshot[T]) State() State { return s.state }

func (s *Snapshot[T]) Err() error { return s.err }

// Stale reports whether the rows are left over from an earlier successful
// refresh because this one failed.
func (s *Snapshot[T]) Stale() bool {
	return s.state == Errored && !s.fetchedAt.IsZero()
}

// SortBy sorts items in place by key, stably, descending when desc is set.
func SortBy[T any, K cmp.Ordered](items []T, desc bool, key func(T) K) {
	slices.SortStableFunc(items, func(a, b T) int {
		c := cmp.Compare(key(a), key(b))
		if desc {
			return -c
		}
		return c
	})
}

// SortByTime sorts items by a timestamp, zero times last.
func SortByTime[T any](items []T, desc bool, key func(T) time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		ta, tb := key(a), key(b)
		switch {
		case ta.IsZero() && tb.IsZero():
			return 0
		case ta.IsZero():
			return 1
		case tb.IsZero():
			return -1
		}
		c := ta.Compare(tb)
		if desc {
			return -c
		}
		return c
	})
}

// SortByText sorts items by a case-folded string key.
func SortByText[T any](items []T, desc bool, key func(T) string) {
	SortBy(items, desc, func(t T) string { return strings.TrimSpace(Fold(key(t))) })
}
