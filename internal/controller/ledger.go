package controller

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/progress"
	"github.com/felixgeelhaar/playground/internal/storage"
)

// LedgerState is the cross-level progress
type LedgerState struct {
	CompletedLevels []int `json:"completedLevels"`
	TotalProgress   int   `json:"totalProgress"`
}

// Ledger tracks which levels are completed across the catalog
type Ledger struct {
	store   *storage.Adapter
	catalog []int

	mu        sync.RWMutex
	completed []int
}

// NewLedger creates a ledger for the given catalog level numbers
func NewLedger(store *storage.Adapter, catalog []int) *Ledger {
	return &Ledger{store: store, catalog: normalize(catalog)}
}

// Load reads completedLevels from storage. Duplicates and invalid numbers
// in stored data are dropped.
func (l *Ledger) Load(ctx context.Context) {
	var stored []int
	if !l.store.Load(ctx, domain.CompletedLevelsKey, &stored) {
		stored = nil
	}

	l.mu.Lock()
	l.completed = normalize(stored)
	l.mu.Unlock()
}

// MarkCompleted adds level to the completed set and persists both
// cross-level keys. It reports whether the level was newly added. The
// in-memory set only changes once both keys are saved, so a failed save
// can be retried and still counts as a new completion.
func (l *Ledger) MarkCompleted(ctx context.Context, level int) (LedgerState, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := !contains(l.completed, level)
	next := l.completed
	if added {
		next = normalize(append(append([]int{}, l.completed...), level))
	}

	state := l.stateOf(next)
	if err := l.store.Save(ctx, domain.CompletedLevelsKey, state.CompletedLevels); err != nil {
		return l.stateOf(l.completed), false, fmt.Errorf("save completed levels: %w", err)
	}
	if err := l.store.Save(ctx, domain.TotalProgressKey, state.TotalProgress); err != nil {
		return l.stateOf(l.completed), false, fmt.Errorf("save total progress: %w", err)
	}
	l.completed = next
	return state, added, nil
}

// Has reports whether level is completed
func (l *Ledger) Has(level int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return contains(l.completed, level)
}

// State returns a copy of the cross-level progress
func (l *Ledger) State() LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stateOf(l.completed)
}

func (l *Ledger) stateOf(completed []int) LedgerState {
	done := 0
	for _, n := range completed {
		if contains(l.catalog, n) {
			done++
		}
	}
	return LedgerState{
		CompletedLevels: append([]int{}, completed...),
		TotalProgress:   progress.LevelsPercentage(done, len(l.catalog)),
	}
}

func contains(levels []int, n int) bool {
	i := sort.SearchInts(levels, n)
	return i < len(levels) && levels[i] == n
}

// normalize sorts levels and drops duplicates and non-positive numbers
func normalize(levels []int) []int {
	out := make([]int, 0, len(levels))
	for _, n := range levels {
		if n > 0 {
			out = append(out, n)
		}
	}
	sort.Ints(out)

	uniq := out[:0]
	for _, n := range out {
		if len(uniq) == 0 || uniq[len(uniq)-1] != n {
			uniq = append(uniq, n)
		}
	}
	return uniq
}
