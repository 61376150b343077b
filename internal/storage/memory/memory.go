// Package memory is an in-process implementation of storage.Store. All state
// sits behind one mutex that is held for the whole of every operation, so
// multi-record writes are atomic with respect to each other.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pmanager/internal/core"
	"pmanager/internal/storage"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	seq map[string]int64

	tasks        map[int64]core.Task
	projects     map[int64]core.Project
	transactions map[int64]core.Transaction
	budgets      map[int64]core.Budget
	memos        map[int64]core.Memo
	dailyTasks   map[int64]core.DailyTask
	completions  map[int64]core.Completion
	accounts     map[int64]core.Account
	entries      map[int64]core.LedgerEntry
	events       map[int64]core.LedgerEvent
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		seq:          map[string]int64{},
		tasks:        map[int64]core.Task{},
		projects:     map[int64]core.Project{},
		transactions: map[int64]core.Transaction{},
		budgets:      map[int64]core.Budget{},
		memos:        map[int64]core.Memo{},
		dailyTasks:   map[int64]core.DailyTask{},
		completions:  map[int64]core.Completion{},
		accounts:     map[int64]core.Account{},
		entries:      map[int64]core.LedgerEntry{},
		events:       map[int64]core.LedgerEvent{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) nextID(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, core.ErrNotFound)
}

// checkProject mirrors the foreign key on project_id.
func (s *Store) checkProject(id *int64) error {
	if id == nil {
		return nil
	}
	if _, ok := s.projects[*id]; !ok {
		return core.NewValidationError("project_id", "references an unknown project")
	}
	return nil
}

// sortedValues returns the map values ordered by less.
func sortedValues[T any](m map[int64]T, keep func(T) bool, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// newestFirst orders by date, then creation time, then id, all descending.
func newestFirst(da, db core.Date, ca, cb time.Time, ia, ib int64) bool {
	if !da.Equal(db.Time) {
		return db.Before(da)
	}
	if !ca.Equal(cb) {
		return ca.After(cb)
	}
	return ia > ib
}

func limit[T any](in []T, n int) []T {
	if n > 0 && len(in) > n {
		return in[:n]
	}
	return in
}
