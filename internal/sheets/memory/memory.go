// Package memory is an in-process journal used by tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pmanager/internal/sheets"
)

type Journal struct {
	mu   sync.Mutex
	rows []sheets.JournalRow
	// failures makes the next n appends fail.
	failures int
}

var (
	_ sheets.JournalWriter = (*Journal)(nil)
	_ sheets.JournalReader = (*Journal)(nil)
)

func New() *Journal { return &Journal{} }

// ErrUnavailable is returned by appends while the journal is set to fail.
var ErrUnavailable = errors.New("journal unavailable")

// AppendJournal stores the row and returns a synthetic row reference.
func (j *Journal) AppendJournal(_ context.Context, row sheets.JournalRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failures > 0 {
		j.failures--
		return "", ErrUnavailable
	}
	j.rows = append(j.rows, row)
	return fmt.Sprintf("mem:%d", len(j.rows)), nil
}

func (j *Journal) JournalEventIDs(context.Context) (map[int64]struct{}, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[int64]struct{}, len(j.rows))
	for _, r := range j.rows {
		out[r.EventID] = struct{}{}
	}
	return out, nil
}

// Rows returns a copy of everything appended so far.
func (j *Journal) Rows() []sheets.JournalRow {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]sheets.JournalRow(nil), j.rows...)
}

// FailNext makes the next n appends return ErrUnavailable.
func (j *Journal) FailNext(n int) {
	j.mu.Lock()
	j.failures = n
	j.mu.Unlock()
}
