package memory

import (
	"context"
	"fmt"

	"pmanager/internal/core"
)

func (s *Store) ListMemos(context.Context) ([]core.Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.memos, nil, func(a, b core.Memo) bool {
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	}), nil
}

func (s *Store) GetMemo(_ context.Context, id int64) (core.Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memos[id]
	if !ok {
		return m, notFound("memo", id)
	}
	return m, nil
}

func (s *Store) CreateMemo(_ context.Context, m core.Memo) (core.Memo, error) {
	m.Normalize()
	if err := m.Validate(); err != nil {
		return m, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID("memos")
	m.CreatedAt = s.now()
	m.UpdatedAt = m.CreatedAt
	s.memos[m.ID] = m
	return m, nil
}

func (s *Store) UpdateMemo(_ context.Context, id int64, p core.MemoPatch) (core.Memo, error) {
	if p.IsEmpty() {
		return core.Memo{}, core.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memos[id]
	if !ok {
		return m, notFound("memo", id)
	}
	p.ApplyTo(&m)
	if err := m.Validate(); err != nil {
		return m, err
	}
	m.UpdatedAt = s.now()
	s.memos[id] = m
	return m, nil
}

func (s *Store) DeleteMemo(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memos[id]; !ok {
		return notFound("memo", id)
	}
	delete(s.memos, id)
	return nil
}

var priorityRank = map[core.Priority]int{core.PriorityHigh: 0, core.PriorityMedium: 1, core.PriorityLow: 2}

func (s *Store) ListDailyTasks(_ context.Context, day core.Date, includeInactive bool) ([]core.DailyTaskStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := func(d core.DailyTask) bool { return includeInactive || d.IsActive }
	tasks := sortedValues(s.dailyTasks, keep, func(a, b core.DailyTask) bool {
		switch {
		case a.StartTime == nil && b.StartTime != nil:
			return false
		case a.StartTime != nil && b.StartTime == nil:
			return true
		case a.StartTime != nil && *a.StartTime != *b.StartTime:
			return *a.StartTime < *b.StartTime
		case priorityRank[a.Priority] != priorityRank[b.Priority]:
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		}
		return a.ID < b.ID
	})

	from := core.StreakWindow(day)
	out := make([]core.DailyTaskStatus, 0, len(tasks))
	for _, d := range tasks {
		st := core.DailyTaskStatus{DailyTask: d}
		for _, c := range s.completions {
			if c.DailyTaskID != d.ID {
				continue
			}
			if c.CompletionDate.Equal(day.Time) {
				st.IsCompletedToday = true
				st.CompletionNotes = c.Notes
			}
			if !c.CompletionDate.Before(from) && !day.Before(c.CompletionDate) {
				st.StreakCount++
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) GetDailyTask(_ context.Context, id int64) (core.DailyTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dailyTasks[id]
	if !ok {
		return d, notFound("daily task", id)
	}
	return d, nil
}

func (s *Store) CreateDailyTask(_ context.Context, d core.DailyTask) (core.DailyTask, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return d, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.nextID("daily_tasks")
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt
	s.dailyTasks[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDailyTask(_ context.Context, id int64, p core.DailyTaskPatch) (core.DailyTask, error) {
	if p.IsEmpty() {
		return core.DailyTask{}, core.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dailyTasks[id]
	if !ok {
		return d, notFound("daily task", id)
	}
	p.ApplyTo(&d)
	if err := d.Validate(); err != nil {
		return d, err
	}
	d.UpdatedAt = s.now()
	s.dailyTasks[id] = d
	return d, nil
}

func (s *Store) DeleteDailyTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dailyTasks[id]; !ok {
		return notFound("daily task", id)
	}
	delete(s.dailyTasks, id)
	for cid, c := range s.completions {
		if c.DailyTaskID == id {
			delete(s.completions, cid)
		}
	}
	return nil
}

func (s *Store) CompleteDailyTask(_ context.Context, c core.Completion) (core.Completion, error) {
	if err := c.CompletionDate.Validate(); err != nil {
		return c, core.NewValidationError("completion_date", "is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dailyTasks[c.DailyTaskID]
	if !ok {
		return c, notFound("daily task", c.DailyTaskID)
	}
	if !d.IsActive {
		return c, fmt.Errorf("daily task %d: %w", d.ID, core.ErrInactive)
	}
	for _, existing := range s.completions {
		if existing.DailyTaskID == c.DailyTaskID && existing.CompletionDate.Equal(c.CompletionDate.Time) {
			return c, fmt.Errorf("daily task %d already completed on %s: %w", c.DailyTaskID, c.CompletionDate, core.ErrConflict)
		}
	}
	c.ID = s.nextID("daily_task_completions")
	c.CreatedAt = s.now()
	s.completions[c.ID] = c
	return c, nil
}

func (s *Store) UncompleteDailyTask(_ context.Context, taskID int64, day core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.completions {
		if c.DailyTaskID == taskID && c.CompletionDate.Equal(day.Time) {
			delete(s.completions, id)
			return nil
		}
	}
	return fmt.Errorf("completion of daily task %d on %s: %w", taskID, day, core.ErrNotFound)
}
