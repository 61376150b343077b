package memory

import (
	"context"

	"pmanager/internal/core"
)

func (s *Store) ListTasks(_ context.Context, f core.TaskFilter) ([]core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.tasks, f.Match, func(a, b core.Task) bool {
		switch {
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate != nil && !a.DueDate.Equal(b.DueDate.Time):
			return a.DueDate.Before(*b.DueDate)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}), nil
}

func (s *Store) GetTask(_ context.Context, id int64) (core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return t, notFound("task", id)
	}
	return t, nil
}

func (s *Store) CreateTask(_ context.Context, t core.Task) (core.Task, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkProject(t.ProjectID); err != nil {
		return t, err
	}
	t.ID = s.nextID("tasks")
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTask(_ context.Context, id int64, p core.TaskPatch) (core.Task, error) {
	if p.IsEmpty() {
		return core.Task{}, core.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return t, notFound("task", id)
	}
	p.ApplyTo(&t)
	if err := t.Validate(); err != nil {
		return t, err
	}
	if err := s.checkProject(t.ProjectID); err != nil {
		return t, err
	}
	t.UpdatedAt = s.now()
	s.tasks[id] = t
	return t, nil
}

func (s *Store) DeleteTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return notFound("task", id)
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) ListProjects(_ context.Context, f core.ProjectFilter) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keep := func(p core.Project) bool { return f.Status == "" || p.Status == f.Status }
	return sortedValues(s.projects, keep, func(a, b core.Project) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}), nil
}

func (s *Store) GetProject(_ context.Context, id int64) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return p, notFound("project", id)
	}
	return p, nil
}

func (s *Store) CreateProject(_ context.Context, p core.Project) (core.Project, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return p, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID("projects")
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProject(_ context.Context, id int64, patch core.ProjectPatch) (core.Project, error) {
	if patch.IsEmpty() {
		return core.Project{}, core.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return p, notFound("project", id)
	}
	patch.ApplyTo(&p)
	if err := p.Validate(); err != nil {
		return p, err
	}
	p.UpdatedAt = s.now()
	s.projects[id] = p
	return p, nil
}

func (s *Store) DeleteProject(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return notFound("project", id)
	}
	delete(s.projects, id)
	for tid, t := range s.tasks {
		if t.ProjectID != nil && *t.ProjectID == id {
			t.ProjectID = nil
			s.tasks[tid] = t
		}
	}
	for xid, x := range s.transactions {
		if x.ProjectID != nil && *x.ProjectID == id {
			x.ProjectID = nil
			s.transactions[xid] = x
		}
	}
	for eid, e := range s.entries {
		if e.ProjectID != nil && *e.ProjectID == id {
			e.ProjectID = nil
			s.entries[eid] = e
		}
	}
	return nil
}
