package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pmanager/internal/core"
)

const taskColumns = `id, title, description, due_date, priority, category, status, project_id, created_at, updated_at`

func scanTask(s rowScanner) (core.Task, error) {
	var (
		t                core.Task
		desc, due        sql.NullString
		projectID        sql.NullInt64
		created, updated string
		priority, status string
	)
	if err := s.Scan(&t.ID, &t.Title, &desc, &due, &priority, &t.Category, &status, &projectID, &created, &updated); err != nil {
		return t, err
	}
	var err error
	if t.DueDate, err = datePtr(due); err != nil {
		return t, err
	}
	if t.CreatedAt, t.UpdatedAt, err = parseTimes(created, updated); err != nil {
		return t, err
	}
	t.Description = stringPtr(desc)
	t.ProjectID = int64Ptr(projectID)
	t.Priority = core.Priority(priority)
	t.Status = core.TaskStatus(status)
	return t, nil
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, f core.TaskFilter) ([]core.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.ProjectID != nil {
		where = append(where, "project_id = ?")
		args = append(args, *f.ProjectID)
	}
	q := "SELECT " + taskColumns + " FROM tasks" + whereClause(where) +
		" ORDER BY due_date IS NULL, due_date ASC, created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []core.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id int64) (core.Task, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, notFound("task", id)
	}
	if err != nil {
		return t, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, t core.Task) (core.Task, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, err
	}
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (title, description, due_date, priority, category, status, project_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, nullString(t.Description), nullDate(t.DueDate), string(t.Priority), t.Category,
		string(t.Status), nullInt(t.ProjectID), formatTime(now), formatTime(now))
	if err != nil {
		return t, classify(err, "create task")
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return t, fmt.Errorf("task id: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return t, nil
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, id int64, p core.TaskPatch) (core.Task, error) {
	if p.IsEmpty() {
		return core.Task{}, core.ErrNoFields
	}
	var out core.Task
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("task", id)
		}
		if err != nil {
			return fmt.Errorf("load task %d: %w", id, err)
		}
		p.ApplyTo(&t)
		if err := t.Validate(); err != nil {
			return err
		}
		t.UpdatedAt = r.now()
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET title = ?, description = ?, due_date = ?, priority = ?, category = ?,
			 status = ?, project_id = ?, updated_at = ? WHERE id = ?`,
			t.Title, nullString(t.Description), nullDate(t.DueDate), string(t.Priority), t.Category,
			string(t.Status), nullInt(t.ProjectID), formatTime(t.UpdatedAt), id)
		if err != nil {
			return classify(err, "update task")
		}
		out = t
		return nil
	})
	return out, err
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return rowsAffectedOr(res, notFound("task", id))
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

const projectColumns = `id, name, description, start_date, end_date, status, target_revenue_cents, progress, created_at, updated_at`

func scanProject(s rowScanner) (core.Project, error) {
	var (
		p                core.Project
		desc, start, end sql.NullString
		status           string
		created, updated string
	)
	if err := s.Scan(&p.ID, &p.Name, &desc, &start, &end, &status, &p.TargetRevenue.Cents, &p.Progress, &created, &updated); err != nil {
		return p, err
	}
	var err error
	if p.StartDate, err = datePtr(start); err != nil {
		return p, err
	}
	if p.EndDate, err = datePtr(end); err != nil {
		return p, err
	}
	if p.CreatedAt, p.UpdatedAt, err = parseTimes(created, updated); err != nil {
		return p, err
	}
	p.Description = stringPtr(desc)
	p.Status = core.ProjectStatus(status)
	return p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context, f core.ProjectFilter) ([]core.Project, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects"+whereClause(where)+" ORDER BY created_at DESC, id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []core.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id int64) (core.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("project", id)
	}
	if err != nil {
		return p, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return p, err
	}
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (name, description, start_date, end_date, status, target_revenue_cents, progress, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, nullString(p.Description), nullDate(p.StartDate), nullDate(p.EndDate), string(p.Status),
		p.TargetRevenue.Cents, p.Progress, formatTime(now), formatTime(now))
	if err != nil {
		return p, fmt.Errorf("create project: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return p, fmt.Errorf("project id: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return p, nil
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, id int64, patch core.ProjectPatch) (core.Project, error) {
	if patch.IsEmpty() {
		return core.Project{}, core.ErrNoFields
	}
	var out core.Project
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		p, err := scanProject(tx.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("project", id)
		}
		if err != nil {
			return fmt.Errorf("load project %d: %w", id, err)
		}
		patch.ApplyTo(&p)
		if err := p.Validate(); err != nil {
			return err
		}
		p.UpdatedAt = r.now()
		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, description = ?, start_date = ?, end_date = ?, status = ?,
			 target_revenue_cents = ?, progress = ?, updated_at = ? WHERE id = ?`,
			p.Name, nullString(p.Description), nullDate(p.StartDate), nullDate(p.EndDate), string(p.Status),
			p.TargetRevenue.Cents, p.Progress, formatTime(p.UpdatedAt), id)
		if err != nil {
			return fmt.Errorf("update project %d: %w", id, err)
		}
		out = p
		return nil
	})
	return out, err
}

// DeleteProject relies on ON DELETE SET NULL to detach tasks and
// transactions.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return rowsAffectedOr(res, notFound("project", id))
}
