package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pmanager/internal/core"
)

const memoColumns = `id, title, content, created_at, updated_at`

func scanMemo(s rowScanner) (core.Memo, error) {
	var (
		m                core.Memo
		created, updated string
	)
	if err := s.Scan(&m.ID, &m.Title, &m.Content, &created, &updated); err != nil {
		return m, err
	}
	var err error
	m.CreatedAt, m.UpdatedAt, err = parseTimes(created, updated)
	return m, err
}

func (r *SQLiteRepository) ListMemos(ctx context.Context) ([]core.Memo, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+memoColumns+" FROM memos ORDER BY updated_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list memos: %w", err)
	}
	defer rows.Close()

	memos := []core.Memo{}
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memo: %w", err)
		}
		memos = append(memos, m)
	}
	return memos, rows.Err()
}

func (r *SQLiteRepository) GetMemo(ctx context.Context, id int64) (core.Memo, error) {
	m, err := scanMemo(r.db.QueryRowContext(ctx, "SELECT "+memoColumns+" FROM memos WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, notFound("memo", id)
	}
	if err != nil {
		return m, fmt.Errorf("get memo %d: %w", id, err)
	}
	return m, nil
}

func (r *SQLiteRepository) CreateMemo(ctx context.Context, m core.Memo) (core.Memo, error) {
	m.Normalize()
	if err := m.Validate(); err != nil {
		return m, err
	}
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO memos (title, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		m.Title, m.Content, formatTime(now), formatTime(now))
	if err != nil {
		return m, fmt.Errorf("create memo: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return m, fmt.Errorf("memo id: %w", err)
	}
	m.CreatedAt, m.UpdatedAt = now, now
	return m, nil
}

func (r *SQLiteRepository) UpdateMemo(ctx context.Context, id int64, p core.MemoPatch) (core.Memo, error) {
	if p.IsEmpty() {
		return core.Memo{}, core.ErrNoFields
	}
	var out core.Memo
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		m, err := scanMemo(tx.QueryRowContext(ctx, "SELECT "+memoColumns+" FROM memos WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("memo", id)
		}
		if err != nil {
			return fmt.Errorf("load memo %d: %w", id, err)
		}
		p.ApplyTo(&m)
		if err := m.Validate(); err != nil {
			return err
		}
		m.UpdatedAt = r.now()
		if _, err := tx.ExecContext(ctx, `UPDATE memos SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
			m.Title, m.Content, formatTime(m.UpdatedAt), id); err != nil {
			return fmt.Errorf("update memo %d: %w", id, err)
		}
		out = m
		return nil
	})
	return out, err
}

func (r *SQLiteRepository) DeleteMemo(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM memos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete memo %d: %w", id, err)
	}
	return rowsAffectedOr(res, notFound("memo", id))
}

const dailyTaskColumns = `dt.id, dt.title, dt.description, dt.category, dt.priority, dt.start_time, dt.end_time, dt.is_active, dt.created_at, dt.updated_at`

func scanDailyTask(s rowScanner, extra ...any) (core.DailyTask, error) {
	var (
		d                        core.DailyTask
		desc, startTime, endTime sql.NullString
		priority                 string
		active                   int
		created, updated         string
	)
	dest := append([]any{&d.ID, &d.Title, &desc, &d.Category, &priority, &startTime, &endTime, &active, &created, &updated}, extra...)
	if err := s.Scan(dest...); err != nil {
		return d, err
	}
	var err error
	if d.CreatedAt, d.UpdatedAt, err = parseTimes(created, updated); err != nil {
		return d, err
	}
	d.Description = stringPtr(desc)
	d.StartTime = stringPtr(startTime)
	d.EndTime = stringPtr(endTime)
	d.Priority = core.Priority(priority)
	d.IsActive = active != 0
	return d, nil
}

func (r *SQLiteRepository) ListDailyTasks(ctx context.Context, day core.Date, includeInactive bool) ([]core.DailyTaskStatus, error) {
	q := `SELECT ` + dailyTaskColumns + `, c.id IS NOT NULL, c.notes,
		(SELECT COUNT(*) FROM daily_task_completions s
		  WHERE s.daily_task_id = dt.id AND s.completion_date BETWEEN ? AND ?)
		FROM daily_tasks dt
		LEFT JOIN daily_task_completions c ON c.daily_task_id = dt.id AND c.completion_date = ?
		WHERE (? = 1 OR dt.is_active = 1)
		ORDER BY dt.start_time IS NULL, dt.start_time,
		  CASE dt.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, dt.id`

	rows, err := r.db.QueryContext(ctx, q,
		core.StreakWindow(day).String(), day.String(), day.String(), boolInt(includeInactive))
	if err != nil {
		return nil, fmt.Errorf("list daily tasks: %w", err)
	}
	defer rows.Close()

	out := []core.DailyTaskStatus{}
	for rows.Next() {
		var (
			st    core.DailyTaskStatus
			done  bool
			notes sql.NullString
		)
		st.DailyTask, err = scanDailyTask(rows, &done, &notes, &st.StreakCount)
		if err != nil {
			return nil, fmt.Errorf("scan daily task: %w", err)
		}
		st.IsCompletedToday = done
		st.CompletionNotes = stringPtr(notes)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetDailyTask(ctx context.Context, id int64) (core.DailyTask, error) {
	return r.getDailyTask(ctx, r.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) getDailyTask(ctx context.Context, q queryRower, id int64) (core.DailyTask, error) {
	d, err := scanDailyTask(q.QueryRowContext(ctx, "SELECT "+dailyTaskColumns+" FROM daily_tasks dt WHERE dt.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, notFound("daily task", id)
	}
	if err != nil {
		return d, fmt.Errorf("get daily task %d: %w", id, err)
	}
	return d, nil
}

func (r *SQLiteRepository) CreateDailyTask(ctx context.Context, d core.DailyTask) (core.DailyTask, error) {
	d.Normalize()
	if err := d.Validate(); err != nil {
		return d, err
	}
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_tasks (title, description, category, priority, start_time, end_time, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Title, nullString(d.Description), d.Category, string(d.Priority), nullString(d.StartTime),
		nullString(d.EndTime), boolInt(d.IsActive), formatTime(now), formatTime(now))
	if err != nil {
		return d, fmt.Errorf("create daily task: %w", err)
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return d, fmt.Errorf("daily task id: %w", err)
	}
	d.CreatedAt, d.UpdatedAt = now, now
	return d, nil
}

func (r *SQLiteRepository) UpdateDailyTask(ctx context.Context, id int64, p core.DailyTaskPatch) (core.DailyTask, error) {
	if p.IsEmpty() {
		return core.DailyTask{}, core.ErrNoFields
	}
	var out core.DailyTask
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		d, err := r.getDailyTask(ctx, tx, id)
		if err != nil {
			return err
		}
		p.ApplyTo(&d)
		if err := d.Validate(); err != nil {
			return err
		}
		d.UpdatedAt = r.now()
		_, err = tx.ExecContext(ctx,
			`UPDATE daily_tasks SET title = ?, description = ?, category = ?, priority = ?, start_time = ?,
			 end_time = ?, is_active = ?, updated_at = ? WHERE id = ?`,
			d.Title, nullString(d.Description), d.Category, string(d.Priority), nullString(d.StartTime),
			nullString(d.EndTime), boolInt(d.IsActive), formatTime(d.UpdatedAt), id)
		if err != nil {
			return fmt.Errorf("update daily task %d: %w", id, err)
		}
		out = d
		return nil
	})
	return out, err
}

func (r *SQLiteRepository) DeleteDailyTask(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM daily_tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete daily task %d: %w", id, err)
	}
	return rowsAffectedOr(res, notFound("daily task", id))
}

func (r *SQLiteRepository) CompleteDailyTask(ctx context.Context, c core.Completion) (core.Completion, error) {
	if err := c.CompletionDate.Validate(); err != nil {
		return c, core.NewValidationError("completion_date", "is required")
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		d, err := r.getDailyTask(ctx, tx, c.DailyTaskID)
		if err != nil {
			return err
		}
		if !d.IsActive {
			return fmt.Errorf("daily task %d: %w", d.ID, core.ErrInactive)
		}
		c.CreatedAt = r.now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO daily_task_completions (daily_task_id, completion_date, notes, created_at) VALUES (?, ?, ?, ?)`,
			c.DailyTaskID, c.CompletionDate.String(), nullString(c.Notes), formatTime(c.CreatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("daily task %d already completed on %s: %w", c.DailyTaskID, c.CompletionDate, core.ErrConflict)
			}
			return fmt.Errorf("complete daily task %d: %w", c.DailyTaskID, err)
		}
		c.ID, err = res.LastInsertId()
		return err
	})
	return c, err
}

func (r *SQLiteRepository) UncompleteDailyTask(ctx context.Context, taskID int64, day core.Date) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM daily_task_completions WHERE daily_task_id = ? AND completion_date = ?", taskID, day.String())
	if err != nil {
		return fmt.Errorf("uncomplete daily task %d: %w", taskID, err)
	}
	return rowsAffectedOr(res, fmt.Errorf("completion of daily task %d on %s: %w", taskID, day, core.ErrNotFound))
}
