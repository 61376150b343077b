package core

import "time"

type Memo struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title" validate:"required,max=200"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Memo) Normalize() { m.Title = trimmed(m.Title) }

func (m Memo) Validate() error {
	verr := &ValidationError{}
	checkStruct(m, verr)
	return verr.OrNil()
}

type MemoPatch struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (p MemoPatch) IsEmpty() bool { return p.Title == nil && p.Content == nil }

func (p MemoPatch) ApplyTo(m *Memo) {
	setIf(&m.Title, p.Title)
	setIf(&m.Content, p.Content)
	m.Normalize()
}

// DefaultDailyCategory is used when a daily task is created without one.
const DefaultDailyCategory = "general"

// StreakWindowDays is how far back completions count towards a streak.
const StreakWindowDays = 30

// DailyTask is a routine that can be completed once per day.
type DailyTask struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description *string   `json:"description"`
	Category    string    `json:"category" validate:"max=100"`
	Priority    Priority  `json:"priority" validate:"oneof=high medium low"`
	StartTime   *string   `json:"start_time" validate:"omitempty,clock"`
	EndTime     *string   `json:"end_time" validate:"omitempty,clock"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d *DailyTask) Normalize() {
	d.Title = trimmed(d.Title)
	d.Category = trimmed(d.Category)
	if d.Category == "" {
		d.Category = DefaultDailyCategory
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
}

func (d DailyTask) Validate() error {
	verr := &ValidationError{}
	checkStruct(d, verr)
	if d.StartTime != nil && d.EndTime != nil && *d.EndTime < *d.StartTime {
		verr.Add("end_time", "must not be before start_time")
	}
	return verr.OrNil()
}

type DailyTaskPatch struct {
	Title       *string          `json:"title"`
	Description Nullable[string] `json:"description"`
	Category    *string          `json:"category"`
	Priority    *Priority        `json:"priority"`
	StartTime   Nullable[string] `json:"start_time"`
	EndTime     Nullable[string] `json:"end_time"`
	IsActive    *bool            `json:"is_active"`
}

func (p DailyTaskPatch) IsEmpty() bool {
	return p.Title == nil && !p.Description.Set && p.Category == nil && p.Priority == nil &&
		!p.StartTime.Set && !p.EndTime.Set && p.IsActive == nil
}

func (p DailyTaskPatch) ApplyTo(d *DailyTask) {
	setIf(&d.Title, p.Title)
	p.Description.applyTo(&d.Description)
	setIf(&d.Category, p.Category)
	setIf(&d.Priority, p.Priority)
	p.StartTime.applyTo(&d.StartTime)
	p.EndTime.applyTo(&d.EndTime)
	setIf(&d.IsActive, p.IsActive)
	d.Normalize()
}

// DailyTaskStatus is a daily task as seen on a given day.
type DailyTaskStatus struct {
	DailyTask
	IsCompletedToday bool    `json:"is_completed_today"`
	CompletionNotes  *string `json:"completion_notes"`
	StreakCount      int     `json:"streak_count"`
}

type Completion struct {
	ID             int64     `json:"id"`
	DailyTaskID    int64     `json:"daily_task_id"`
	CompletionDate Date      `json:"completion_date"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

// StreakWindow returns the first day counted towards the streak ending on day.
func StreakWindow(day Date) Date { return day.AddDays(-(StreakWindowDays - 1)) }
