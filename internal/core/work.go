package core

import "time"

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectOnHold     ProjectStatus = "on_hold"
)

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description"`
	DueDate     *Date      `json:"due_date"`
	Priority    Priority   `json:"priority" validate:"oneof=high medium low"`
	Category    string     `json:"category" validate:"required,max=100"`
	Status      TaskStatus `json:"status" validate:"oneof=todo in_progress completed"`
	ProjectID   *int64     `json:"project_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Normalize trims text fields and fills defaults.
func (t *Task) Normalize() {
	t.Title = trimmed(t.Title)
	t.Category = trimmed(t.Category)
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = TaskTodo
	}
}

func (t Task) Validate() error {
	verr := &ValidationError{}
	checkStruct(t, verr)
	return verr.OrNil()
}

// IsOverdue reports whether an open task is past its due date on day.
func (t Task) IsOverdue(day Date) bool {
	return t.Status != TaskCompleted && t.DueDate != nil && t.DueDate.Before(day)
}

type TaskPatch struct {
	Title       *string          `json:"title"`
	Description Nullable[string] `json:"description"`
	DueDate     Nullable[Date]   `json:"due_date"`
	Priority    *Priority        `json:"priority"`
	Category    *string          `json:"category"`
	Status      *TaskStatus      `json:"status"`
	ProjectID   Nullable[int64]  `json:"project_id"`
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && !p.Description.Set && !p.DueDate.Set && p.Priority == nil &&
		p.Category == nil && p.Status == nil && !p.ProjectID.Set
}

func (p TaskPatch) ApplyTo(t *Task) {
	setIf(&t.Title, p.Title)
	p.Description.applyTo(&t.Description)
	p.DueDate.applyTo(&t.DueDate)
	setIf(&t.Priority, p.Priority)
	setIf(&t.Category, p.Category)
	setIf(&t.Status, p.Status)
	p.ProjectID.applyTo(&t.ProjectID)
	t.Normalize()
}

type TaskFilter struct {
	Status    TaskStatus
	Priority  Priority
	Category  string
	ProjectID *int64
}

// Match is the in-memory form of the filter.
func (f TaskFilter) Match(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	return f.ProjectID == nil || (t.ProjectID != nil && *t.ProjectID == *f.ProjectID)
}

type Project struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name" validate:"required,max=200"`
	Description   *string       `json:"description"`
	StartDate     *Date         `json:"start_date"`
	EndDate       *Date         `json:"end_date"`
	Status        ProjectStatus `json:"status" validate:"oneof=planning in_progress completed on_hold"`
	TargetRevenue Money         `json:"target_revenue"`
	Progress      int           `json:"progress" validate:"gte=0,lte=100"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (p *Project) Normalize() {
	p.Name = trimmed(p.Name)
	if p.Status == "" {
		p.Status = ProjectPlanning
	}
}

func (p Project) Validate() error {
	verr := &ValidationError{}
	checkStruct(p, verr)
	if p.TargetRevenue.Cents < 0 {
		verr.Add("target_revenue", "must not be negative")
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		verr.Add("end_date", "must not be before start_date")
	}
	return verr.OrNil()
}

// ProjectRevenue is a project with the personal transactions booked on it
// rolled up.
type ProjectRevenue struct {
	Project
	TotalIncome   Money `json:"total_income"`
	TotalExpense  Money `json:"total_expense"`
	ActualRevenue Money `json:"actual_revenue"`
}

type ProjectPatch struct {
	Name          *string          `json:"name"`
	Description   Nullable[string] `json:"description"`
	StartDate     Nullable[Date]   `json:"start_date"`
	EndDate       Nullable[Date]   `json:"end_date"`
	Status        *ProjectStatus   `json:"status"`
	TargetRevenue *Money           `json:"target_revenue"`
	Progress      *int             `json:"progress"`
}

func (p ProjectPatch) IsEmpty() bool {
	return p.Name == nil && !p.Description.Set && !p.StartDate.Set && !p.EndDate.Set &&
		p.Status == nil && p.TargetRevenue == nil && p.Progress == nil
}

func (p ProjectPatch) ApplyTo(pr *Project) {
	setIf(&pr.Name, p.Name)
	p.Description.applyTo(&pr.Description)
	p.StartDate.applyTo(&pr.StartDate)
	p.EndDate.applyTo(&pr.EndDate)
	setIf(&pr.Status, p.Status)
	setIf(&pr.TargetRevenue, p.TargetRevenue)
	setIf(&pr.Progress, p.Progress)
	pr.Normalize()
}

type ProjectFilter struct {
	Status ProjectStatus
}

