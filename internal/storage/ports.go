// Package storage defines the persistence ports of the application and
// implements them on SQLite. The in-memory implementation lives in
// storage/memory.
package storage

import (
	"context"

	"pmanager/internal/core"
)

type TaskStore interface {
	ListTasks(ctx context.Context, f core.TaskFilter) ([]core.Task, error)
	GetTask(ctx context.Context, id int64) (core.Task, error)
	CreateTask(ctx context.Context, t core.Task) (core.Task, error)
	UpdateTask(ctx context.Context, id int64, p core.TaskPatch) (core.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

type ProjectStore interface {
	ListProjects(ctx context.Context, f core.ProjectFilter) ([]core.Project, error)
	GetProject(ctx context.Context, id int64) (core.Project, error)
	CreateProject(ctx context.Context, p core.Project) (core.Project, error)
	UpdateProject(ctx context.Context, id int64, p core.ProjectPatch) (core.Project, error)
	// DeleteProject removes the project and detaches its tasks and
	// transactions.
	DeleteProject(ctx context.Context, id int64) error
}

type TransactionStore interface {
	ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

type BudgetStore interface {
	ListBudgets(ctx context.Context, f core.BudgetFilter) ([]core.Budget, error)
	GetBudget(ctx context.Context, id int64) (core.Budget, error)
	// CreateBudget fails with core.ErrConflict when a budget already exists
	// for the same category and month.
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	UpdateBudget(ctx context.Context, id int64, p core.BudgetPatch) (core.Budget, error)
	DeleteBudget(ctx context.Context, id int64) error
}

type MemoStore interface {
	ListMemos(ctx context.Context) ([]core.Memo, error)
	GetMemo(ctx context.Context, id int64) (core.Memo, error)
	CreateMemo(ctx context.Context, m core.Memo) (core.Memo, error)
	UpdateMemo(ctx context.Context, id int64, p core.MemoPatch) (core.Memo, error)
	DeleteMemo(ctx context.Context, id int64) error
}

type DailyTaskStore interface {
	// ListDailyTasks returns the tasks with their completion state on day.
	ListDailyTasks(ctx context.Context, day core.Date, includeInactive bool) ([]core.DailyTaskStatus, error)
	GetDailyTask(ctx context.Context, id int64) (core.DailyTask, error)
	CreateDailyTask(ctx context.Context, d core.DailyTask) (core.DailyTask, error)
	UpdateDailyTask(ctx context.Context, id int64, p core.DailyTaskPatch) (core.DailyTask, error)
	DeleteDailyTask(ctx context.Context, id int64) error
	// CompleteDailyTask fails with core.ErrInactive for an inactive task
	// and core.ErrConflict when the day is already completed.
	CompleteDailyTask(ctx context.Context, c core.Completion) (core.Completion, error)
	UncompleteDailyTask(ctx context.Context, taskID int64, day core.Date) error
}

// LedgerStore keeps company accounts and their ledger entries. Every method
// that changes a balance does so atomically together with the entry write
// and the ledger events describing the change.
type LedgerStore interface {
	ListAccounts(ctx context.Context, f core.AccountFilter) ([]core.Account, error)
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	// CreateAccount stores a new account whose balance starts at its
	// opening balance.
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	UpdateAccount(ctx context.Context, id int64, p core.AccountPatch) (core.Account, error)
	// DeleteAccount removes the account together with its entries.
	DeleteAccount(ctx context.Context, id int64) error

	ListEntries(ctx context.Context, f core.EntryFilter) ([]core.LedgerEntry, error)
	GetEntry(ctx context.Context, id int64) (core.LedgerEntry, error)
	PostEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerWrite, error)
	AmendEntry(ctx context.Context, id int64, p core.EntryPatch) (core.LedgerWrite, error)
	VoidEntry(ctx context.Context, id int64) (core.LedgerWrite, error)
	// SnapshotLedger reads an account and all of its entries at one point in
	// time, oldest entry first.
	SnapshotLedger(ctx context.Context, accountID int64) (core.LedgerSnapshot, error)
	// RestoreLedger recreates an account from a snapshot under a new id and
	// replays its entries.
	RestoreLedger(ctx context.Context, s core.LedgerSnapshot) (core.Account, []core.LedgerEvent, error)
}

// LedgerEventStore is the outbox read by the mirror worker.
type LedgerEventStore interface {
	GetLedgerEvent(ctx context.Context, id int64) (core.LedgerEvent, error)
	PendingLedgerEvents(ctx context.Context, limit int) ([]core.LedgerEvent, error)
	MarkLedgerEventMirrored(ctx context.Context, id int64) error
}

// Store is everything a backend provides.
type Store interface {
	TaskStore
	ProjectStore
	TransactionStore
	BudgetStore
	MemoStore
	DailyTaskStore
	LedgerStore
	LedgerEventStore
	Ping(ctx context.Context) error
	Close() error
}
