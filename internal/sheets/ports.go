package sheets

import (
	"context"
	"errors"
	"time"

	"pmanager/internal/core"
)

// JournalColumns is the column layout of the journal sheet.
var JournalColumns = []string{
	"Event", "Entry", "Account", "Action", "Type", "Category",
	"Date", "Amount", "Delta", "Balance", "Recorded",
}

// JournalRow is one ledger event as written to the external journal.
type JournalRow struct {
	EventID      int64
	EntryID      int64
	AccountID    int64
	Action       core.LedgerAction
	Kind         core.EntryKind
	Category     string
	EntryDate    core.Date
	Amount       core.Money
	Delta        core.Money
	BalanceAfter core.Money
	RecordedAt   time.Time
}

// JournalRowFromEvent flattens a ledger event into a journal row.
func JournalRowFromEvent(ev core.LedgerEvent) JournalRow {
	return JournalRow{
		EventID:      ev.ID,
		EntryID:      ev.EntryID,
		AccountID:    ev.AccountID,
		Action:       ev.Action,
		Kind:         ev.Kind,
		Category:     ev.Category,
		EntryDate:    ev.EntryDate,
		Amount:       ev.Amount,
		Delta:        ev.Delta,
		BalanceAfter: ev.BalanceAfter,
		RecordedAt:   ev.CreatedAt,
	}
}

func (r JournalRow) Validate() error {
	if r.EventID <= 0 {
		return errors.New("journal row: missing event id")
	}
	if r.AccountID <= 0 {
		return errors.New("journal row: missing account id")
	}
	if r.Action == "" {
		return errors.New("journal row: missing action")
	}
	return nil
}

// Values renders the row in JournalColumns order. Money is written as a
// fixed two-place decimal so the sheet never sees a float.
func (r JournalRow) Values() []any {
	return []any{
		r.EventID,
		r.EntryID,
		r.AccountID,
		string(r.Action),
		string(r.Kind),
		r.Category,
		r.EntryDate.String(),
		r.Amount.String(),
		r.Delta.String(),
		r.BalanceAfter.String(),
		r.RecordedAt.UTC().Format(time.RFC3339),
	}
}

// Ports for outbound adapters.
type (
	JournalWriter interface {
		AppendJournal(ctx context.Context, row JournalRow) (rowRef string, err error)
	}

	// JournalReader lists the event ids already present in the journal, so
	// a restarted mirror can tell which events it wrote before a crash.
	JournalReader interface {
		JournalEventIDs(ctx context.Context) (map[int64]struct{}, error)
	}
)
