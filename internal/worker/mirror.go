package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pmanager/internal/amqp"
	"pmanager/internal/core"
	applog "pmanager/internal/log"
	"pmanager/internal/sheets"
	"pmanager/internal/storage"
)

// MirrorWorker copies ledger events from the store's outbox to the external
// journal. Events are re-read from the store before every append so the
// journal only ever sees committed data, and appends are serialized so the
// consumer and the sweep cannot both write the same event.
type MirrorWorker struct {
	events    storage.LedgerEventStore
	journal   sheets.JournalWriter
	batchSize int
	logger    *applog.Logger

	mu sync.Mutex
}

func NewMirrorWorker(events storage.LedgerEventStore, journal sheets.JournalWriter, batchSize int, logger *applog.Logger) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	if logger == nil {
		logger = applog.Default()
	}
	return &MirrorWorker{
		events:    events,
		journal:   journal,
		batchSize: batchSize,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEventMessage mirrors the event named by msg. An event that no
// longer exists is acknowledged without mirroring.
func (w *MirrorWorker) HandleEventMessage(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	w.logger.DebugContext(ctx, "Processing ledger event message", applog.NewFields().
		WithLedgerEvent(msg.EventID, msg.EntryID).
		ToSlice()...)

	_, err := w.mirror(ctx, msg.EventID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Ledger event not found, dropping message", applog.FieldEventID, msg.EventID)
		return nil
	}
	return err
}

// ProcessPending mirrors up to one batch of unmirrored events. It backs up
// the message path when messages are lost or the broker is down.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.events.PendingLedgerEvents(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending ledger events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending ledger events", "count", len(pending))
	mirrored := 0
	for _, ev := range pending {
		if ctx.Err() != nil {
			return mirrored, ctx.Err()
		}
		ok, err := w.mirror(ctx, ev.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror ledger event", applog.NewFields().
				WithLedgerEvent(ev.ID, ev.EntryID).
				WithError(err).
				ToSlice()...)
			continue
		}
		if ok {
			mirrored++
		}
	}
	return mirrored, nil
}

// StartupCheck reconciles the outbox with the journal before consuming.
// Events the journal already holds, written before a crash that lost the
// mirrored stamp, are stamped without appending them again. The rest of a
// larger first batch is mirrored.
func (w *MirrorWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.events.PendingLedgerEvents(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending ledger events for startup check: %w", err)
	}
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "No pending ledger events found on startup", applog.FieldOperation, applog.OpStartup)
		return nil
	}

	var present map[int64]struct{}
	if reader, ok := w.journal.(sheets.JournalReader); ok {
		present, err = reader.JournalEventIDs(ctx)
		if err != nil {
			return fmt.Errorf("read journal event ids: %w", err)
		}
	}

	var recovered, mirrored, failed int
	for _, ev := range pending {
		if _, ok := present[ev.ID]; ok {
			if err := w.events.MarkLedgerEventMirrored(ctx, ev.ID); err != nil {
				w.logger.ErrorContext(ctx, "Failed to mark ledger event mirrored", applog.NewFields().
					WithLedgerEvent(ev.ID, ev.EntryID).
					WithError(err).
					ToSlice()...)
				failed++
				continue
			}
			recovered++
			continue
		}
		ok, err := w.mirror(ctx, ev.ID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror ledger event during startup", applog.NewFields().
				WithLedgerEvent(ev.ID, ev.EntryID).
				WithError(err).
				ToSlice()...)
			failed++
			continue
		}
		if ok {
			mirrored++
		}
	}

	w.logger.InfoContext(ctx, "Startup mirror check completed",
		applog.FieldOperation, applog.OpStartup,
		"total", len(pending),
		"recovered", recovered,
		"mirrored", mirrored,
		"errors", failed)
	return nil
}

// mirror appends the event unless it is already stamped. It reports whether
// a row was written.
func (w *MirrorWorker) mirror(ctx context.Context, id int64) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ev, err := w.events.GetLedgerEvent(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get ledger event: %w", err)
	}
	if ev.MirroredAt != nil {
		w.logger.DebugContext(ctx, "Ledger event already mirrored", applog.FieldEventID, ev.ID)
		return false, nil
	}

	ref, err := w.journal.AppendJournal(ctx, sheets.JournalRowFromEvent(ev))
	if err != nil {
		return false, fmt.Errorf("append to journal: %w", err)
	}

	// The row is written; a failed stamp only means a later duplicate check.
	if err := w.events.MarkLedgerEventMirrored(ctx, ev.ID); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark ledger event mirrored", applog.NewFields().
			WithLedgerEvent(ev.ID, ev.EntryID).
			WithError(err).
			ToSlice()...)
	}

	w.logger.InfoContext(ctx, "Mirrored ledger event", append(applog.NewFields().
		WithLedgerEvent(ev.ID, ev.EntryID).
		WithAccount(ev.AccountID).
		ToSlice(),
		applog.FieldDeltaCents, ev.Delta.Cents,
		"journal_ref", ref)...)
	return true, nil
}
