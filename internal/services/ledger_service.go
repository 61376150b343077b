package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pmanager/internal/core"
	applog "pmanager/internal/log"
	"pmanager/internal/storage"
)

const (
	// DefaultPublishTimeout bounds the announcement of one event.
	DefaultPublishTimeout = 5 * time.Second
	publishQueueSize      = 256
)

// EventPublisher announces committed ledger events to other processes.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

type pendingEvent struct {
	ctx context.Context
	ev  core.LedgerEvent
}

// LedgerService runs ledger writes against the store and announces the
// resulting events once the store has committed them. Announcements run on
// a background goroutine in commit order so a slow broker never holds up a
// write; whatever is dropped stays in the outbox for the mirror sweep.
type LedgerService struct {
	store          storage.LedgerStore
	publisher      EventPublisher
	logger         *applog.Logger
	publishTimeout time.Duration

	mu       sync.Mutex
	closed   bool
	queue    chan pendingEvent
	inflight sync.WaitGroup
	done     chan struct{}
}

// NewLedgerService builds the service. publisher may be nil, in which case
// events stay in the store's outbox for the mirror worker's sweep. A nil
// logger falls back to the slog default.
func NewLedgerService(store storage.LedgerStore, publisher EventPublisher, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.Default()
	}
	s := &LedgerService{
		store:          store,
		publisher:      publisher,
		logger:         logger.WithComponent(applog.ComponentLedger),
		publishTimeout: DefaultPublishTimeout,
	}
	if publisher != nil {
		s.queue = make(chan pendingEvent, publishQueueSize)
		s.done = make(chan struct{})
		go s.publishLoop()
	}
	return s
}

// Post records a new entry and applies it to its account balance.
func (s *LedgerService) Post(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	w, err := s.store.PostEntry(ctx, e)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("post entry: %w", err)
	}
	s.logWrite(ctx, applog.OpPost, w)
	s.publish(ctx, w.Events)
	return w.Entry, nil
}

// Amend changes an entry, moving its balance effect as needed.
func (s *LedgerService) Amend(ctx context.Context, id int64, p core.EntryPatch) (core.LedgerEntry, error) {
	w, err := s.store.AmendEntry(ctx, id, p)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("amend entry: %w", err)
	}
	s.logWrite(ctx, applog.OpAmend, w)
	s.publish(ctx, w.Events)
	return w.Entry, nil
}

// Void deletes an entry and reverses its balance effect.
func (s *LedgerService) Void(ctx context.Context, id int64) (core.LedgerEntry, error) {
	w, err := s.store.VoidEntry(ctx, id)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("void entry: %w", err)
	}
	s.logWrite(ctx, applog.OpVoid, w)
	s.publish(ctx, w.Events)
	return w.Entry, nil
}

// Export returns the account and its entries in replay order.
func (s *LedgerService) Export(ctx context.Context, accountID int64) (core.LedgerSnapshot, error) {
	snap, err := s.store.SnapshotLedger(ctx, accountID)
	if err != nil {
		return snap, fmt.Errorf("export ledger: %w", err)
	}
	s.logger.DebugContext(ctx, "Ledger exported", applog.NewFields().
		WithOperation(applog.OpExport).
		WithAccount(accountID).
		ToSlice()...)
	return snap, nil
}

// Import recreates an exported account under a new id.
func (s *LedgerService) Import(ctx context.Context, snap core.LedgerSnapshot) (core.Account, error) {
	a, events, err := s.store.RestoreLedger(ctx, snap)
	if err != nil {
		return a, fmt.Errorf("import ledger: %w", err)
	}
	s.logger.InfoContext(ctx, "Ledger restored", append(applog.NewFields().
		WithOperation(applog.OpImport).
		WithAccount(a.ID).
		ToSlice(),
		"entries", len(snap.Transactions),
		applog.FieldBalance, a.Balance.Cents)...)
	s.publish(ctx, events)
	return a, nil
}

// Reconcile compares the cached balance with one recomputed from entries.
func (s *LedgerService) Reconcile(ctx context.Context, accountID int64) (core.Reconciliation, error) {
	snap, err := s.store.SnapshotLedger(ctx, accountID)
	if err != nil {
		return core.Reconciliation{}, fmt.Errorf("reconcile account: %w", err)
	}
	r := core.Reconcile(snap.Account, snap.Transactions)
	if !r.Consistent {
		s.logger.WarnContext(ctx, "Account balance drifted from its entries", append(applog.NewFields().
			WithAccount(accountID).
			ToSlice(),
			applog.FieldBalance, r.Balance.Cents,
			"computed_cents", r.Computed.Cents)...)
	}
	return r, nil
}

// Flush waits until every event queued so far has been handed to the
// publisher.
func (s *LedgerService) Flush() {
	s.inflight.Wait()
}

// Close stops the publishing goroutine after the queue drains. Events
// written afterwards are left to the outbox sweep.
func (s *LedgerService) Close() {
	s.mu.Lock()
	if s.closed || s.queue == nil {
		s.closed = true
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *LedgerService) logWrite(ctx context.Context, op string, w core.LedgerWrite) {
	for _, ev := range w.Events {
		fields := applog.NewFields().
			WithOperation(op).
			WithLedgerChange(w.Entry.ID, ev.AccountID, string(w.Entry.Kind), ev.Delta.Cents, ev.BalanceAfter.Cents)
		s.logger.InfoContext(ctx, "Ledger entry written", fields.ToSlice()...)
	}
}

// publish queues events for announcement. A full queue drops the event;
// the outbox row keeps it for the sweep.
func (s *LedgerService) publish(ctx context.Context, events []core.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, ev := range events {
		s.inflight.Add(1)
		select {
		case s.queue <- pendingEvent{ctx: detached, ev: ev}:
		default:
			s.inflight.Done()
			s.logger.WarnContext(ctx, "Publish queue full, leaving event to the sweep",
				applog.FieldEventID, ev.ID)
		}
	}
}

func (s *LedgerService) publishLoop() {
	defer close(s.done)
	for p := range s.queue {
		ctx, cancel := context.WithTimeout(p.ctx, s.publishTimeout)
		if err := s.publisher.PublishLedgerEvent(ctx, p.ev); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish ledger event", applog.NewFields().
				WithLedgerEvent(p.ev.ID, p.ev.EntryID).
				WithError(err).
				ToSlice()...)
		}
		cancel()
		s.inflight.Done()
	}
}
