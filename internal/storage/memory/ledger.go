package memory

import (
	"context"
	"time"

	"pmanager/internal/core"
)

func (s *Store) ListAccounts(_ context.Context, f core.AccountFilter) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.accounts, f.Match, func(a, b core.Account) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) GetAccount(_ context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return a, notFound("account", id)
	}
	return a, nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return a, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAccount(a, s.now()), nil
}

func (s *Store) insertAccount(a core.Account, now time.Time) core.Account {
	a.ID = s.nextID("company_accounts")
	a.Balance = a.OpeningBalance
	a.Version = 1
	a.CreatedAt, a.UpdatedAt = now, now
	s.accounts[a.ID] = a
	return a
}

func (s *Store) UpdateAccount(_ context.Context, id int64, p core.AccountPatch) (core.Account, error) {
	if p.IsEmpty() {
		return core.Account{}, core.ErrNoFields
	}
	if err := p.Check(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return a, notFound("account", id)
	}
	p.ApplyTo(&a)
	if err := a.Validate(); err != nil {
		return a, err
	}
	a.Version++
	a.UpdatedAt = s.now()
	s.accounts[id] = a
	return a, nil
}

func (s *Store) DeleteAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return notFound("account", id)
	}
	for eid, e := range s.entries {
		if e.AccountID == id {
			delete(s.entries, eid)
		}
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) ListEntries(_ context.Context, f core.EntryFilter) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := sortedValues(s.entries, f.Match, func(a, b core.LedgerEntry) bool {
		return newestFirst(a.Date, b.Date, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return limit(out, f.Limit), nil
}

func (s *Store) GetEntry(_ context.Context, id int64) (core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return e, notFound("entry", id)
	}
	return e, nil
}

// applyDeltas must be called with s.mu held and only after every check that
// can fail, so a write is never half applied.
func (s *Store) applyDeltas(action core.LedgerAction, entry core.LedgerEntry, deltas []core.AccountDelta, now time.Time) []core.LedgerEvent {
	events := make([]core.LedgerEvent, 0, len(deltas))
	for _, d := range deltas {
		a := s.accounts[d.AccountID]
		a.Balance = a.Balance.Add(core.Cents(d.Cents))
		a.Version++
		a.UpdatedAt = now
		s.accounts[a.ID] = a

		ev := core.NewLedgerEvent(action, entry, d, a.Balance.Cents, now)
		ev.ID = s.nextID("ledger_events")
		s.events[ev.ID] = ev
		events = append(events, ev)
	}
	return events
}

func (s *Store) PostEntry(_ context.Context, e core.LedgerEntry) (core.LedgerWrite, error) {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return core.LedgerWrite{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[e.AccountID]; !ok {
		return core.LedgerWrite{}, notFound("account", e.AccountID)
	}
	if err := s.checkProject(e.ProjectID); err != nil {
		return core.LedgerWrite{}, err
	}
	now := s.now()
	e.ID = s.nextID("company_transactions")
	e.CreatedAt, e.UpdatedAt = now, now
	s.entries[e.ID] = e
	events := s.applyDeltas(core.ActionPost, e, core.BalanceDeltas(nil, &e), now)
	return core.LedgerWrite{Entry: e, Events: events}, nil
}

func (s *Store) AmendEntry(_ context.Context, id int64, p core.EntryPatch) (core.LedgerWrite, error) {
	if p.IsEmpty() {
		return core.LedgerWrite{}, core.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before, ok := s.entries[id]
	if !ok {
		return core.LedgerWrite{}, notFound("entry", id)
	}
	after := before
	p.ApplyTo(&after)
	if err := after.Validate(); err != nil {
		return core.LedgerWrite{}, err
	}
	if _, ok := s.accounts[after.AccountID]; !ok {
		return core.LedgerWrite{}, notFound("account", after.AccountID)
	}
	if err := s.checkProject(after.ProjectID); err != nil {
		return core.LedgerWrite{}, err
	}
	now := s.now()
	after.UpdatedAt = now
	s.entries[id] = after
	events := s.applyDeltas(core.ActionAmend, after, core.BalanceDeltas(&before, &after), now)
	return core.LedgerWrite{Entry: after, Events: events}, nil
}

func (s *Store) VoidEntry(_ context.Context, id int64) (core.LedgerWrite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, ok := s.entries[id]
	if !ok {
		return core.LedgerWrite{}, notFound("entry", id)
	}
	delete(s.entries, id)
	events := s.applyDeltas(core.ActionVoid, before, core.BalanceDeltas(&before, nil), s.now())
	return core.LedgerWrite{Entry: before, Events: events}, nil
}

func (s *Store) RestoreLedger(_ context.Context, snap core.LedgerSnapshot) (core.Account, []core.LedgerEvent, error) {
	if err := snap.Validate(); err != nil {
		return core.Account{}, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range snap.Transactions {
		if err := s.checkProject(e.ProjectID); err != nil {
			return core.Account{}, nil, err
		}
	}
	now := s.now()
	a := snap.Account
	a.Normalize()
	a = s.insertAccount(a, now)

	var events []core.LedgerEvent
	for _, e := range snap.Transactions {
		e.AccountID = a.ID
		e.Normalize()
		e.ID = s.nextID("company_transactions")
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.UpdatedAt = now
		s.entries[e.ID] = e
		events = append(events, s.applyDeltas(core.ActionRestore, e, core.BalanceDeltas(nil, &e), now)...)
	}
	return s.accounts[a.ID], events, nil
}

func (s *Store) GetLedgerEvent(_ context.Context, id int64) (core.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return ev, notFound("ledger event", id)
	}
	return ev, nil
}

func (s *Store) PendingLedgerEvents(_ context.Context, n int) ([]core.LedgerEvent, error) {
	if n <= 0 {
		return []core.LedgerEvent{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := sortedValues(s.events, func(ev core.LedgerEvent) bool { return ev.MirroredAt == nil },
		func(a, b core.LedgerEvent) bool { return a.ID < b.ID })
	return limit(pending, n), nil
}

func (s *Store) MarkLedgerEventMirrored(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return notFound("ledger event", id)
	}
	if ev.MirroredAt == nil {
		now := s.now()
		ev.MirroredAt = &now
		s.events[id] = ev
	}
	return nil
}

func (s *Store) SnapshotLedger(_ context.Context, accountID int64) (core.LedgerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return core.LedgerSnapshot{}, notFound("account", accountID)
	}
	entries := sortedValues(s.entries, func(e core.LedgerEntry) bool { return e.AccountID == accountID },
		func(a, b core.LedgerEntry) bool {
			return newestFirst(b.Date, a.Date, b.CreatedAt, a.CreatedAt, b.ID, a.ID)
		})
	return core.LedgerSnapshot{Account: a, Transactions: entries, ExportedAt: s.now()}, nil
}
