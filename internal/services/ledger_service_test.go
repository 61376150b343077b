package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmanager/internal/core"
	applog "pmanager/internal/log"
	"pmanager/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev core.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []core.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.LedgerEvent(nil), p.events...)
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

func openAccount(t *testing.T, store *memory.Store, name string, opening int64) core.Account {
	t.Helper()
	a, err := store.CreateAccount(context.Background(), core.Account{Name: name, OpeningBalance: core.Cents(opening), IsActive: true})
	require.NoError(t, err)
	return a
}

func ledgerEntry(accountID int64, kind core.EntryKind, cents int64, day core.Date) core.LedgerEntry {
	return core.LedgerEntry{AccountID: accountID, Kind: kind, Amount: core.Cents(cents), Category: "ops", Date: day}
}

func TestLedgerService_PublishesAfterEachWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub, quietLogger())
	acc := openAccount(t, store, "Operating", 50000)
	day := core.NewDate(2024, 6, 1)

	posted, err := svc.Post(ctx, ledgerEntry(acc.ID, core.EntryIncome, 10000, day))
	require.NoError(t, err)

	amount := core.Cents(2500)
	_, err = svc.Amend(ctx, posted.ID, core.EntryPatch{Amount: &amount})
	require.NoError(t, err)

	_, err = svc.Void(ctx, posted.ID)
	require.NoError(t, err)

	svc.Flush()
	events := pub.published()
	require.Len(t, events, 3)
	assert.Equal(t, core.ActionPost, events[0].Action)
	assert.Equal(t, int64(10000), events[0].Delta.Cents)
	assert.Equal(t, core.ActionAmend, events[1].Action)
	assert.Equal(t, int64(-7500), events[1].Delta.Cents)
	assert.Equal(t, core.ActionVoid, events[2].Action)
	assert.Equal(t, int64(50000), events[2].BalanceAfter.Cents)
	for _, ev := range events {
		assert.Equal(t, posted.ID, ev.EntryID)
		assert.NotZero(t, ev.ID)
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store, &recordingPublisher{err: errors.New("broker down")}, quietLogger())
	acc := openAccount(t, store, "Operating", 0)

	_, err := svc.Post(ctx, ledgerEntry(acc.ID, core.EntryExpense, 1200, core.NewDate(2024, 6, 2)))
	require.NoError(t, err)

	got, err := store.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-1200), got.Balance.Cents)

	pending, err := store.PendingLedgerEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestLedgerService_NilPublisher(t *testing.T) {
	store := memory.New()
	svc := NewLedgerService(store, nil, quietLogger())
	acc := openAccount(t, store, "Operating", 0)

	_, err := svc.Post(context.Background(), ledgerEntry(acc.ID, core.EntryIncome, 100, core.NewDate(2024, 1, 1)))
	require.NoError(t, err)
}

func TestLedgerService_WrapsStoreErrors(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, quietLogger())

	_, err := svc.Post(context.Background(), ledgerEntry(99, core.EntryIncome, 100, core.NewDate(2024, 1, 1)))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Void(context.Background(), 12)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerService_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub, quietLogger())
	acc := openAccount(t, store, "Exchange", 20000)

	_, err := svc.Post(ctx, ledgerEntry(acc.ID, core.EntryIncome, 5000, core.NewDate(2024, 3, 1)))
	require.NoError(t, err)
	_, err = svc.Post(ctx, ledgerEntry(acc.ID, core.EntryExpense, 1500, core.NewDate(2024, 3, 5)))
	require.NoError(t, err)
	_, err = svc.Post(ctx, ledgerEntry(acc.ID, core.EntryTransfer, 900, core.NewDate(2024, 3, 9)))
	require.NoError(t, err)

	snap, err := svc.Export(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(23500), snap.Account.Balance.Cents)
	require.Len(t, snap.Transactions, 3)
	assert.Equal(t, core.NewDate(2024, 3, 1), snap.Transactions[0].Date)

	restored, err := svc.Import(ctx, snap)
	require.NoError(t, err)
	assert.NotEqual(t, acc.ID, restored.ID)
	assert.Equal(t, int64(23500), restored.Balance.Cents)
	assert.Equal(t, int64(20000), restored.OpeningBalance.Cents)

	rec, err := svc.Reconcile(ctx, restored.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, 3, rec.Entries)

	svc.Flush()
	published := pub.published()
	require.Len(t, published, 6)
	for _, ev := range published[3:] {
		assert.Equal(t, core.ActionRestore, ev.Action)
		assert.Equal(t, restored.ID, ev.AccountID)
	}
}

func TestLedgerService_ImportRejectsInvalidSnapshot(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, quietLogger())
	snap := core.LedgerSnapshot{
		Account:      core.Account{Name: "Broken"},
		Transactions: []core.LedgerEntry{{Kind: core.EntryIncome, Amount: core.Cents(-5), Category: "x", Date: core.NewDate(2024, 1, 1)}},
	}

	_, err := svc.Import(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	accounts, err := svc.store.ListAccounts(context.Background(), core.AccountFilter{})
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestLedgerService_ReconcileUnknownAccount(t *testing.T) {
	svc := NewLedgerService(memory.New(), nil, quietLogger())
	_, err := svc.Reconcile(context.Background(), 7)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

type blockingPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (p *blockingPublisher) PublishLedgerEvent(ctx context.Context, _ core.LedgerEvent) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
	return nil
}

func TestLedgerService_SlowBrokerDoesNotBlockWrites(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &blockingPublisher{release: make(chan struct{})}
	svc := NewLedgerService(store, pub, quietLogger())
	from := openAccount(t, store, "From", 0)
	to := openAccount(t, store, "To", 0)

	done := make(chan error, 1)
	go func() {
		posted, err := svc.Post(ctx, ledgerEntry(from.ID, core.EntryIncome, 500, core.NewDate(2024, 6, 1)))
		if err == nil {
			_, err = svc.Amend(ctx, posted.ID, core.EntryPatch{AccountID: &to.ID})
		}
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("write waited for the broker")
	}

	close(pub.release)
	svc.Close()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 3, pub.count)
}

func TestLedgerService_PublishTimeoutLeavesEventPending(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &blockingPublisher{release: make(chan struct{})}
	svc := NewLedgerService(store, pub, quietLogger())
	svc.publishTimeout = 10 * time.Millisecond
	acc := openAccount(t, store, "Operating", 0)

	_, err := svc.Post(ctx, ledgerEntry(acc.ID, core.EntryIncome, 100, core.NewDate(2024, 6, 1)))
	require.NoError(t, err)
	svc.Flush()

	pending, err := store.PendingLedgerEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	pub.mu.Lock()
	assert.Zero(t, pub.count)
	pub.mu.Unlock()
}

func TestLedgerService_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub, quietLogger())
	acc := openAccount(t, store, "Operating", 0)

	svc.Close()
	svc.Close()
	_, err := svc.Post(ctx, ledgerEntry(acc.ID, core.EntryIncome, 100, core.NewDate(2024, 6, 1)))
	require.NoError(t, err)
	assert.Empty(t, pub.published())

	NewLedgerService(store, nil, quietLogger()).Close()
}

func TestLedgerService_LogsThroughInjectedLogger(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	var buf bytes.Buffer
	svc := NewLedgerService(store, nil, applog.New(applog.Config{Format: "json", Output: &buf}))
	acc := openAccount(t, store, "Operating", 1000)

	posted, err := svc.Post(ctx, ledgerEntry(acc.ID, core.EntryExpense, 250, core.NewDate(2024, 6, 1)))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, applog.ComponentLedger, rec[applog.FieldComponent])
	assert.Equal(t, applog.OpPost, rec[applog.FieldOperation])
	assert.Equal(t, float64(posted.ID), rec[applog.FieldEntryID])
	assert.Equal(t, float64(-250), rec[applog.FieldDeltaCents])
	assert.Equal(t, float64(750), rec[applog.FieldBalance])
}
