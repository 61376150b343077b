package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmanager/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createAccount(t *testing.T, repo *SQLiteRepository, opening int64) core.Account {
	t.Helper()
	a, err := repo.CreateAccount(context.Background(), core.Account{
		Name: "Operating", Type: core.AccountChecking, OpeningBalance: core.Cents(opening), IsActive: true,
	})
	require.NoError(t, err)
	return a
}

func ledgerEntry(accountID int64, kind core.EntryKind, cents int64) core.LedgerEntry {
	return core.LedgerEntry{AccountID: accountID, Kind: kind, Amount: core.Cents(cents), Category: "ops", Date: core.NewDate(2024, 6, 1)}
}

func accountBalance(t *testing.T, repo *SQLiteRepository, id int64) int64 {
	t.Helper()
	a, err := repo.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.Balance.Cents
}

func TestSQLiteLedgerLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acc := createAccount(t, repo, 50000)

	income, err := repo.PostEntry(ctx, ledgerEntry(acc.ID, core.EntryIncome, 10000))
	require.NoError(t, err)
	assert.NotZero(t, income.Entry.ID)
	assert.Equal(t, int64(60000), accountBalance(t, repo, acc.ID))
	require.Len(t, income.Events, 1)
	assert.Equal(t, int64(60000), income.Events[0].BalanceAfter.Cents)

	expense, err := repo.PostEntry(ctx, ledgerEntry(acc.ID, core.EntryExpense, 4000))
	require.NoError(t, err)
	assert.Equal(t, int64(56000), accountBalance(t, repo, acc.ID))

	amount := core.Cents(7000)
	_, err = repo.AmendEntry(ctx, expense.Entry.ID, core.EntryPatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, int64(53000), accountBalance(t, repo, acc.ID))

	_, err = repo.VoidEntry(ctx, income.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(43000), accountBalance(t, repo, acc.ID))

	stored, err := repo.GetEntry(ctx, expense.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), stored.Amount.Cents)
	assert.Equal(t, "2024-06-01", stored.Date.String())

	entries, err := repo.ListEntries(ctx, core.EntryFilter{AccountID: &acc.ID})
	require.NoError(t, err)
	final, err := repo.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, core.Reconcile(final, entries).Consistent)
	assert.Equal(t, int64(5), final.Version)
}

func TestSQLiteAmendMovesBetweenAccounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	from := createAccount(t, repo, 1000)
	to := createAccount(t, repo, 1000)

	w, err := repo.PostEntry(ctx, ledgerEntry(from.ID, core.EntryIncome, 500))
	require.NoError(t, err)

	moved, err := repo.AmendEntry(ctx, w.Entry.ID, core.EntryPatch{AccountID: &to.ID})
	require.NoError(t, err)
	assert.Equal(t, to.ID, moved.Entry.AccountID)
	assert.Len(t, moved.Events, 2)
	assert.Equal(t, int64(1000), accountBalance(t, repo, from.ID))
	assert.Equal(t, int64(1500), accountBalance(t, repo, to.ID))

	missing := int64(404)
	_, err = repo.AmendEntry(ctx, w.Entry.ID, core.EntryPatch{AccountID: &missing})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, int64(1500), accountBalance(t, repo, to.ID))
}

func TestSQLiteAmendClearsOptionalFields(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acc := createAccount(t, repo, 0)
	project, err := repo.CreateProject(ctx, core.Project{Name: "Site"})
	require.NoError(t, err)

	e := ledgerEntry(acc.ID, core.EntryExpense, 1500)
	vendor := "ACME"
	e.ProjectID, e.VendorCustomer = &project.ID, &vendor
	w, err := repo.PostEntry(ctx, e)
	require.NoError(t, err)

	_, err = repo.AmendEntry(ctx, w.Entry.ID, core.EntryPatch{ProjectID: core.Null[int64]()})
	require.NoError(t, err)

	stored, err := repo.GetEntry(ctx, w.Entry.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ProjectID)
	require.NotNil(t, stored.VendorCustomer)
	assert.Equal(t, "ACME", *stored.VendorCustomer)
	assert.Equal(t, int64(-1500), accountBalance(t, repo, acc.ID))
}

func TestSQLiteSnapshotDoesNotWaitForWriter(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acc := createAccount(t, repo, 10000)
	_, err := repo.PostEntry(ctx, ledgerEntry(acc.ID, core.EntryIncome, 2500))
	require.NoError(t, err)

	// An open write transaction holds the database's write lock.
	writer, err := repo.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer writer.Rollback()
	_, err = writer.ExecContext(ctx, "UPDATE company_accounts SET balance_cents = balance_cents + 1 WHERE id = ?", acc.ID)
	require.NoError(t, err)

	snapCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	start := time.Now()
	snap, err := repo.SnapshotLedger(snapCtx, acc.ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(12500), snap.Account.Balance.Cents)
	assert.Len(t, snap.Transactions, 1)
}

func TestSQLitePostEntryErrors(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acc := createAccount(t, repo, 0)

	_, err := repo.PostEntry(ctx, ledgerEntry(999, core.EntryIncome, 100))
	assert.ErrorIs(t, err, core.ErrNotFound)

	bad := ledgerEntry(acc.ID, core.EntryIncome, 0)
	_, err = repo.PostEntry(ctx, bad)
	assert.True(t, core.IsValidation(err))

	project := int64(77)
	withProject := ledgerEntry(acc.ID, core.EntryIncome, 100)
	withProject.ProjectID = &project
	_, err = repo.PostEntry(ctx, withProject)
	assert.True(t, core.IsValidation(err))

	assert.Equal(t, int64(0), accountBalance(t, repo, acc.ID))
	_, err = repo.AmendEntry(ctx, 1, core.EntryPatch{})
	assert.ErrorIs(t, err, core.ErrNoFields)
}

func TestSQLiteConcurrentPosts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acc := createAccount(t, repo, 0)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.PostEntry(ctx, ledgerEntry(acc.ID, core.EntryIncome, 100))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(writers*100), accountBalance(t, repo, acc.ID))
}

func TestSQLiteRestoreLedger(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acc := createAccount(t, repo, 50000)
	for _, e := range []core.LedgerEntry{
		ledgerEntry(acc.ID, core.EntryIncome, 10000),
		ledgerEntry(acc.ID, core.EntryExpense, 7000),
	} {
		_, err := repo.PostEntry(ctx, e)
		require.NoError(t, err)
	}
	original, err := repo.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	entries, err := repo.ListEntries(ctx, core.EntryFilter{AccountID: &acc.ID})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAccount(ctx, acc.ID))
	assert.ErrorIs(t, repo.DeleteAccount(ctx, acc.ID), core.ErrNotFound)

	restored, events, err := repo.RestoreLedger(ctx, core.LedgerSnapshot{Account: original, Transactions: entries})
	require.NoError(t, err)
	assert.Equal(t, original.Balance, restored.Balance)
	assert.Equal(t, original.OpeningBalance, restored.OpeningBalance)
	assert.Len(t, events, 2)

	replayed, err := repo.ListEntries(ctx, core.EntryFilter{AccountID: &restored.ID})
	require.NoError(t, err)
	assert.Len(t, replayed, 2)
}

func TestSQLiteLedgerEventOutbox(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acc := createAccount(t, repo, 0)
	w, err := repo.PostEntry(ctx, ledgerEntry(acc.ID, core.EntryExpense, 250))
	require.NoError(t, err)

	ev, err := repo.GetLedgerEvent(ctx, w.Events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, core.ActionPost, ev.Action)
	assert.Equal(t, int64(-250), ev.Delta.Cents)
	assert.Nil(t, ev.MirroredAt)

	pending, err := repo.PendingLedgerEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	for _, n := range []int{0, -1} {
		none, err := repo.PendingLedgerEvents(ctx, n)
		require.NoError(t, err)
		assert.Empty(t, none, "limit %d", n)
	}

	require.NoError(t, repo.MarkLedgerEventMirrored(ctx, ev.ID))
	pending, err = repo.PendingLedgerEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.ErrorIs(t, repo.MarkLedgerEventMirrored(ctx, 1234), core.ErrNotFound)
}
