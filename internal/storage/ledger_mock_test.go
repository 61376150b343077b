package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmanager/internal/core"
)

func newMockRepo(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewSQLiteRepositoryFromDB(db)
	repo.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestPostEntryRollsBackWhenBalanceUpdateFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM company_accounts WHERE id = ?")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO company_transactions")).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE company_accounts SET balance_cents = balance_cents + ?")).
		WithArgs(int64(10000), sqlmock.AnyArg(), int64(1)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := repo.PostEntry(context.Background(), ledgerEntry(1, core.EntryIncome, 10000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjust balance of account 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostEntryRollsBackWhenEventInsertFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM company_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO company_transactions")).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE company_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"balance_cents"}).AddRow(60000))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_events")).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err := repo.PostEntry(context.Background(), ledgerEntry(1, core.EntryIncome, 10000))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostEntryCommits(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM company_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO company_transactions")).
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE company_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"balance_cents"}).AddRow(46000))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_events")).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	w, err := repo.PostEntry(context.Background(), ledgerEntry(1, core.EntryExpense, 4000))
	require.NoError(t, err)
	assert.Equal(t, int64(10), w.Entry.ID)
	require.Len(t, w.Events, 1)
	assert.Equal(t, int64(3), w.Events[0].ID)
	assert.Equal(t, int64(-4000), w.Events[0].Delta.Cents)
	assert.Equal(t, int64(46000), w.Events[0].BalanceAfter.Cents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoidEntryRollsBackWhenAccountIsGone(t *testing.T) {
	repo, mock := newMockRepo(t)

	cols := []string{"id", "account_id", "type", "amount_cents", "category", "date", "description", "payment_method",
		"reference_number", "project_id", "vendor_customer", "created_at", "updated_at"}
	ts := "2024-06-01T10:00:00Z"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM company_transactions WHERE id = ?")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(5, 2, "income", 10000, "sales", "2024-06-01", nil, nil, nil, nil, nil, ts, ts))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM company_transactions WHERE id = ?")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE company_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"balance_cents"}))
	mock.ExpectRollback()

	_, err := repo.VoidEntry(context.Background(), 5)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginFailureIsReported(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	_, err := repo.VoidEntry(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}
