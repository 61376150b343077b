package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pmanager/internal/core"
)

const transactionColumns = `id, type, amount_cents, category, date, memo, payment_method, project_id, created_at, updated_at`

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                core.Transaction
		typ, date        string
		memo, method     sql.NullString
		projectID        sql.NullInt64
		created, updated string
	)
	if err := s.Scan(&t.ID, &typ, &t.Amount.Cents, &t.Category, &date, &memo, &method, &projectID, &created, &updated); err != nil {
		return t, err
	}
	var err error
	if t.Date, err = core.ParseDate(date); err != nil {
		return t, err
	}
	if t.CreatedAt, t.UpdatedAt, err = parseTimes(created, updated); err != nil {
		return t, err
	}
	t.Type = core.TxType(typ)
	t.Memo = stringPtr(memo)
	t.PaymentMethod = stringPtr(method)
	t.ProjectID = int64Ptr(projectID)
	return t, nil
}

func transactionWhere(f core.TransactionFilter) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.ProjectID != nil {
		where = append(where, "project_id = ?")
		args = append(args, *f.ProjectID)
	}
	return where, args
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	where, args := transactionWhere(f)
	q := "SELECT " + transactionColumns + " FROM transactions" + whereClause(where) +
		" ORDER BY date DESC, created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, notFound("transaction", id)
	}
	if err != nil {
		return t, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, err
	}
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (type, amount_cents, category, date, memo, payment_method, project_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type), t.Amount.Cents, t.Category, t.Date.String(), nullString(t.Memo),
		nullString(t.PaymentMethod), nullInt(t.ProjectID), formatTime(now), formatTime(now))
	if err != nil {
		return t, classify(err, "create transaction")
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return t, fmt.Errorf("transaction id: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id int64, p core.TransactionPatch) (core.Transaction, error) {
	if p.IsEmpty() {
		return core.Transaction{}, core.ErrNoFields
	}
	var out core.Transaction
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		t, err := scanTransaction(tx.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("transaction", id)
		}
		if err != nil {
			return fmt.Errorf("load transaction %d: %w", id, err)
		}
		p.ApplyTo(&t)
		if err := t.Validate(); err != nil {
			return err
		}
		t.UpdatedAt = r.now()
		_, err = tx.ExecContext(ctx,
			`UPDATE transactions SET type = ?, amount_cents = ?, category = ?, date = ?, memo = ?,
			 payment_method = ?, project_id = ?, updated_at = ? WHERE id = ?`,
			string(t.Type), t.Amount.Cents, t.Category, t.Date.String(), nullString(t.Memo),
			nullString(t.PaymentMethod), nullInt(t.ProjectID), formatTime(t.UpdatedAt), id)
		if err != nil {
			return classify(err, "update transaction")
		}
		out = t
		return nil
	})
	return out, err
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return rowsAffectedOr(res, notFound("transaction", id))
}

const budgetColumns = `id, category, amount_cents, month, year, created_at, updated_at`

func scanBudget(s rowScanner) (core.Budget, error) {
	var (
		b                core.Budget
		created, updated string
	)
	if err := s.Scan(&b.ID, &b.Category, &b.Amount.Cents, &b.Month, &b.Year, &created, &updated); err != nil {
		return b, err
	}
	var err error
	b.CreatedAt, b.UpdatedAt, err = parseTimes(created, updated)
	return b, err
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, f core.BudgetFilter) ([]core.Budget, error) {
	var (
		where []string
		args  []any
	)
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		where = append(where, "month = ?")
		args = append(args, f.Month)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+budgetColumns+" FROM budgets"+whereClause(where)+" ORDER BY year DESC, month DESC, category ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, notFound("budget", id)
	}
	if err != nil {
		return b, fmt.Errorf("get budget %d: %w", id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Normalize()
	if err := b.Validate(); err != nil {
		return b, err
	}
	now := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (category, amount_cents, month, year, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.Category, b.Amount.Cents, b.Month, b.Year, formatTime(now), formatTime(now))
	if err != nil {
		return b, classify(err, "create budget")
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return b, fmt.Errorf("budget id: %w", err)
	}
	b.CreatedAt, b.UpdatedAt = now, now
	return b, nil
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, id int64, p core.BudgetPatch) (core.Budget, error) {
	if p.IsEmpty() {
		return core.Budget{}, core.ErrNoFields
	}
	var out core.Budget
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		b, err := scanBudget(tx.QueryRowContext(ctx, "SELECT "+budgetColumns+" FROM budgets WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("budget", id)
		}
		if err != nil {
			return fmt.Errorf("load budget %d: %w", id, err)
		}
		p.ApplyTo(&b)
		if err := b.Validate(); err != nil {
			return err
		}
		b.UpdatedAt = r.now()
		_, err = tx.ExecContext(ctx,
			`UPDATE budgets SET category = ?, amount_cents = ?, month = ?, year = ?, updated_at = ? WHERE id = ?`,
			b.Category, b.Amount.Cents, b.Month, b.Year, formatTime(b.UpdatedAt), id)
		if err != nil {
			return classify(err, "update budget")
		}
		out = b
		return nil
	})
	return out, err
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM budgets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	return rowsAffectedOr(res, notFound("budget", id))
}
