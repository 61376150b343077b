package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pmanager/internal/core"
)

const accountColumns = `id, account_name, account_number, bank_name, account_type, currency, balance_cents,
	opening_balance_cents, description, exchange_name, wallet_address, network, is_active, version, created_at, updated_at`

func scanAccount(s rowScanner) (core.Account, error) {
	var (
		a                            core.Account
		number, bank, desc, exchange sql.NullString
		wallet, network              sql.NullString
		typ                          string
		active                       int
		created, updated             string
	)
	err := s.Scan(&a.ID, &a.Name, &number, &bank, &typ, &a.Currency, &a.Balance.Cents, &a.OpeningBalance.Cents,
		&desc, &exchange, &wallet, &network, &active, &a.Version, &created, &updated)
	if err != nil {
		return a, err
	}
	if a.CreatedAt, a.UpdatedAt, err = parseTimes(created, updated); err != nil {
		return a, err
	}
	a.Number = stringPtr(number)
	a.BankName = stringPtr(bank)
	a.Type = core.AccountType(typ)
	a.Description = stringPtr(desc)
	a.ExchangeName = stringPtr(exchange)
	a.WalletAddress = stringPtr(wallet)
	a.Network = stringPtr(network)
	a.IsActive = active != 0
	return a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, f core.AccountFilter) ([]core.Account, error) {
	var (
		where []string
		args  []any
	)
	if f.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, boolInt(*f.IsActive))
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM company_accounts"+whereClause(where)+" ORDER BY account_name ASC, id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return getAccount(ctx, r.db, id)
}

func getAccount(ctx context.Context, q queryRower, id int64) (core.Account, error) {
	a, err := scanAccount(q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM company_accounts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return a, notFound("account", id)
	}
	if err != nil {
		return a, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return a, err
	}
	var out core.Account
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = r.insertAccount(ctx, tx, a, r.now())
		return err
	})
	return out, err
}

// insertAccount stores a with its balance set to the opening balance.
func (r *SQLiteRepository) insertAccount(ctx context.Context, tx *sql.Tx, a core.Account, now time.Time) (core.Account, error) {
	a.Balance = a.OpeningBalance
	a.Version = 1
	a.CreatedAt, a.UpdatedAt = now, now
	res, err := tx.ExecContext(ctx,
		`INSERT INTO company_accounts (account_name, account_number, bank_name, account_type, currency, balance_cents,
		 opening_balance_cents, description, exchange_name, wallet_address, network, is_active, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, nullString(a.Number), nullString(a.BankName), string(a.Type), a.Currency, a.Balance.Cents,
		a.OpeningBalance.Cents, nullString(a.Description), nullString(a.ExchangeName), nullString(a.WalletAddress),
		nullString(a.Network), boolInt(a.IsActive), a.Version, formatTime(now), formatTime(now))
	if err != nil {
		return a, fmt.Errorf("create account: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return a, fmt.Errorf("account id: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, id int64, p core.AccountPatch) (core.Account, error) {
	if p.IsEmpty() {
		return core.Account{}, core.ErrNoFields
	}
	if err := p.Check(); err != nil {
		return core.Account{}, err
	}
	var out core.Account
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		a, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		p.ApplyTo(&a)
		if err := a.Validate(); err != nil {
			return err
		}
		a.UpdatedAt = r.now()
		a.Version++
		_, err = tx.ExecContext(ctx,
			`UPDATE company_accounts SET account_name = ?, account_number = ?, bank_name = ?, account_type = ?,
			 currency = ?, description = ?, exchange_name = ?, wallet_address = ?, network = ?, is_active = ?,
			 version = version + 1, updated_at = ? WHERE id = ?`,
			a.Name, nullString(a.Number), nullString(a.BankName), string(a.Type), a.Currency,
			nullString(a.Description), nullString(a.ExchangeName), nullString(a.WalletAddress),
			nullString(a.Network), boolInt(a.IsActive), formatTime(a.UpdatedAt), id)
		if err != nil {
			return fmt.Errorf("update account %d: %w", id, err)
		}
		out = a
		return nil
	})
	return out, err
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM company_transactions WHERE account_id = ?", id); err != nil {
			return fmt.Errorf("delete entries of account %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM company_accounts WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete account %d: %w", id, err)
		}
		return rowsAffectedOr(res, notFound("account", id))
	})
}

const entryColumns = `id, account_id, type, amount_cents, category, date, description, payment_method,
	reference_number, project_id, vendor_customer, created_at, updated_at`

func scanEntry(s rowScanner) (core.LedgerEntry, error) {
	var (
		e                         core.LedgerEntry
		kind, date                string
		desc, method, ref, vendor sql.NullString
		projectID                 sql.NullInt64
		created, updated          string
	)
	err := s.Scan(&e.ID, &e.AccountID, &kind, &e.Amount.Cents, &e.Category, &date, &desc, &method, &ref,
		&projectID, &vendor, &created, &updated)
	if err != nil {
		return e, err
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return e, err
	}
	if e.CreatedAt, e.UpdatedAt, err = parseTimes(created, updated); err != nil {
		return e, err
	}
	e.Kind = core.EntryKind(kind)
	e.Description = stringPtr(desc)
	e.PaymentMethod = stringPtr(method)
	e.ReferenceNumber = stringPtr(ref)
	e.ProjectID = int64Ptr(projectID)
	e.VendorCustomer = stringPtr(vendor)
	return e, nil
}

func (r *SQLiteRepository) ListEntries(ctx context.Context, f core.EntryFilter) ([]core.LedgerEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != nil {
		where = append(where, "account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.Kind != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Kind))
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
	q := "SELECT " + entryColumns + " FROM company_transactions" + whereClause(where) +
		" ORDER BY date DESC, created_at DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []core.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.LedgerEntry, error) {
	return getEntry(ctx, r.db, id)
}

func getEntry(ctx context.Context, q queryRower, id int64) (core.LedgerEntry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM company_transactions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return e, notFound("entry", id)
	}
	if err != nil {
		return e, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

func requireAccount(ctx context.Context, tx *sql.Tx, id int64) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM company_accounts WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("account", id)
	}
	if err != nil {
		return fmt.Errorf("check account %d: %w", id, err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e core.LedgerEntry) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO company_transactions (account_id, type, amount_cents, category, date, description, payment_method,
		 reference_number, project_id, vendor_customer, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AccountID, string(e.Kind), e.Amount.Cents, e.Category, e.Date.String(), nullString(e.Description),
		nullString(e.PaymentMethod), nullString(e.ReferenceNumber), nullInt(e.ProjectID), nullString(e.VendorCustomer),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return 0, classify(err, "insert entry")
	}
	return res.LastInsertId()
}

// applyDeltas moves the balances of the touched accounts and records one
// ledger event per account. It must run inside the transaction that wrote
// the entry.
func applyDeltas(ctx context.Context, tx *sql.Tx, action core.LedgerAction, entry core.LedgerEntry, deltas []core.AccountDelta, now time.Time) ([]core.LedgerEvent, error) {
	events := make([]core.LedgerEvent, 0, len(deltas))
	for _, d := range deltas {
		var balance int64
		err := tx.QueryRowContext(ctx,
			`UPDATE company_accounts SET balance_cents = balance_cents + ?, version = version + 1, updated_at = ?
			 WHERE id = ? RETURNING balance_cents`,
			d.Cents, formatTime(now), d.AccountID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("account", d.AccountID)
		}
		if err != nil {
			return nil, fmt.Errorf("adjust balance of account %d: %w", d.AccountID, err)
		}

		ev := core.NewLedgerEvent(action, entry, d, balance, now)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_events (entry_id, account_id, action, type, amount_cents, delta_cents,
			 balance_after_cents, category, entry_date, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.EntryID, ev.AccountID, string(ev.Action), string(ev.Kind), ev.Amount.Cents, ev.Delta.Cents,
			ev.BalanceAfter.Cents, ev.Category, ev.EntryDate.String(), formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("record ledger event: %w", err)
		}
		if ev.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("ledger event id: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// PostEntry inserts the entry and applies its effect to the account in one
// transaction.
func (r *SQLiteRepository) PostEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerWrite, error) {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return core.LedgerWrite{}, err
	}
	var out core.LedgerWrite
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireAccount(ctx, tx, e.AccountID); err != nil {
			return err
		}
		now := r.now()
		e.CreatedAt, e.UpdatedAt = now, now
		id, err := insertEntry(ctx, tx, e)
		if err != nil {
			return err
		}
		e.ID = id
		events, err := applyDeltas(ctx, tx, core.ActionPost, e, core.BalanceDeltas(nil, &e), now)
		if err != nil {
			return err
		}
		out = core.LedgerWrite{Entry: e, Events: events}
		return nil
	})
	return out, err
}

// AmendEntry rewrites the entry, reversing its old effect and applying the
// new one. When the account changes both accounts move in the same
// transaction.
func (r *SQLiteRepository) AmendEntry(ctx context.Context, id int64, p core.EntryPatch) (core.LedgerWrite, error) {
	if p.IsEmpty() {
		return core.LedgerWrite{}, core.ErrNoFields
	}
	var out core.LedgerWrite
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		before, err := getEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		after := before
		p.ApplyTo(&after)
		if err := after.Validate(); err != nil {
			return err
		}
		if after.AccountID != before.AccountID {
			if err := requireAccount(ctx, tx, after.AccountID); err != nil {
				return err
			}
		}
		now := r.now()
		after.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE company_transactions SET account_id = ?, type = ?, amount_cents = ?, category = ?, date = ?,
			 description = ?, payment_method = ?, reference_number = ?, project_id = ?, vendor_customer = ?,
			 updated_at = ? WHERE id = ?`,
			after.AccountID, string(after.Kind), after.Amount.Cents, after.Category, after.Date.String(),
			nullString(after.Description), nullString(after.PaymentMethod), nullString(after.ReferenceNumber),
			nullInt(after.ProjectID), nullString(after.VendorCustomer), formatTime(now), id)
		if err != nil {
			return classify(err, "update entry")
		}
		events, err := applyDeltas(ctx, tx, core.ActionAmend, after, core.BalanceDeltas(&before, &after), now)
		if err != nil {
			return err
		}
		out = core.LedgerWrite{Entry: after, Events: events}
		return nil
	})
	return out, err
}

// VoidEntry deletes the entry and reverses its effect in one transaction.
func (r *SQLiteRepository) VoidEntry(ctx context.Context, id int64) (core.LedgerWrite, error) {
	var out core.LedgerWrite
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		before, err := getEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM company_transactions WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete entry %d: %w", id, err)
		}
		events, err := applyDeltas(ctx, tx, core.ActionVoid, before, core.BalanceDeltas(&before, nil), r.now())
		if err != nil {
			return err
		}
		out = core.LedgerWrite{Entry: before, Events: events}
		return nil
	})
	return out, err
}

func (r *SQLiteRepository) RestoreLedger(ctx context.Context, s core.LedgerSnapshot) (core.Account, []core.LedgerEvent, error) {
	if err := s.Validate(); err != nil {
		return core.Account{}, nil, err
	}
	var (
		account core.Account
		events  []core.LedgerEvent
	)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := r.now()
		a := s.Account
		a.Normalize()
		created, err := r.insertAccount(ctx, tx, a, now)
		if err != nil {
			return err
		}
		for _, e := range s.Transactions {
			e.AccountID = created.ID
			e.Normalize()
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			e.UpdatedAt = now
			if e.ID, err = insertEntry(ctx, tx, e); err != nil {
				return err
			}
			evs, err := applyDeltas(ctx, tx, core.ActionRestore, e, core.BalanceDeltas(nil, &e), now)
			if err != nil {
				return err
			}
			events = append(events, evs...)
		}
		account, err = getAccount(ctx, tx, created.ID)
		return err
	})
	if err != nil {
		return core.Account{}, nil, err
	}
	return account, events, nil
}

const eventColumns = `id, entry_id, account_id, action, type, amount_cents, delta_cents, balance_after_cents,
	category, entry_date, created_at, mirrored_at`

func scanEvent(s rowScanner) (core.LedgerEvent, error) {
	var (
		ev                          core.LedgerEvent
		action, kind, date, created string
		mirrored                    sql.NullString
	)
	err := s.Scan(&ev.ID, &ev.EntryID, &ev.AccountID, &action, &kind, &ev.Amount.Cents, &ev.Delta.Cents,
		&ev.BalanceAfter.Cents, &ev.Category, &date, &created, &mirrored)
	if err != nil {
		return ev, err
	}
	if ev.EntryDate, err = core.ParseDate(date); err != nil {
		return ev, err
	}
	if ev.CreatedAt, err = parseTime(created); err != nil {
		return ev, err
	}
	if mirrored.Valid {
		t, err := parseTime(mirrored.String)
		if err != nil {
			return ev, err
		}
		ev.MirroredAt = &t
	}
	ev.Action = core.LedgerAction(action)
	ev.Kind = core.EntryKind(kind)
	return ev, nil
}

func (r *SQLiteRepository) GetLedgerEvent(ctx context.Context, id int64) (core.LedgerEvent, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM ledger_events WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return ev, notFound("ledger event", id)
	}
	if err != nil {
		return ev, fmt.Errorf("get ledger event %d: %w", id, err)
	}
	return ev, nil
}

// PendingLedgerEvents returns up to limit unmirrored events, oldest first. A
// non-positive limit returns none.
func (r *SQLiteRepository) PendingLedgerEvents(ctx context.Context, limit int) ([]core.LedgerEvent, error) {
	if limit <= 0 {
		return []core.LedgerEvent{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM ledger_events WHERE mirrored_at IS NULL ORDER BY id ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("pending ledger events: %w", err)
	}
	defer rows.Close()

	events := []core.LedgerEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *SQLiteRepository) MarkLedgerEventMirrored(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE ledger_events SET mirrored_at = COALESCE(mirrored_at, ?) WHERE id = ?", formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("mark ledger event %d mirrored: %w", id, err)
	}
	return rowsAffectedOr(res, notFound("ledger event", id))
}

func (r *SQLiteRepository) SnapshotLedger(ctx context.Context, accountID int64) (core.LedgerSnapshot, error) {
	var snap core.LedgerSnapshot
	err := r.withReadTx(ctx, func(tx *sql.Tx) error {
		a, err := getAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			"SELECT "+entryColumns+" FROM company_transactions WHERE account_id = ? ORDER BY date ASC, created_at ASC, id ASC", accountID)
		if err != nil {
			return fmt.Errorf("list entries of account %d: %w", accountID, err)
		}
		defer rows.Close()
		entries := []core.LedgerEntry{}
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return fmt.Errorf("scan entry: %w", err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		snap = core.LedgerSnapshot{Account: a, Transactions: entries, ExportedAt: r.now()}
		return nil
	})
	return snap, err
}
