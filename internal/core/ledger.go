package core

import (
	"sort"
	"time"
)

type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountInvestment AccountType = "investment"
	AccountCrypto     AccountType = "crypto"
	AccountOther      AccountType = "other"
)

// DefaultCurrency is applied to accounts created without one.
const DefaultCurrency = "USD"

// Account is a company bank, exchange or wallet account. Balance is a cached
// running total kept equal to OpeningBalance plus the effect of every live
// ledger entry on the account; only ledger writes change it.
type Account struct {
	ID             int64       `json:"id"`
	Name           string      `json:"account_name" validate:"required,max=200"`
	Number         *string     `json:"account_number"`
	BankName       *string     `json:"bank_name"`
	Type           AccountType `json:"account_type" validate:"oneof=checking savings investment crypto other"`
	Currency       string      `json:"currency" validate:"required,max=10"`
	Balance        Money       `json:"balance"`
	OpeningBalance Money       `json:"opening_balance"`
	Description    *string     `json:"description"`
	ExchangeName   *string     `json:"exchange_name"`
	WalletAddress  *string     `json:"wallet_address"`
	Network        *string     `json:"network"`
	IsActive       bool        `json:"is_active"`
	Version        int64       `json:"version"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (a *Account) Normalize() {
	a.Name = trimmed(a.Name)
	a.Currency = trimmed(a.Currency)
	if a.Currency == "" {
		a.Currency = DefaultCurrency
	}
	if a.Type == "" {
		a.Type = AccountChecking
	}
}

func (a Account) Validate() error {
	verr := &ValidationError{}
	checkStruct(a, verr)
	return verr.OrNil()
}

// AccountPatch lists the account fields that may change after creation.
// Balance is present only so that an attempt to set it can be rejected.
type AccountPatch struct {
	Name          *string          `json:"account_name"`
	Number        Nullable[string] `json:"account_number"`
	BankName      Nullable[string] `json:"bank_name"`
	Type          *AccountType     `json:"account_type"`
	Currency      *string          `json:"currency"`
	Description   Nullable[string] `json:"description"`
	ExchangeName  Nullable[string] `json:"exchange_name"`
	WalletAddress Nullable[string] `json:"wallet_address"`
	Network       Nullable[string] `json:"network"`
	IsActive      *bool            `json:"is_active"`
	Balance       *Money           `json:"balance"`
}

func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && !p.Number.Set && !p.BankName.Set && p.Type == nil &&
		p.Currency == nil && !p.Description.Set && !p.ExchangeName.Set &&
		!p.WalletAddress.Set && !p.Network.Set && p.IsActive == nil && p.Balance == nil
}

// Check rejects fields that are not writable through an update.
func (p AccountPatch) Check() error {
	if p.Balance != nil {
		return NewValidationError("balance", "is read-only; post a ledger entry instead")
	}
	return nil
}

func (p AccountPatch) ApplyTo(a *Account) {
	setIf(&a.Name, p.Name)
	p.Number.applyTo(&a.Number)
	p.BankName.applyTo(&a.BankName)
	setIf(&a.Type, p.Type)
	setIf(&a.Currency, p.Currency)
	p.Description.applyTo(&a.Description)
	p.ExchangeName.applyTo(&a.ExchangeName)
	p.WalletAddress.applyTo(&a.WalletAddress)
	p.Network.applyTo(&a.Network)
	setIf(&a.IsActive, p.IsActive)
	a.Normalize()
}

type AccountFilter struct {
	IsActive *bool
}

func (f AccountFilter) Match(a Account) bool {
	return f.IsActive == nil || a.IsActive == *f.IsActive
}

// EntryKind determines the sign of a ledger entry's effect on its account.
type EntryKind string

const (
	EntryIncome   EntryKind = "income"
	EntryExpense  EntryKind = "expense"
	EntryTransfer EntryKind = "transfer"
)

// Effect returns the signed change in cents that an entry of this kind and
// amount applies to its account. Transfers carry no balance effect.
func (k EntryKind) Effect(amount Money) int64 {
	switch k {
	case EntryIncome:
		return amount.Cents
	case EntryExpense:
		return -amount.Cents
	default:
		return 0
	}
}

// LedgerEntry is a company transaction posted against exactly one account.
type LedgerEntry struct {
	ID              int64     `json:"id"`
	AccountID       int64     `json:"account_id" validate:"required,gt=0"`
	Kind            EntryKind `json:"type" validate:"required,oneof=income expense transfer"`
	Amount          Money     `json:"amount"`
	Category        string    `json:"category" validate:"required,max=100"`
	Date            Date      `json:"date"`
	Description     *string   `json:"description"`
	PaymentMethod   *string   `json:"payment_method"`
	ReferenceNumber *string   `json:"reference_number"`
	ProjectID       *int64    `json:"project_id"`
	VendorCustomer  *string   `json:"vendor_customer"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (e *LedgerEntry) Normalize() { e.Category = trimmed(e.Category) }

func (e LedgerEntry) Validate() error {
	verr := &ValidationError{}
	checkStruct(e, verr)
	checkAmount("amount", e.Amount, verr)
	checkDate("date", e.Date, verr)
	return verr.OrNil()
}

// Effect is the entry's signed contribution to its account balance.
func (e LedgerEntry) Effect() int64 { return e.Kind.Effect(e.Amount) }

type EntryPatch struct {
	AccountID       *int64           `json:"account_id"`
	Kind            *EntryKind       `json:"type"`
	Amount          *Money           `json:"amount"`
	Category        *string          `json:"category"`
	Date            *Date            `json:"date"`
	Description     Nullable[string] `json:"description"`
	PaymentMethod   Nullable[string] `json:"payment_method"`
	ReferenceNumber Nullable[string] `json:"reference_number"`
	ProjectID       Nullable[int64]  `json:"project_id"`
	VendorCustomer  Nullable[string] `json:"vendor_customer"`
}

func (p EntryPatch) IsEmpty() bool {
	return p.AccountID == nil && p.Kind == nil && p.Amount == nil && p.Category == nil &&
		p.Date == nil && !p.Description.Set && !p.PaymentMethod.Set &&
		!p.ReferenceNumber.Set && !p.ProjectID.Set && !p.VendorCustomer.Set
}

func (p EntryPatch) ApplyTo(e *LedgerEntry) {
	setIf(&e.AccountID, p.AccountID)
	setIf(&e.Kind, p.Kind)
	setIf(&e.Amount, p.Amount)
	setIf(&e.Category, p.Category)
	setIf(&e.Date, p.Date)
	p.Description.applyTo(&e.Description)
	p.PaymentMethod.applyTo(&e.PaymentMethod)
	p.ReferenceNumber.applyTo(&e.ReferenceNumber)
	p.ProjectID.applyTo(&e.ProjectID)
	p.VendorCustomer.applyTo(&e.VendorCustomer)
	e.Normalize()
}

type EntryFilter struct {
	AccountID *int64
	Kind      EntryKind
	Category  string
	From      Date
	To        Date
	ProjectID *int64
	Limit     int
}

func (f EntryFilter) Match(e LedgerEntry) bool {
	if f.AccountID != nil && e.AccountID != *f.AccountID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && f.To.Before(e.Date) {
		return false
	}
	return f.ProjectID == nil || (e.ProjectID != nil && *e.ProjectID == *f.ProjectID)
}

// AccountDelta is a balance change to apply to one account.
type AccountDelta struct {
	AccountID int64
	Cents     int64
}

// BalanceDeltas computes the per-account balance changes for replacing
// before with after. A nil before is a post, a nil after is a void. When an
// amendment moves the entry to another account both accounts are returned:
// the old one loses the old effect and the new one gains the new effect.
// The result is ordered by account id.
func BalanceDeltas(before, after *LedgerEntry) []AccountDelta {
	byAccount := make(map[int64]int64, 2)
	if before != nil {
		byAccount[before.AccountID] -= before.Effect()
	}
	if after != nil {
		byAccount[after.AccountID] += after.Effect()
	}
	out := make([]AccountDelta, 0, len(byAccount))
	for id, cents := range byAccount {
		out = append(out, AccountDelta{AccountID: id, Cents: cents})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

type LedgerAction string

const (
	ActionPost    LedgerAction = "post"
	ActionAmend   LedgerAction = "amend"
	ActionVoid    LedgerAction = "void"
	ActionRestore LedgerAction = "restore"
)

// LedgerEvent records one balance change on one account, written in the same
// store transaction as the change itself. The mirror worker copies events to
// the external journal and stamps MirroredAt.
type LedgerEvent struct {
	ID           int64        `json:"id"`
	EntryID      int64        `json:"entry_id"`
	AccountID    int64        `json:"account_id"`
	Action       LedgerAction `json:"action"`
	Kind         EntryKind    `json:"type"`
	Amount       Money        `json:"amount"`
	Delta        Money        `json:"delta"`
	BalanceAfter Money        `json:"balance_after"`
	Category     string       `json:"category"`
	EntryDate    Date         `json:"entry_date"`
	CreatedAt    time.Time    `json:"created_at"`
	MirroredAt   *time.Time   `json:"mirrored_at"`
}

// NewLedgerEvent describes delta applied to an account on behalf of entry.
func NewLedgerEvent(action LedgerAction, entry LedgerEntry, delta AccountDelta, balanceAfter int64, at time.Time) LedgerEvent {
	return LedgerEvent{
		EntryID:      entry.ID,
		AccountID:    delta.AccountID,
		Action:       action,
		Kind:         entry.Kind,
		Amount:       entry.Amount,
		Delta:        Cents(delta.Cents),
		BalanceAfter: Cents(balanceAfter),
		Category:     entry.Category,
		EntryDate:    entry.Date,
		CreatedAt:    at,
	}
}

// LedgerWrite is the outcome of an atomic ledger operation.
type LedgerWrite struct {
	Entry  LedgerEntry
	Events []LedgerEvent
}

// Reconciliation compares an account's cached balance with the balance
// recomputed from its live entries.
type Reconciliation struct {
	AccountID      int64 `json:"account_id"`
	OpeningBalance Money `json:"opening_balance"`
	Balance        Money `json:"balance"`
	Computed       Money `json:"computed_balance"`
	Entries        int   `json:"entries"`
	Consistent     bool  `json:"consistent"`
}

// Reconcile folds entries over the account's opening balance.
func Reconcile(a Account, entries []LedgerEntry) Reconciliation {
	computed := a.OpeningBalance.Cents
	for _, e := range entries {
		computed += e.Effect()
	}
	return Reconciliation{
		AccountID:      a.ID,
		OpeningBalance: a.OpeningBalance,
		Balance:        a.Balance,
		Computed:       Cents(computed),
		Entries:        len(entries),
		Consistent:     computed == a.Balance.Cents,
	}
}

// LedgerSnapshot is the portable form of one account and its entries.
type LedgerSnapshot struct {
	Account      Account       `json:"account"`
	Transactions []LedgerEntry `json:"transactions"`
	ExportedAt   time.Time     `json:"exported_at"`
}

// Validate checks the snapshot can be restored. Entry account ids are
// ignored since a restore assigns a new account.
func (s LedgerSnapshot) Validate() error {
	verr := &ValidationError{}
	acc := s.Account
	acc.Normalize()
	if err := acc.Validate(); err != nil {
		var inner *ValidationError
		if asValidation(err, &inner) {
			for k, v := range inner.Fields {
				verr.Add("account."+k, v)
			}
		}
	}
	for i, e := range s.Transactions {
		e.AccountID = 1
		e.Normalize()
		if err := e.Validate(); err != nil {
			var inner *ValidationError
			if asValidation(err, &inner) {
				for k, v := range inner.Fields {
					verr.Add(entryField(i, k), v)
				}
			}
		}
	}
	return verr.OrNil()
}
