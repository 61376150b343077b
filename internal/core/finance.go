package core

import "time"

// TxType classifies a personal transaction.
type TxType string

const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
)

// Transaction is a personal income or expense record.
type Transaction struct {
	ID            int64     `json:"id"`
	Type          TxType    `json:"type" validate:"required,oneof=income expense"`
	Amount        Money     `json:"amount"`
	Category      string    `json:"category" validate:"required,max=100"`
	Date          Date      `json:"date"`
	Memo          *string   `json:"memo"`
	PaymentMethod *string   `json:"payment_method"`
	ProjectID     *int64    `json:"project_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (t *Transaction) Normalize() {
	t.Category = trimmed(t.Category)
}

func (t Transaction) Validate() error {
	verr := &ValidationError{}
	checkStruct(t, verr)
	checkAmount("amount", t.Amount, verr)
	checkDate("date", t.Date, verr)
	return verr.OrNil()
}

type TransactionPatch struct {
	Type          *TxType          `json:"type"`
	Amount        *Money           `json:"amount"`
	Category      *string          `json:"category"`
	Date          *Date            `json:"date"`
	Memo          Nullable[string] `json:"memo"`
	PaymentMethod Nullable[string] `json:"payment_method"`
	ProjectID     Nullable[int64]  `json:"project_id"`
}

func (p TransactionPatch) IsEmpty() bool {
	return p.Type == nil && p.Amount == nil && p.Category == nil && p.Date == nil &&
		!p.Memo.Set && !p.PaymentMethod.Set && !p.ProjectID.Set
}

func (p TransactionPatch) ApplyTo(t *Transaction) {
	setIf(&t.Type, p.Type)
	setIf(&t.Amount, p.Amount)
	setIf(&t.Category, p.Category)
	setIf(&t.Date, p.Date)
	p.Memo.applyTo(&t.Memo)
	p.PaymentMethod.applyTo(&t.PaymentMethod)
	p.ProjectID.applyTo(&t.ProjectID)
	t.Normalize()
}

// TransactionFilter narrows a transaction listing. Zero values mean "any".
type TransactionFilter struct {
	Type      TxType
	Category  string
	From      Date
	To        Date
	ProjectID *int64
	Limit     int
}

func (f TransactionFilter) Match(t Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && f.To.Before(t.Date) {
		return false
	}
	return f.ProjectID == nil || (t.ProjectID != nil && *t.ProjectID == *f.ProjectID)
}

// Budget caps spending for one category in one month.
type Budget struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category" validate:"required,max=100"`
	Amount    Money     `json:"amount"`
	Month     int       `json:"month" validate:"gte=1,lte=12"`
	Year      int       `json:"year" validate:"gte=1970,lte=9999"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Budget) Normalize() {
	b.Category = trimmed(b.Category)
}

func (b Budget) Validate() error {
	verr := &ValidationError{}
	checkStruct(b, verr)
	checkAmount("amount", b.Amount, verr)
	return verr.OrNil()
}

// Period is the month the budget applies to.
func (b Budget) Period() YearMonth { return YearMonth{Year: b.Year, Month: b.Month} }

// BudgetStatus is a budget with the month's spending in its category.
type BudgetStatus struct {
	Budget
	Spent     Money `json:"spent"`
	Remaining Money `json:"remaining"`
}

type BudgetPatch struct {
	Category *string `json:"category"`
	Amount   *Money  `json:"amount"`
	Month    *int    `json:"month"`
	Year     *int    `json:"year"`
}

func (p BudgetPatch) IsEmpty() bool {
	return p.Category == nil && p.Amount == nil && p.Month == nil && p.Year == nil
}

func (p BudgetPatch) ApplyTo(b *Budget) {
	setIf(&b.Category, p.Category)
	setIf(&b.Amount, p.Amount)
	setIf(&b.Month, p.Month)
	setIf(&b.Year, p.Year)
	b.Normalize()
}

type BudgetFilter struct {
	Year  int
	Month int
}

func (f BudgetFilter) Match(b Budget) bool {
	return (f.Year == 0 || b.Year == f.Year) && (f.Month == 0 || b.Month == f.Month)
}
