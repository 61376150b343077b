package core

// CategoryAmount is an amount aggregated by category and type.
type CategoryAmount struct {
	Category   string  `json:"category"`
	Type       string  `json:"type"`
	Amount     Money   `json:"amount"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MonthSummary is income and expense for one calendar month.
type MonthSummary struct {
	YearMonth
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Net     Money `json:"net"`
	Count   int   `json:"count"`
}

// Add folds one signed movement into the summary.
func (s *MonthSummary) Add(income bool, amount Money) {
	if income {
		s.Income = s.Income.Add(amount)
	} else {
		s.Expense = s.Expense.Add(amount)
	}
	s.Net = s.Income.Sub(s.Expense)
	s.Count++
}

// MonthlyStats compares a month of personal transactions with the month before.
type MonthlyStats struct {
	Current  MonthSummary `json:"current"`
	Previous MonthSummary `json:"previous"`
}

// TodayStats summarises the tasks due on or before a day.
type TodayStats struct {
	Date       Date   `json:"date"`
	Total      int    `json:"total"`
	Todo       int    `json:"todo"`
	InProgress int    `json:"in_progress"`
	Completed  int    `json:"completed"`
	Overdue    int    `json:"overdue"`
	Tasks      []Task `json:"tasks"`
}

// Dashboard is the personal overview.
type Dashboard struct {
	Today              TodayStats    `json:"today"`
	Month              MonthSummary  `json:"month"`
	ActiveProjects     int           `json:"active_projects"`
	RecentTransactions []Transaction `json:"recent_transactions"`
}

// AccountBalance is the balance line of an active company account.
type AccountBalance struct {
	ID       int64       `json:"id"`
	Name     string      `json:"account_name"`
	Type     AccountType `json:"account_type"`
	Currency string      `json:"currency"`
	Balance  Money       `json:"balance"`
}

// CompanyMonthly compares a month of ledger activity with the month before.
type CompanyMonthly struct {
	Current      MonthSummary     `json:"current"`
	Previous     MonthSummary     `json:"previous"`
	Accounts     []AccountBalance `json:"accounts"`
	TotalBalance Money            `json:"total_balance"`
}

// YearTotals is a year of ledger activity.
type YearTotals struct {
	Year    int   `json:"year"`
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Net     Money `json:"net"`
	Count   int   `json:"count"`
}

// CompanyYearly breaks a year down by month and compares it with the year before.
type CompanyYearly struct {
	YearTotals
	Months   []MonthSummary `json:"months"`
	Previous YearTotals     `json:"previous"`
}
