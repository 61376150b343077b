package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"pmanager/internal/core"
	"pmanager/internal/storage"
)

const (
	// TrendMonths is how many months the personal trend covers.
	TrendMonths = 6
	// CompanyTrendMonths is how many months the company trend covers.
	CompanyTrendMonths = 12

	recentTransactions = 5
)

// StatsStore is the part of the store the statistics read from.
type StatsStore interface {
	storage.TaskStore
	storage.ProjectStore
	storage.TransactionStore
	storage.BudgetStore
	storage.LedgerStore
}

// StatsService computes aggregate views over tasks, personal finances and
// the company ledger. It never writes.
type StatsService struct {
	store StatsStore
	now   func() time.Time
}

func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store, now: time.Now}
}

// SetClock replaces the time source used for "today".
func (s *StatsService) SetClock(now func() time.Time) { s.now = now }

// Today returns the current date in UTC.
func (s *StatsService) Today() core.Date { return core.DateOf(s.now().UTC()) }

// TodayStats counts the tasks due on or before day.
func (s *StatsService) TodayStats(ctx context.Context, day core.Date) (core.TodayStats, error) {
	tasks, err := s.store.ListTasks(ctx, core.TaskFilter{})
	if err != nil {
		return core.TodayStats{}, fmt.Errorf("list tasks: %w", err)
	}
	st := core.TodayStats{Date: day, Tasks: []core.Task{}}
	for _, t := range tasks {
		if t.DueDate == nil || day.Before(*t.DueDate) {
			continue
		}
		st.Total++
		switch t.Status {
		case core.TaskTodo:
			st.Todo++
		case core.TaskInProgress:
			st.InProgress++
		case core.TaskCompleted:
			st.Completed++
		}
		if t.IsOverdue(day) {
			st.Overdue++
		}
		st.Tasks = append(st.Tasks, t)
	}
	return st, nil
}

// Monthly sums personal income and expense for ym and the month before it.
func (s *StatsService) Monthly(ctx context.Context, ym core.YearMonth) (core.MonthlyStats, error) {
	var out core.MonthlyStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.personalMonth(gctx, ym)
		out.Current = m
		return err
	})
	g.Go(func() error {
		m, err := s.personalMonth(gctx, ym.Prev())
		out.Previous = m
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthlyStats{}, err
	}
	return out, nil
}

// Trends returns TrendMonths personal month summaries ending with ym.
func (s *StatsService) Trends(ctx context.Context, ym core.YearMonth) ([]core.MonthSummary, error) {
	months := ym.LastMonths(TrendMonths)
	from, _ := months[0].Bounds()
	_, to := ym.Bounds()
	txs, err := s.store.ListTransactions(ctx, core.TransactionFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out, index := emptyMonths(months)
	for _, t := range txs {
		if i, ok := index[core.YearMonthOf(t.Date)]; ok {
			out[i].Add(t.Type == core.TxIncome, t.Amount)
		}
	}
	return out, nil
}

// Categories breaks down a month of personal expenses by category, largest first.
func (s *StatsService) Categories(ctx context.Context, ym core.YearMonth) ([]core.CategoryAmount, error) {
	from, to := ym.Bounds()
	txs, err := s.store.ListTransactions(ctx, core.TransactionFilter{Type: core.TxExpense, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	acc := newCategoryTotals()
	for _, t := range txs {
		acc.add(t.Category, string(t.Type), t.Amount)
	}
	return acc.result(true), nil
}

// Dashboard gathers the personal overview for day.
func (s *StatsService) Dashboard(ctx context.Context, day core.Date) (core.Dashboard, error) {
	var d core.Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := s.TodayStats(gctx, day)
		d.Today = st
		return err
	})
	g.Go(func() error {
		m, err := s.personalMonth(gctx, core.YearMonthOf(day))
		d.Month = m
		return err
	})
	g.Go(func() error {
		ps, err := s.store.ListProjects(gctx, core.ProjectFilter{Status: core.ProjectInProgress})
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		d.ActiveProjects = len(ps)
		return nil
	})
	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, core.TransactionFilter{Limit: recentTransactions})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		d.RecentTransactions = txs
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, err
	}
	return d, nil
}

// ProjectsWithRevenue lists projects with their personal income and expense
// rolled up.
func (s *StatsService) ProjectsWithRevenue(ctx context.Context, f core.ProjectFilter) ([]core.ProjectRevenue, error) {
	var (
		projects []core.Project
		txs      []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		projects, err = s.store.ListProjects(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.store.ListTransactions(gctx, core.TransactionFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("project revenue: %w", err)
	}

	byProject := make(map[int64][]core.Transaction)
	for _, t := range txs {
		if t.ProjectID != nil {
			byProject[*t.ProjectID] = append(byProject[*t.ProjectID], t)
		}
	}
	out := make([]core.ProjectRevenue, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectRevenue(p, byProject[p.ID]))
	}
	return out, nil
}

// ProjectWithRevenue is ProjectsWithRevenue for a single project.
func (s *StatsService) ProjectWithRevenue(ctx context.Context, id int64) (core.ProjectRevenue, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return core.ProjectRevenue{}, err
	}
	txs, err := s.store.ListTransactions(ctx, core.TransactionFilter{ProjectID: &id})
	if err != nil {
		return core.ProjectRevenue{}, fmt.Errorf("list transactions: %w", err)
	}
	return projectRevenue(p, txs), nil
}

func projectRevenue(p core.Project, txs []core.Transaction) core.ProjectRevenue {
	r := core.ProjectRevenue{Project: p}
	for _, t := range txs {
		if t.Type == core.TxIncome {
			r.TotalIncome = r.TotalIncome.Add(t.Amount)
		} else {
			r.TotalExpense = r.TotalExpense.Add(t.Amount)
		}
	}
	r.ActualRevenue = r.TotalIncome.Sub(r.TotalExpense)
	return r
}

// BudgetsWithSpending lists budgets with the month's expenses in their
// category.
func (s *StatsService) BudgetsWithSpending(ctx context.Context, f core.BudgetFilter) ([]core.BudgetStatus, error) {
	budgets, err := s.store.ListBudgets(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	// one expense read per distinct month
	spent := make(map[core.YearMonth]map[string]core.Money)
	for _, b := range budgets {
		if _, ok := spent[b.Period()]; ok {
			continue
		}
		byCat, err := s.expensesByCategory(ctx, b.Period())
		if err != nil {
			return nil, err
		}
		spent[b.Period()] = byCat
	}
	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, budgetStatus(b, spent[b.Period()][b.Category]))
	}
	return out, nil
}

// BudgetWithSpending is BudgetsWithSpending for a single budget.
func (s *StatsService) BudgetWithSpending(ctx context.Context, id int64) (core.BudgetStatus, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	byCat, err := s.expensesByCategory(ctx, b.Period())
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return budgetStatus(b, byCat[b.Category]), nil
}

func budgetStatus(b core.Budget, spent core.Money) core.BudgetStatus {
	return core.BudgetStatus{Budget: b, Spent: spent, Remaining: b.Amount.Sub(spent)}
}

func (s *StatsService) expensesByCategory(ctx context.Context, ym core.YearMonth) (map[string]core.Money, error) {
	from, to := ym.Bounds()
	txs, err := s.store.ListTransactions(ctx, core.TransactionFilter{Type: core.TxExpense, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make(map[string]core.Money)
	for _, t := range txs {
		out[t.Category] = out[t.Category].Add(t.Amount)
	}
	return out, nil
}

func (s *StatsService) personalMonth(ctx context.Context, ym core.YearMonth) (core.MonthSummary, error) {
	from, to := ym.Bounds()
	txs, err := s.store.ListTransactions(ctx, core.TransactionFilter{From: from, To: to})
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("list transactions %s: %w", ym, err)
	}
	m := core.MonthSummary{YearMonth: ym}
	for _, t := range txs {
		m.Add(t.Type == core.TxIncome, t.Amount)
	}
	return m, nil
}

// CompanyMonthly sums ledger income and expense for ym and the month
// before, alongside the balances of the active accounts.
func (s *StatsService) CompanyMonthly(ctx context.Context, ym core.YearMonth) (core.CompanyMonthly, error) {
	var (
		out      core.CompanyMonthly
		accounts []core.Account
	)
	active := true
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.ledgerMonth(gctx, ym)
		out.Current = m
		return err
	})
	g.Go(func() error {
		m, err := s.ledgerMonth(gctx, ym.Prev())
		out.Previous = m
		return err
	})
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx, core.AccountFilter{IsActive: &active})
		return err
	})
	if err := g.Wait(); err != nil {
		return core.CompanyMonthly{}, fmt.Errorf("company monthly: %w", err)
	}

	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Balance.Cents > accounts[j].Balance.Cents
	})
	out.Accounts = make([]core.AccountBalance, 0, len(accounts))
	for _, a := range accounts {
		out.Accounts = append(out.Accounts, core.AccountBalance{
			ID:       a.ID,
			Name:     a.Name,
			Type:     a.Type,
			Currency: a.Currency,
			Balance:  a.Balance,
		})
		out.TotalBalance = out.TotalBalance.Add(a.Balance)
	}
	return out, nil
}

// CompanyYearly totals a year of ledger activity by month and compares it
// with the year before.
func (s *StatsService) CompanyYearly(ctx context.Context, year int) (core.CompanyYearly, error) {
	var cur, prev []core.LedgerEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cur, err = s.ledgerYear(gctx, year)
		return err
	})
	g.Go(func() (err error) {
		prev, err = s.ledgerYear(gctx, year-1)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.CompanyYearly{}, fmt.Errorf("company yearly: %w", err)
	}

	months := core.YearMonth{Year: year, Month: 12}.LastMonths(12)
	out := core.CompanyYearly{YearTotals: core.YearTotals{Year: year}}
	var index map[core.YearMonth]int
	out.Months, index = emptyMonths(months)
	for _, e := range cur {
		if e.Kind == core.EntryTransfer {
			continue
		}
		out.Months[index[core.YearMonthOf(e.Date)]].Add(e.Kind == core.EntryIncome, e.Amount)
	}
	for _, m := range out.Months {
		out.Income = out.Income.Add(m.Income)
		out.Expense = out.Expense.Add(m.Expense)
		out.Count += m.Count
	}
	out.Net = out.Income.Sub(out.Expense)
	out.Previous = yearTotals(year-1, prev)
	return out, nil
}

// CompanyCategories totals a month of ledger entries by category and type,
// largest first. Transfers are listed under their own type.
func (s *StatsService) CompanyCategories(ctx context.Context, ym core.YearMonth) ([]core.CategoryAmount, error) {
	from, to := ym.Bounds()
	entries, err := s.store.ListEntries(ctx, core.EntryFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	acc := newCategoryTotals()
	for _, e := range entries {
		acc.add(e.Category, string(e.Kind), e.Amount)
	}
	return acc.result(false), nil
}

// CompanyTrends returns CompanyTrendMonths ledger month summaries ending with ym.
func (s *StatsService) CompanyTrends(ctx context.Context, ym core.YearMonth) ([]core.MonthSummary, error) {
	months := ym.LastMonths(CompanyTrendMonths)
	from, _ := months[0].Bounds()
	_, to := ym.Bounds()
	entries, err := s.store.ListEntries(ctx, core.EntryFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out, index := emptyMonths(months)
	for _, e := range entries {
		if e.Kind == core.EntryTransfer {
			continue
		}
		if i, ok := index[core.YearMonthOf(e.Date)]; ok {
			out[i].Add(e.Kind == core.EntryIncome, e.Amount)
		}
	}
	return out, nil
}

func (s *StatsService) ledgerMonth(ctx context.Context, ym core.YearMonth) (core.MonthSummary, error) {
	from, to := ym.Bounds()
	entries, err := s.store.ListEntries(ctx, core.EntryFilter{From: from, To: to})
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("list entries %s: %w", ym, err)
	}
	m := core.MonthSummary{YearMonth: ym}
	for _, e := range entries {
		if e.Kind != core.EntryTransfer {
			m.Add(e.Kind == core.EntryIncome, e.Amount)
		}
	}
	return m, nil
}

func (s *StatsService) ledgerYear(ctx context.Context, year int) ([]core.LedgerEntry, error) {
	entries, err := s.store.ListEntries(ctx, core.EntryFilter{
		From: core.NewDate(year, 1, 1),
		To:   core.NewDate(year, 12, 31),
	})
	if err != nil {
		return nil, fmt.Errorf("list entries %d: %w", year, err)
	}
	return entries, nil
}

func yearTotals(year int, entries []core.LedgerEntry) core.YearTotals {
	t := core.YearTotals{Year: year}
	for _, e := range entries {
		switch e.Kind {
		case core.EntryIncome:
			t.Income = t.Income.Add(e.Amount)
		case core.EntryExpense:
			t.Expense = t.Expense.Add(e.Amount)
		default:
			continue
		}
		t.Count++
	}
	t.Net = t.Income.Sub(t.Expense)
	return t
}

func emptyMonths(months []core.YearMonth) ([]core.MonthSummary, map[core.YearMonth]int) {
	out := make([]core.MonthSummary, len(months))
	index := make(map[core.YearMonth]int, len(months))
	for i, ym := range months {
		out[i] = core.MonthSummary{YearMonth: ym}
		index[ym] = i
	}
	return out, index
}

type categoryKey struct{ category, kind string }

type categoryTotals struct {
	order  []categoryKey
	totals map[categoryKey]*core.CategoryAmount
}

func newCategoryTotals() *categoryTotals {
	return &categoryTotals{totals: make(map[categoryKey]*core.CategoryAmount)}
}

func (c *categoryTotals) add(category, kind string, amount core.Money) {
	k := categoryKey{category, kind}
	t, ok := c.totals[k]
	if !ok {
		t = &core.CategoryAmount{Category: category, Type: kind}
		c.totals[k] = t
		c.order = append(c.order, k)
	}
	t.Amount = t.Amount.Add(amount)
	t.Count++
}

// result returns the totals largest first. With share set each line carries
// its percentage of the grand total.
func (c *categoryTotals) result(share bool) []core.CategoryAmount {
	out := make([]core.CategoryAmount, 0, len(c.order))
	var sum int64
	for _, k := range c.order {
		out = append(out, *c.totals[k])
		sum += c.totals[k].Amount.Cents
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	if share && sum > 0 {
		for i := range out {
			out[i].Percentage = float64(out[i].Amount.Cents) * 100 / float64(sum)
		}
	}
	return out
}
