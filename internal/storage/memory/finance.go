package memory

import (
	"context"
	"fmt"

	"pmanager/internal/core"
)

func (s *Store) ListTransactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := sortedValues(s.transactions, f.Match, func(a, b core.Transaction) bool {
		return newestFirst(a.Date, b.Date, a.CreatedAt, b.CreatedAt, a.ID, b.ID)
	})
	return limit(out, f.Limit), nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return t, notFound("transaction", id)
	}
	return t, nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkProject(t.ProjectID); err != nil {
		return t, err
	}
	t.ID = s.nextID("transactions")
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id int64, p core.TransactionPatch) (core.Transaction, error) {
	if p.IsEmpty() {
		return core.Transaction{}, core.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return t, notFound("transaction", id)
	}
	p.ApplyTo(&t)
	if err := t.Validate(); err != nil {
		return t, err
	}
	if err := s.checkProject(t.ProjectID); err != nil {
		return t, err
	}
	t.UpdatedAt = s.now()
	s.transactions[id] = t
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return notFound("transaction", id)
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) ListBudgets(_ context.Context, f core.BudgetFilter) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.budgets, f.Match, func(a, b core.Budget) bool {
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		return a.Category < b.Category
	}), nil
}

func (s *Store) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return b, notFound("budget", id)
	}
	return b, nil
}

// budgetTaken reports whether another budget already covers b's category
// and month.
func (s *Store) budgetTaken(b core.Budget) bool {
	for _, other := range s.budgets {
		if other.ID != b.ID && other.Category == b.Category && other.Month == b.Month && other.Year == b.Year {
			return true
		}
	}
	return false
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	b.Normalize()
	if err := b.Validate(); err != nil {
		return b, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.budgetTaken(b) {
		return b, fmt.Errorf("budget %s %s: %w", b.Category, b.Period(), core.ErrConflict)
	}
	b.ID = s.nextID("budgets")
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, id int64, p core.BudgetPatch) (core.Budget, error) {
	if p.IsEmpty() {
		return core.Budget{}, core.ErrNoFields
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return b, notFound("budget", id)
	}
	p.ApplyTo(&b)
	if err := b.Validate(); err != nil {
		return b, err
	}
	if s.budgetTaken(b) {
		return b, fmt.Errorf("budget %s %s: %w", b.Category, b.Period(), core.ErrConflict)
	}
	b.UpdatedAt = s.now()
	s.budgets[id] = b
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return notFound("budget", id)
	}
	delete(s.budgets, id)
	return nil
}
