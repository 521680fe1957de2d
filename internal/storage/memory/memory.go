// Package memory is an in-process store used for development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

type account struct {
	cats      []core.Category
	txs       []core.Transaction
	recurring []core.RecurringExpense // insertion order
}

type Store struct {
	mu       sync.Mutex
	accounts map[string]*account
	now      func() time.Time
}

func New() *Store {
	return &Store{accounts: make(map[string]*account), now: time.Now}
}

func (s *Store) Close() error { return nil }

// acct returns the account bucket, creating it. Callers hold s.mu.
func (s *Store) acct(id string) *account {
	a, ok := s.accounts[id]
	if !ok {
		a = &account{}
		s.accounts[id] = a
	}
	return a
}

func (s *Store) ListCategories(_ context.Context, accountID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.acct(accountID).cats))
	for _, c := range s.acct(accountID).cats {
		out = append(out, cloneCategory(c))
	}
	return out, nil
}

func (s *Store) InsertCategories(_ context.Context, accountID string, cats []core.Category) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	out := make([]core.Category, 0, len(cats))
	for _, c := range cats {
		c = cloneCategory(c)
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		a.cats = append(a.cats, c)
		out = append(out, cloneCategory(c))
	}
	return out, nil
}

func (s *Store) UpdateCategoryBudget(_ context.Context, accountID, categoryID string, budget *core.Money) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	for i := range a.cats {
		if a.cats[i].ID != categoryID {
			continue
		}
		if budget == nil {
			a.cats[i].Budget = nil
		} else {
			b := *budget
			a.cats[i].Budget = &b
		}
		return cloneCategory(a.cats[i]), nil
	}
	return core.Category{}, storage.ErrNotFound
}

func (s *Store) ListTransactions(_ context.Context, accountID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.acct(accountID).txs)
	storage.SortTransactions(out)
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, accountID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	if i := indexOfTransaction(a.txs, id); i >= 0 {
		return a.txs[i], nil
	}
	return core.Transaction{}, storage.ErrNotFound
}

func (s *Store) InsertTransaction(_ context.Context, accountID string, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = uuid.NewString()
	tx.CreatedAt = s.now().UTC()
	a := s.acct(accountID)
	a.txs = append(a.txs, tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, accountID, id string, u storage.TransactionUpdate) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	i := indexOfTransaction(a.txs, id)
	if i < 0 {
		return core.Transaction{}, storage.ErrNotFound
	}
	a.txs[i] = u.Apply(a.txs[i])
	return a.txs[i], nil
}

func (s *Store) DeleteTransaction(_ context.Context, accountID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	i := indexOfTransaction(a.txs, id)
	if i < 0 {
		return storage.ErrNotFound
	}
	a.txs = slices.Delete(a.txs, i, i+1)
	return nil
}

func (s *Store) ListRecurringExpenses(_ context.Context, accountID string) ([]core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.acct(accountID).recurring)
	storage.SortRecurringExpenses(out)
	return out, nil
}

func (s *Store) GetRecurringExpense(_ context.Context, accountID, id string) (core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	if i := indexOfRecurring(a.recurring, id); i >= 0 {
		return a.recurring[i], nil
	}
	return core.RecurringExpense{}, storage.ErrNotFound
}

func (s *Store) InsertRecurringExpense(_ context.Context, accountID string, re core.RecurringExpense) (core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	re.ID = uuid.NewString()
	re.CreatedAt = s.now().UTC()
	a := s.acct(accountID)
	a.recurring = append(a.recurring, re)
	return re, nil
}

func (s *Store) UpdateRecurringExpense(_ context.Context, accountID, id string, u storage.RecurringExpenseUpdate) (core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	i := indexOfRecurring(a.recurring, id)
	if i < 0 {
		return core.RecurringExpense{}, storage.ErrNotFound
	}
	a.recurring[i] = u.Apply(a.recurring[i])
	return a.recurring[i], nil
}

func (s *Store) SetPaymentLink(_ context.Context, accountID, id string, link storage.PaymentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	i := indexOfRecurring(a.recurring, id)
	if i < 0 {
		return storage.ErrNotFound
	}
	a.recurring[i] = storage.ApplyLink(a.recurring[i], link)
	return nil
}

func (s *Store) DeleteRecurringExpense(_ context.Context, accountID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.acct(accountID)
	i := indexOfRecurring(a.recurring, id)
	if i < 0 {
		return storage.ErrNotFound
	}
	a.recurring = slices.Delete(a.recurring, i, i+1)
	return nil
}

func (s *Store) ListAccountIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.accounts))
	for id, a := range s.accounts {
		if len(a.cats)+len(a.txs)+len(a.recurring) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func indexOfTransaction(txs []core.Transaction, id string) int {
	return slices.IndexFunc(txs, func(t core.Transaction) bool { return t.ID == id })
}

func indexOfRecurring(res []core.RecurringExpense, id string) int {
	return slices.IndexFunc(res, func(re core.RecurringExpense) bool { return re.ID == id })
}

func cloneCategory(c core.Category) core.Category {
	if c.Budget != nil {
		b := *c.Budget
		c.Budget = &b
	}
	return c
}

var _ storage.Store = (*Store)(nil)
