package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// LedgerService owns categories, transactions and balance adjustments for
// an account, publishing a ledger event after every transaction write.
type LedgerService struct {
	categories storage.CategoryStore
	txs        storage.TransactionStore
	recurring  storage.RecurringStore
	cache      cache.Cache[[]core.Category]
	events     eventSink
	now        func() time.Time

	seedMu sync.Mutex
}

// NewLedgerService wires the service. categoryCache and publisher may be nil.
func NewLedgerService(store storage.Store, categoryCache cache.Cache[[]core.Category], publisher EventPublisher) *LedgerService {
	return &LedgerService{
		categories: store,
		txs:        store,
		recurring:  store,
		cache:      categoryCache,
		events:     eventSink{pub: publisher},
		now:        time.Now,
	}
}

// Categories lists the account's categories, seeding the defaults when the
// account has none.
func (s *LedgerService) Categories(ctx context.Context, accountID string) ([]core.Category, error) {
	if s.cache != nil {
		if cats, ok := s.cache.Get(accountID); ok {
			return cats, nil
		}
	}

	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	cats, err := s.categories.ListCategories(ctx, accountID)
	if err != nil {
		return nil, storeErr("list categories", err)
	}
	if len(cats) == 0 {
		cats, err = s.categories.InsertCategories(ctx, accountID, core.DefaultCategories())
		if err != nil {
			return nil, storeErr("insert default categories", err)
		}
		slog.InfoContext(ctx, "Seeded default categories", "account_id", accountID, "count", len(cats))
	}

	if s.cache != nil {
		s.cache.Set(accountID, cats)
	}
	return cats, nil
}

// UpdateCategoryBudget sets a category's monthly budget; nil clears it.
func (s *LedgerService) UpdateCategoryBudget(ctx context.Context, accountID, categoryID string, budget *core.Money) (core.Category, error) {
	cats, err := s.Categories(ctx, accountID)
	if err != nil {
		return core.Category{}, err
	}
	cat, ok := core.FindCategory(cats, categoryID)
	if !ok {
		return core.Category{}, fmt.Errorf("category %s: %w", categoryID, storage.ErrNotFound)
	}
	if err := cat.ValidateBudget(budget); err != nil {
		return core.Category{}, err
	}

	// Held so a concurrent Categories miss cannot cache the list read before
	// this write.
	s.seedMu.Lock()
	updated, err := s.categories.UpdateCategoryBudget(ctx, accountID, categoryID, budget)
	if s.cache != nil {
		s.cache.Delete(accountID)
	}
	s.seedMu.Unlock()
	if err != nil {
		return core.Category{}, storeErr("update category budget", err)
	}

	slog.InfoContext(ctx, "Category budget updated",
		"account_id", accountID,
		"category_id", categoryID,
		"cleared", budget == nil)
	return updated, nil
}

// Transactions lists the account's transactions inside p, newest first.
func (s *LedgerService) Transactions(ctx context.Context, accountID string, p core.Period) ([]core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	txs, err := s.txs.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return core.FilterByPeriod(txs, p), nil
}

// checkCategory verifies that categoryID exists and accepts typ.
func (s *LedgerService) checkCategory(ctx context.Context, accountID, categoryID string, typ core.TransactionType) error {
	cats, err := s.Categories(ctx, accountID)
	if err != nil {
		return err
	}
	cat, ok := core.FindCategory(cats, categoryID)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownCategory, categoryID)
	}
	if !cat.Accepts(typ) {
		return fmt.Errorf("%w: %s is %s", core.ErrCategoryKind, cat.Name, cat.Kind)
	}
	return nil
}

// AddTransaction validates and stores a user-entered transaction.
func (s *LedgerService) AddTransaction(ctx context.Context, accountID string, tx core.Transaction) (core.Transaction, error) {
	tx.ID = ""
	tx.RecurringExpenseID = ""
	tx.CreatedAt = time.Time{}
	tx.Description = strings.TrimSpace(tx.Description)
	if tx.Recurrence == "" {
		tx.Recurrence = core.OneTime
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, accountID, tx.CategoryID, tx.Type); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.txs.InsertTransaction(ctx, accountID, tx)
	if err != nil {
		return core.Transaction{}, storeErr("insert transaction", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"account_id", accountID,
		"id", saved.ID,
		"type", saved.Type,
		"amount_cents", saved.Amount.Cents)
	s.events.publish(ctx, amqp.TransactionCreated, accountID, saved)
	return saved, nil
}

// UpdateTransaction applies a partial update after validating the result.
func (s *LedgerService) UpdateTransaction(ctx context.Context, accountID, id string, u storage.TransactionUpdate) (core.Transaction, error) {
	if u.Description != nil {
		trimmed := strings.TrimSpace(*u.Description)
		u.Description = &trimmed
	}

	current, err := s.txs.GetTransaction(ctx, accountID, id)
	if err != nil {
		return core.Transaction{}, storeErr("get transaction", err)
	}
	if u.IsEmpty() {
		return current, nil
	}
	merged := u.Apply(current)
	if err := merged.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, accountID, merged.CategoryID, merged.Type); err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.txs.UpdateTransaction(ctx, accountID, id, u)
	if err != nil {
		return core.Transaction{}, storeErr("update transaction", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "account_id", accountID, "id", id)
	s.events.publish(ctx, amqp.TransactionUpdated, accountID, updated)
	return updated, nil
}

// DeleteTransaction removes a transaction. When it was booked by paying a
// recurring expense, that expense's payment link is cleared as well.
func (s *LedgerService) DeleteTransaction(ctx context.Context, accountID, id string) error {
	tx, err := s.txs.GetTransaction(ctx, accountID, id)
	if err != nil {
		return storeErr("get transaction", err)
	}
	if err := s.txs.DeleteTransaction(ctx, accountID, id); err != nil {
		return storeErr("delete transaction", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "account_id", accountID, "id", id)
	s.events.publish(ctx, amqp.TransactionDeleted, accountID, tx)

	if tx.RecurringExpenseID != "" {
		s.unlinkPayment(ctx, accountID, tx.RecurringExpenseID, id)
	}
	return nil
}

// unlinkPayment clears the link of recurringID when it still points at txID.
// Failures are left for the reconciler.
func (s *LedgerService) unlinkPayment(ctx context.Context, accountID, recurringID, txID string) {
	re, err := s.recurring.GetRecurringExpense(ctx, accountID, recurringID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to load recurring expense for unlink",
			"recurring_id", recurringID, "transaction_id", txID, "error", err)
		return
	}
	if re.LinkedTransactionID != txID {
		return
	}
	if err := s.recurring.SetPaymentLink(ctx, accountID, recurringID, storage.PaymentLink{}); err != nil {
		slog.WarnContext(ctx, "Failed to clear payment link of deleted transaction",
			"recurring_id", recurringID, "transaction_id", txID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Cleared payment link of deleted transaction",
		"recurring_id", recurringID, "transaction_id", txID)
}

// Summary aggregates the account's ledger for p.
func (s *LedgerService) Summary(ctx context.Context, accountID string, p core.Period) (core.Summary, error) {
	if err := p.Validate(); err != nil {
		return core.Summary{}, err
	}

	var (
		cats []core.Category
		txs  []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cats, err = s.Categories(gctx, accountID)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.txs.ListTransactions(gctx, accountID)
		if err != nil {
			return storeErr("list transactions", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Summary{}, err
	}

	return core.Summarize(txs, cats, p), nil
}

// AdjustBalance books the difference between the balance of p and the
// entered balance as a one-time transaction under the "Other" category.
// Input that is not a number and a zero difference are no-ops reported as
// a nil transaction.
func (s *LedgerService) AdjustBalance(ctx context.Context, accountID string, p core.Period, input string) (*core.Transaction, error) {
	target, err := core.ParseBalance(input)
	if err != nil {
		slog.DebugContext(ctx, "Ignoring balance adjustment", "input", input, "error", err)
		return nil, nil
	}

	summary, err := s.Summary(ctx, accountID, p)
	if err != nil {
		return nil, err
	}
	cats, err := s.Categories(ctx, accountID)
	if err != nil {
		return nil, err
	}
	other, ok := core.FindCategoryByName(cats, core.OtherCategoryName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownCategory, core.OtherCategoryName)
	}

	planned, ok := core.PlanBalanceAdjustment(summary.Totals.Balance, target, other.ID, core.DateOf(s.now()))
	if !ok {
		return nil, nil
	}
	saved, err := s.AddTransaction(ctx, accountID, planned)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
