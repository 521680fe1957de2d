package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

const copySuffix = " (Copy)"

// CategorySource lists the categories of an account.
type CategorySource interface {
	Categories(ctx context.Context, accountID string) ([]core.Category, error)
}

// RecurringView is a recurring expense as seen from one month.
type RecurringView struct {
	core.RecurringExpense
	Period    core.Period `json:"period"`
	IsPaid    bool        `json:"isPaid"`
	DueDate   core.Date   `json:"dueDate"`
	IsDue     bool        `json:"isDue"`
	IsOverdue bool        `json:"isOverdue"`
}

// ReconcileReport counts what a reconciliation pass did.
type ReconcileReport struct {
	Checked int `json:"checked"`
	Cleared int `json:"cleared"`
	Failed  int `json:"failed"`
}

// RecurringService keeps recurring expenses and their payment transactions
// consistent. A record is paid for a month only while its link names that
// month and the linked transaction exists.
type RecurringService struct {
	recurring  storage.RecurringStore
	txs        storage.TransactionStore
	categories CategorySource
	events     eventSink
	now        func() time.Time
}

// NewRecurringService wires the service. publisher may be nil.
func NewRecurringService(recurring storage.RecurringStore, txs storage.TransactionStore, categories CategorySource, publisher EventPublisher) *RecurringService {
	return &RecurringService{
		recurring:  recurring,
		txs:        txs,
		categories: categories,
		events:     eventSink{pub: publisher},
		now:        time.Now,
	}
}

func (s *RecurringService) checkCategory(ctx context.Context, accountID, categoryID string) error {
	cats, err := s.categories.Categories(ctx, accountID)
	if err != nil {
		return err
	}
	cat, ok := core.FindCategory(cats, categoryID)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownCategory, categoryID)
	}
	if !cat.Accepts(core.Expense) {
		return fmt.Errorf("%w: %s is %s", core.ErrCategoryKind, cat.Name, cat.Kind)
	}
	return nil
}

// Add stores a new, unpaid recurring expense.
func (s *RecurringService) Add(ctx context.Context, accountID string, re core.RecurringExpense) (core.RecurringExpense, error) {
	re.ID = ""
	re.CreatedAt = time.Time{}
	re = storage.ApplyLink(re, storage.PaymentLink{})
	re.Description = strings.TrimSpace(re.Description)
	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}
	if err := s.checkCategory(ctx, accountID, re.CategoryID); err != nil {
		return core.RecurringExpense{}, err
	}

	saved, err := s.recurring.InsertRecurringExpense(ctx, accountID, re)
	if err != nil {
		return core.RecurringExpense{}, storeErr("insert recurring expense", err)
	}
	slog.InfoContext(ctx, "Recurring expense created",
		"account_id", accountID,
		"id", saved.ID,
		"recurrence", saved.Recurrence,
		"due_day", saved.DueDay)
	return saved, nil
}

// List evaluates every recurring expense against p. The all-time period
// resolves to the current month. List never writes.
func (s *RecurringService) List(ctx context.Context, accountID string, p core.Period) ([]RecurringView, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.OrCurrent(s.now())

	res, err := s.recurring.ListRecurringExpenses(ctx, accountID)
	if err != nil {
		return nil, storeErr("list recurring expenses", err)
	}
	txs, err := s.txs.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	live := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		live[tx.ID] = struct{}{}
	}

	storage.SortRecurringExpenses(res)
	now := s.now()
	views := make([]RecurringView, 0, len(res))
	for _, re := range res {
		_, linked := live[re.LinkedTransactionID]
		paid := re.PaidFor(p) && linked
		due := evaluateDue(re, p, paid, now)
		views = append(views, RecurringView{
			RecurringExpense: re,
			Period:           p,
			IsPaid:           paid,
			DueDate:          due.DueDate,
			IsDue:            due.IsDue,
			IsOverdue:        due.IsOverdue,
		})
	}
	return views, nil
}

// isPaid reports whether re is paid for p, checking that the linked
// transaction still exists.
func (s *RecurringService) isPaid(ctx context.Context, accountID string, re core.RecurringExpense, p core.Period) (bool, error) {
	if !re.PaidFor(p) {
		return false, nil
	}
	_, err := s.txs.GetTransaction(ctx, accountID, re.LinkedTransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Payment link points at a missing transaction",
			"recurring_id", re.ID,
			"transaction_id", re.LinkedTransactionID)
		return false, nil
	}
	if err != nil {
		return false, storeErr("get linked transaction", err)
	}
	return true, nil
}

// MarkAsPaid books the payment transaction of id for p and links it.
func (s *RecurringService) MarkAsPaid(ctx context.Context, accountID, id string, p core.Period) (core.Transaction, error) {
	if err := p.RequireMonth(); err != nil {
		return core.Transaction{}, err
	}

	re, err := s.recurring.GetRecurringExpense(ctx, accountID, id)
	if err != nil {
		return core.Transaction{}, storeErr("get recurring expense", err)
	}
	paid, err := s.isPaid(ctx, accountID, re, p)
	if err != nil {
		return core.Transaction{}, err
	}
	if paid {
		return core.Transaction{}, fmt.Errorf("%w: %s for %s", ErrAlreadyPaid, re.Description, p)
	}

	tx, err := s.txs.InsertTransaction(ctx, accountID, re.PaymentTransaction(p))
	if err != nil {
		return core.Transaction{}, storeErr("insert payment transaction", err)
	}

	link := storage.PaymentLink{TransactionID: tx.ID, Month: int(p.Month), Year: p.Year}
	if err := s.recurring.SetPaymentLink(ctx, accountID, id, link); err != nil {
		linkErr := storeErr("set payment link", err)
		if delErr := s.txs.DeleteTransaction(ctx, accountID, tx.ID); delErr != nil {
			slog.ErrorContext(ctx, "Failed to remove payment transaction after link failure",
				"recurring_id", id,
				"orphan_transaction_id", tx.ID,
				"error", delErr)
			return core.Transaction{}, errors.Join(linkErr, storeErr("delete orphan payment transaction", delErr))
		}
		slog.WarnContext(ctx, "Rolled back payment transaction after link failure",
			"recurring_id", id, "transaction_id", tx.ID, "error", err)
		return core.Transaction{}, linkErr
	}

	slog.InfoContext(ctx, "Recurring expense marked as paid",
		"account_id", accountID,
		"recurring_id", id,
		"transaction_id", tx.ID,
		"period", p.String())
	s.events.publish(ctx, amqp.TransactionCreated, accountID, tx)
	return tx, nil
}

// MarkAsUnpaid removes the payment transaction booked for p and clears the
// link. It fails with ErrNotPaid unless the link names p; payments of other
// months are left alone.
func (s *RecurringService) MarkAsUnpaid(ctx context.Context, accountID, id string, p core.Period) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.OrCurrent(s.now())

	re, err := s.recurring.GetRecurringExpense(ctx, accountID, id)
	if err != nil {
		return storeErr("get recurring expense", err)
	}
	if !re.PaidFor(p) {
		return fmt.Errorf("%w: %s for %s", ErrNotPaid, re.Description, p)
	}

	txID := re.LinkedTransactionID
	err = s.txs.DeleteTransaction(ctx, accountID, txID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		slog.WarnContext(ctx, "Linked payment transaction already gone, clearing link",
			"recurring_id", id, "transaction_id", txID)
	case err != nil:
		return storeErr("delete payment transaction", err)
	default:
		s.events.publish(ctx, amqp.TransactionDeleted, accountID, core.Transaction{ID: txID})
	}

	if err := s.recurring.SetPaymentLink(ctx, accountID, id, storage.PaymentLink{}); err != nil {
		return storeErr("clear payment link", err)
	}

	slog.InfoContext(ctx, "Recurring expense marked as unpaid",
		"account_id", accountID,
		"recurring_id", id,
		"transaction_id", txID,
		"period", p.String())
	return nil
}

// Delete removes id. When it is paid for p the payment transaction is
// removed too, on a best effort basis. Payments booked for other months stay
// in the ledger.
func (s *RecurringService) Delete(ctx context.Context, accountID, id string, p core.Period) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.OrCurrent(s.now())

	re, err := s.recurring.GetRecurringExpense(ctx, accountID, id)
	if err != nil {
		return storeErr("get recurring expense", err)
	}

	if re.PaidFor(p) {
		txID := re.LinkedTransactionID
		err := s.txs.DeleteTransaction(ctx, accountID, txID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			slog.ErrorContext(ctx, "Failed to delete payment transaction of removed recurring expense",
				"recurring_id", id,
				"orphan_transaction_id", txID,
				"error", err)
		default:
			s.events.publish(ctx, amqp.TransactionDeleted, accountID, core.Transaction{ID: txID})
		}
	}

	if err := s.recurring.DeleteRecurringExpense(ctx, accountID, id); err != nil {
		return storeErr("delete recurring expense", err)
	}
	slog.InfoContext(ctx, "Recurring expense deleted",
		"account_id", accountID, "id", id, "period", p.String())
	return nil
}

// Update changes the definition of id and returns the account's records.
func (s *RecurringService) Update(ctx context.Context, accountID, id string, u storage.RecurringExpenseUpdate) ([]core.RecurringExpense, error) {
	if u.Description != nil {
		trimmed := strings.TrimSpace(*u.Description)
		u.Description = &trimmed
	}

	current, err := s.recurring.GetRecurringExpense(ctx, accountID, id)
	if err != nil {
		return nil, storeErr("get recurring expense", err)
	}
	if !u.IsEmpty() {
		merged := u.Apply(current)
		if err := merged.Validate(); err != nil {
			return nil, err
		}
		if u.CategoryID != nil {
			if err := s.checkCategory(ctx, accountID, merged.CategoryID); err != nil {
				return nil, err
			}
		}
		if _, err := s.recurring.UpdateRecurringExpense(ctx, accountID, id, u); err != nil {
			return nil, storeErr("update recurring expense", err)
		}
		slog.InfoContext(ctx, "Recurring expense updated", "account_id", accountID, "id", id)
	}

	res, err := s.recurring.ListRecurringExpenses(ctx, accountID)
	if err != nil {
		return nil, storeErr("list recurring expenses", err)
	}
	storage.SortRecurringExpenses(res)
	return res, nil
}

// Duplicate stores an unpaid copy of id.
func (s *RecurringService) Duplicate(ctx context.Context, accountID, id string) (core.RecurringExpense, error) {
	src, err := s.recurring.GetRecurringExpense(ctx, accountID, id)
	if err != nil {
		return core.RecurringExpense{}, storeErr("get recurring expense", err)
	}

	cp := core.RecurringExpense{
		Description: src.Description + copySuffix,
		Amount:      src.Amount,
		CategoryID:  src.CategoryID,
		DueDay:      src.DueDay,
		Recurrence:  src.Recurrence,
	}
	if err := cp.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}

	saved, err := s.recurring.InsertRecurringExpense(ctx, accountID, cp)
	if err != nil {
		return core.RecurringExpense{}, storeErr("insert recurring expense", err)
	}
	slog.InfoContext(ctx, "Recurring expense duplicated",
		"account_id", accountID, "source_id", id, "id", saved.ID)
	return saved, nil
}

// Reconcile clears payment links whose transaction no longer exists.
// Consistent records are not written.
func (s *RecurringService) Reconcile(ctx context.Context, accountID string) (ReconcileReport, error) {
	var report ReconcileReport

	res, err := s.recurring.ListRecurringExpenses(ctx, accountID)
	if err != nil {
		return report, storeErr("list recurring expenses", err)
	}
	txs, err := s.txs.ListTransactions(ctx, accountID)
	if err != nil {
		return report, storeErr("list transactions", err)
	}
	live := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		live[tx.ID] = struct{}{}
	}

	for _, re := range res {
		if !re.HasLink() {
			continue
		}
		report.Checked++
		if _, ok := live[re.LinkedTransactionID]; ok {
			continue
		}
		if err := s.recurring.SetPaymentLink(ctx, accountID, re.ID, storage.PaymentLink{}); err != nil {
			report.Failed++
			slog.WarnContext(ctx, "Failed to clear dangling payment link",
				"account_id", accountID,
				"recurring_id", re.ID,
				"transaction_id", re.LinkedTransactionID,
				"error", err)
			continue
		}
		report.Cleared++
		slog.InfoContext(ctx, "Cleared dangling payment link",
			"account_id", accountID,
			"recurring_id", re.ID,
			"transaction_id", re.LinkedTransactionID)
	}
	return report, nil
}
