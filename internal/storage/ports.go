package storage

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"bilancio/internal/core"
)

// ErrNotFound is returned when a row does not exist for the given account.
var ErrNotFound = errors.New("not found")

// Ports implemented by every backend. All methods are scoped to one account;
// rows of other accounts are invisible.
type (
	CategoryStore interface {
		ListCategories(ctx context.Context, accountID string) ([]core.Category, error)
		// InsertCategories stores cats in order and returns them with ids assigned.
		InsertCategories(ctx context.Context, accountID string, cats []core.Category) ([]core.Category, error)
		// UpdateCategoryBudget sets or, with a nil budget, clears the monthly budget.
		UpdateCategoryBudget(ctx context.Context, accountID, categoryID string, budget *core.Money) (core.Category, error)
	}

	TransactionStore interface {
		// ListTransactions returns transactions newest first.
		ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, accountID, id string) (core.Transaction, error)
		InsertTransaction(ctx context.Context, accountID string, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, accountID, id string, u TransactionUpdate) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, accountID, id string) error
	}

	RecurringStore interface {
		// ListRecurringExpenses returns records by due day, ties in insertion order.
		ListRecurringExpenses(ctx context.Context, accountID string) ([]core.RecurringExpense, error)
		GetRecurringExpense(ctx context.Context, accountID, id string) (core.RecurringExpense, error)
		InsertRecurringExpense(ctx context.Context, accountID string, re core.RecurringExpense) (core.RecurringExpense, error)
		UpdateRecurringExpense(ctx context.Context, accountID, id string, u RecurringExpenseUpdate) (core.RecurringExpense, error)
		// SetPaymentLink stores link on the record; the zero link clears it.
		SetPaymentLink(ctx context.Context, accountID, id string, link PaymentLink) error
		DeleteRecurringExpense(ctx context.Context, accountID, id string) error
	}

	AccountLister interface {
		ListAccountIDs(ctx context.Context) ([]string, error)
	}

	Store interface {
		CategoryStore
		TransactionStore
		RecurringStore
		AccountLister
		Close() error
	}
)

// TransactionUpdate carries the fields to change; nil fields are kept.
type TransactionUpdate struct {
	Type        *core.TransactionType `json:"type,omitempty"`
	Amount      *core.Money           `json:"amount,omitempty"`
	CategoryID  *string               `json:"categoryId,omitempty"`
	Description *string               `json:"description,omitempty"`
	Date        *core.Date            `json:"date,omitempty"`
	Recurrence  *core.Recurrence      `json:"recurrence,omitempty"`
}

func (u TransactionUpdate) IsEmpty() bool {
	return u == TransactionUpdate{}
}

// Apply returns t with the non-nil fields of u.
func (u TransactionUpdate) Apply(t core.Transaction) core.Transaction {
	if u.Type != nil {
		t.Type = *u.Type
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.CategoryID != nil {
		t.CategoryID = *u.CategoryID
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Date != nil {
		t.Date = *u.Date
	}
	if u.Recurrence != nil {
		t.Recurrence = *u.Recurrence
	}
	return t
}

// RecurringExpenseUpdate carries the definition fields to change. Payment
// link fields are deliberately absent: only SetPaymentLink writes them.
type RecurringExpenseUpdate struct {
	Description *string          `json:"description,omitempty"`
	Amount      *core.Money      `json:"amount,omitempty"`
	CategoryID  *string          `json:"categoryId,omitempty"`
	DueDay      *int             `json:"dueDay,omitempty"`
	Recurrence  *core.Recurrence `json:"recurrence,omitempty"`
}

func (u RecurringExpenseUpdate) IsEmpty() bool {
	return u == RecurringExpenseUpdate{}
}

// Apply returns re with the non-nil fields of u.
func (u RecurringExpenseUpdate) Apply(re core.RecurringExpense) core.RecurringExpense {
	if u.Description != nil {
		re.Description = *u.Description
	}
	if u.Amount != nil {
		re.Amount = *u.Amount
	}
	if u.CategoryID != nil {
		re.CategoryID = *u.CategoryID
	}
	if u.DueDay != nil {
		re.DueDay = *u.DueDay
	}
	if u.Recurrence != nil {
		re.Recurrence = *u.Recurrence
	}
	return re
}

// PaymentLink attributes a recurring expense payment to a transaction and month.
type PaymentLink struct {
	TransactionID string
	Month         int // 1-12
	Year          int
}

func (l PaymentLink) IsZero() bool {
	return l == PaymentLink{}
}

// LinkOf returns the payment link stored on re.
func LinkOf(re core.RecurringExpense) PaymentLink {
	return PaymentLink{TransactionID: re.LinkedTransactionID, Month: re.PaidForMonth, Year: re.PaidForYear}
}

// ApplyLink returns re carrying link.
func ApplyLink(re core.RecurringExpense, link PaymentLink) core.RecurringExpense {
	re.LinkedTransactionID = link.TransactionID
	re.PaidForMonth = link.Month
	re.PaidForYear = link.Year
	return re
}

// SortTransactions orders txs newest first, latest created first on equal dates.
func SortTransactions(txs []core.Transaction) {
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// SortRecurringExpenses orders records by due day; the sort is stable so equal
// days keep their current (insertion) order.
func SortRecurringExpenses(res []core.RecurringExpense) {
	slices.SortStableFunc(res, func(a, b core.RecurringExpense) int {
		return cmp.Compare(a.DueDay, b.DueDay)
	})
}
