// Package storagetest holds behaviour checks shared by every storage backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// Run exercises the storage.Store contract against stores produced by open.
// Each subtest receives a fresh store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Run("categories", func(t *testing.T) { testCategories(t, open(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, open(t)) })
	t.Run("recurring expenses", func(t *testing.T) { testRecurring(t, open(t)) })
	t.Run("payment link", func(t *testing.T) { testPaymentLink(t, open(t)) })
	t.Run("account isolation", func(t *testing.T) { testIsolation(t, open(t)) })
}

func testCategories(t *testing.T, s storage.Store) {
	ctx := context.Background()

	cats, err := s.ListCategories(ctx, "acct")
	require.NoError(t, err)
	assert.Empty(t, cats)

	seeded, err := s.InsertCategories(ctx, "acct", core.DefaultCategories())
	require.NoError(t, err)
	require.Len(t, seeded, len(core.DefaultCategories()))
	for _, c := range seeded {
		assert.NotEmpty(t, c.ID)
	}

	listed, err := s.ListCategories(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, listed, len(seeded))
	assert.Equal(t, "Salary", listed[0].Name)
	assert.Equal(t, core.KindIncome, listed[0].Kind)
	assert.Nil(t, listed[0].Budget)

	food, ok := core.FindCategoryByName(listed, "Food")
	require.True(t, ok)
	require.NotNil(t, food.Budget)
	assert.Equal(t, core.NewMoney(5000), *food.Budget)

	b := core.NewMoney(6500)
	updated, err := s.UpdateCategoryBudget(ctx, "acct", food.ID, &b)
	require.NoError(t, err)
	require.NotNil(t, updated.Budget)
	assert.Equal(t, b, *updated.Budget)

	cleared, err := s.UpdateCategoryBudget(ctx, "acct", food.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.Budget)

	_, err = s.UpdateCategoryBudget(ctx, "acct", "missing", &b)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func newTransaction(desc string, d core.Date) core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Amount:      core.NewMoney(12),
		CategoryID:  "food",
		Description: desc,
		Date:        d,
		Recurrence:  core.OneTime,
	}
}

func testTransactions(t *testing.T, s storage.Store) {
	ctx := context.Background()

	older, err := s.InsertTransaction(ctx, "acct", newTransaction("older", core.NewDate(2026, 3, 1)))
	require.NoError(t, err)
	assert.NotEmpty(t, older.ID)
	assert.False(t, older.CreatedAt.IsZero())

	linked := newTransaction("linked", core.NewDate(2026, 3, 15))
	linked.RecurringExpenseID = "rec-1"
	newer, err := s.InsertTransaction(ctx, "acct", linked)
	require.NoError(t, err)

	txs, err := s.ListTransactions(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, newer.ID, txs[0].ID, "newest first")
	assert.Equal(t, "rec-1", txs[0].RecurringExpenseID)
	assert.Equal(t, "2026-03-15", txs[0].Date.String())

	got, err := s.GetTransaction(ctx, "acct", older.ID)
	require.NoError(t, err)
	assert.Equal(t, "older", got.Description)
	assert.Equal(t, core.NewMoney(12), got.Amount)

	desc := "renamed"
	amount := core.NewMoney(99)
	typ := core.Income
	updated, err := s.UpdateTransaction(ctx, "acct", older.ID, storage.TransactionUpdate{
		Description: &desc,
		Amount:      &amount,
		Type:        &typ,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Description)
	assert.Equal(t, amount, updated.Amount)
	assert.Equal(t, core.Income, updated.Type)
	assert.Equal(t, "food", updated.CategoryID, "untouched fields are kept")
	assert.Equal(t, "2026-03-01", updated.Date.String())

	_, err = s.UpdateTransaction(ctx, "acct", "missing", storage.TransactionUpdate{Description: &desc})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.DeleteTransaction(ctx, "acct", older.ID))
	_, err = s.GetTransaction(ctx, "acct", older.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "acct", older.ID), storage.ErrNotFound)
}

func newRecurring(desc string, dueDay int) core.RecurringExpense {
	return core.RecurringExpense{
		Description: desc,
		Amount:      core.NewMoney(500),
		CategoryID:  "entertainment",
		DueDay:      dueDay,
		Recurrence:  core.Monthly,
	}
}

func testRecurring(t *testing.T, s storage.Store) {
	ctx := context.Background()

	var ids []string
	for _, re := range []core.RecurringExpense{
		newRecurring("Rent", 20),
		newRecurring("Netflix", 5),
		newRecurring("Gym", 20),
		newRecurring("Phone", 5),
	} {
		saved, err := s.InsertRecurringExpense(ctx, "acct", re)
		require.NoError(t, err)
		assert.False(t, saved.HasLink())
		ids = append(ids, saved.ID)
	}

	list, err := s.ListRecurringExpenses(ctx, "acct")
	require.NoError(t, err)
	require.Len(t, list, 4)
	var order []string
	for _, re := range list {
		order = append(order, re.Description)
	}
	assert.Equal(t, []string{"Netflix", "Phone", "Rent", "Gym"}, order)

	day := 1
	desc := "Rent (flat)"
	updated, err := s.UpdateRecurringExpense(ctx, "acct", ids[0], storage.RecurringExpenseUpdate{DueDay: &day, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.DueDay)
	assert.Equal(t, "Rent (flat)", updated.Description)
	assert.Equal(t, core.Monthly, updated.Recurrence)

	list, err = s.ListRecurringExpenses(ctx, "acct")
	require.NoError(t, err)
	assert.Equal(t, ids[0], list[0].ID)

	require.NoError(t, s.DeleteRecurringExpense(ctx, "acct", ids[1]))
	_, err = s.GetRecurringExpense(ctx, "acct", ids[1])
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteRecurringExpense(ctx, "acct", ids[1]), storage.ErrNotFound)
}

func testPaymentLink(t *testing.T, s storage.Store) {
	ctx := context.Background()

	re, err := s.InsertRecurringExpense(ctx, "acct", newRecurring("Netflix", 15))
	require.NoError(t, err)

	link := storage.PaymentLink{TransactionID: "tx-1", Month: 3, Year: 2026}
	require.NoError(t, s.SetPaymentLink(ctx, "acct", re.ID, link))

	got, err := s.GetRecurringExpense(ctx, "acct", re.ID)
	require.NoError(t, err)
	assert.Equal(t, link, storage.LinkOf(got))
	assert.True(t, got.PaidFor(core.MonthPeriod(2026, time.March)))

	// definition updates leave the link alone
	amount := core.NewMoney(700)
	updated, err := s.UpdateRecurringExpense(ctx, "acct", re.ID, storage.RecurringExpenseUpdate{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, link, storage.LinkOf(updated))

	require.NoError(t, s.SetPaymentLink(ctx, "acct", re.ID, storage.PaymentLink{}))
	got, err = s.GetRecurringExpense(ctx, "acct", re.ID)
	require.NoError(t, err)
	assert.True(t, storage.LinkOf(got).IsZero())

	assert.ErrorIs(t, s.SetPaymentLink(ctx, "acct", "missing", link), storage.ErrNotFound)
}

func testIsolation(t *testing.T, s storage.Store) {
	ctx := context.Background()

	tx, err := s.InsertTransaction(ctx, "alice", newTransaction("coffee", core.NewDate(2026, 3, 1)))
	require.NoError(t, err)
	_, err = s.InsertRecurringExpense(ctx, "bob", newRecurring("Netflix", 3))
	require.NoError(t, err)

	txs, err := s.ListTransactions(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = s.GetTransaction(ctx, "bob", tx.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "bob", tx.ID), storage.ErrNotFound)

	ids, err := s.ListAccountIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
}
