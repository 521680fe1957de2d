package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

func expense(categoryID, desc string, cents int64, date core.Date) core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Amount:      core.Money{Cents: cents},
		CategoryID:  categoryID,
		Description: desc,
		Date:        date,
	}
}

func TestCategories_SeedsDefaultsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.ledger.Categories(ctx, testAccount)
	require.NoError(t, err)
	require.Len(t, first, len(core.DefaultCategories()))

	second, err := f.ledger.Categories(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := f.store.ListCategories(ctx, testAccount)
	require.NoError(t, err)
	assert.Len(t, stored, len(first))
}

func TestCategories_CacheInvalidatedOnBudgetUpdate(t *testing.T) {
	store := newFaultyStore()
	c, err := cache.New[[]core.Category](cache.Options{MaxItems: 16, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	ledger := NewLedgerService(store, c, nil)
	ctx := context.Background()

	cats, err := ledger.Categories(ctx, testAccount)
	require.NoError(t, err)
	food, ok := core.FindCategoryByName(cats, "Food")
	require.True(t, ok)

	budget := core.NewMoney(120)
	_, err = ledger.UpdateCategoryBudget(ctx, testAccount, food.ID, &budget)
	require.NoError(t, err)

	cats, err = ledger.Categories(ctx, testAccount)
	require.NoError(t, err)
	food, _ = core.FindCategory(cats, food.ID)
	require.NotNil(t, food.Budget)
	assert.Equal(t, budget, *food.Budget)
}

func TestCategories_ConcurrentMissDoesNotCacheStaleBudget(t *testing.T) {
	store := newFaultyStore()
	c := newMapCache()
	ledger := NewLedgerService(store, c, nil)
	ctx := context.Background()

	cats, err := ledger.Categories(ctx, testAccount)
	require.NoError(t, err)
	food, ok := core.FindCategoryByName(cats, "Food")
	require.True(t, ok)

	budget := core.NewMoney(120)
	updated := make(chan error, 1)
	c.missNext = 1
	store.afterListCategories = func() {
		go func() {
			_, err := ledger.UpdateCategoryBudget(ctx, testAccount, food.ID, &budget)
			updated <- err
		}()
		select {
		case err := <-updated:
			updated <- err
		case <-time.After(100 * time.Millisecond):
		}
	}

	_, err = ledger.Categories(ctx, testAccount)
	require.NoError(t, err)
	require.NoError(t, <-updated)

	cats, err = ledger.Categories(ctx, testAccount)
	require.NoError(t, err)
	food, _ = core.FindCategory(cats, food.ID)
	require.NotNil(t, food.Budget)
	assert.Equal(t, budget, *food.Budget)
}

func TestUpdateCategoryBudget_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	budget := core.NewMoney(100)
	_, err := f.ledger.UpdateCategoryBudget(ctx, testAccount, f.category(t, "Salary"), &budget)
	require.ErrorIs(t, err, core.ErrBudgetNotAllowed)

	zero := core.Money{}
	_, err = f.ledger.UpdateCategoryBudget(ctx, testAccount, f.category(t, "Food"), &zero)
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = f.ledger.UpdateCategoryBudget(ctx, testAccount, "missing", &budget)
	require.ErrorIs(t, err, storage.ErrNotFound)

	cleared, err := f.ledger.UpdateCategoryBudget(ctx, testAccount, f.category(t, "Food"), nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.Budget)
}

func TestAddTransaction_RejectsWithoutStoreCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := f.category(t, "Food")
	today := core.NewDate(2026, 3, 10)

	tests := []struct {
		name    string
		tx      core.Transaction
		wantErr error
	}{
		{"zero amount", expense(food, "Lunch", 0, today), core.ErrInvalidAmount},
		{"negative amount", expense(food, "Lunch", -100, today), core.ErrInvalidAmount},
		{"blank description", expense(food, "   ", 100, today), core.ErrEmptyDescription},
		{"missing date", expense(food, "Lunch", 100, core.Date{}), core.ErrInvalidDate},
		{"income in expense category", core.Transaction{Type: core.Income, Amount: core.NewMoney(1), CategoryID: food, Description: "Refund", Date: today}, core.ErrCategoryKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.AddTransaction(ctx, testAccount, tt.tx)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, f.store.Writes())
	assert.Empty(t, f.pub.Types())
}

func TestTransactionLifecycle_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := f.category(t, "Food")

	tx, err := f.ledger.AddTransaction(ctx, testAccount, expense(food, " Lunch ", 1250, core.NewDate(2026, 3, 10)))
	require.NoError(t, err)
	assert.Equal(t, "Lunch", tx.Description)
	assert.Equal(t, core.OneTime, tx.Recurrence)

	desc := "Dinner"
	updated, err := f.ledger.UpdateTransaction(ctx, testAccount, tx.ID, storage.TransactionUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Dinner", updated.Description)

	require.NoError(t, f.ledger.DeleteTransaction(ctx, testAccount, tx.ID))

	assert.Equal(t, []amqp.EventType{
		amqp.TransactionCreated,
		amqp.TransactionUpdated,
		amqp.TransactionDeleted,
	}, f.pub.Types())
	for _, ev := range f.pub.events {
		assert.Equal(t, testAccount, ev.AccountID)
		assert.Equal(t, tx.ID, ev.Transaction.ID)
	}
}

func TestAddTransaction_FailedWritePublishesNothing(t *testing.T) {
	f := newFixture(t)
	f.store.insertTxErr = errors.New("read-only")

	_, err := f.ledger.AddTransaction(context.Background(), testAccount,
		expense(f.category(t, "Food"), "Lunch", 1250, core.NewDate(2026, 3, 10)))
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Empty(t, f.pub.Types())
}

func TestAddTransaction_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	tx, err := f.ledger.AddTransaction(context.Background(), testAccount,
		expense(f.category(t, "Food"), "Lunch", 1250, core.NewDate(2026, 3, 10)))
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
}

func TestUpdateTransaction_Validates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, err := f.ledger.AddTransaction(ctx, testAccount,
		expense(f.category(t, "Food"), "Lunch", 1250, core.NewDate(2026, 3, 10)))
	require.NoError(t, err)
	writes := f.store.Writes()

	blank := "  "
	_, err = f.ledger.UpdateTransaction(ctx, testAccount, tx.ID, storage.TransactionUpdate{Description: &blank})
	require.ErrorIs(t, err, core.ErrEmptyDescription)
	assert.Equal(t, writes, f.store.Writes())
}

func TestDeleteTransaction_ClearsRecurringLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	re := f.addRecurring(t, "Netflix", 500, 15, core.Monthly)
	tx, err := f.recurring.MarkAsPaid(ctx, testAccount, re.ID, march)
	require.NoError(t, err)

	require.NoError(t, f.ledger.DeleteTransaction(ctx, testAccount, tx.ID))

	got, err := f.store.GetRecurringExpense(ctx, testAccount, re.ID)
	require.NoError(t, err)
	assert.False(t, got.HasLink())
}

func TestSummary_MarchScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := f.category(t, "Food")
	budget := core.NewMoney(5000)
	_, err := f.ledger.UpdateCategoryBudget(ctx, testAccount, food, &budget)
	require.NoError(t, err)

	for _, tx := range []core.Transaction{
		expense(food, "Groceries run", 200000, core.NewDate(2026, 3, 2)),
		expense(food, "Party", 350000, core.NewDate(2026, 3, 18)),
		expense(food, "Last month", 100000, core.NewDate(2026, 2, 27)),
	} {
		_, err := f.ledger.AddTransaction(ctx, testAccount, tx)
		require.NoError(t, err)
	}

	summary, err := f.ledger.Summary(ctx, testAccount, march)
	require.NoError(t, err)
	assert.Equal(t, int64(550000), summary.Totals.Expenses.Cents)
	assert.Equal(t, int64(-550000), summary.Totals.Balance.Cents)

	var line *core.BudgetLine
	for i := range summary.Budgets {
		if summary.Budgets[i].CategoryID == food {
			line = &summary.Budgets[i]
		}
	}
	require.NotNil(t, line)
	assert.Equal(t, int64(550000), line.Spent.Cents)
	assert.Equal(t, "100", line.Percentage.String())
	assert.True(t, line.IsOverBudget)
}

func TestAdjustBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.AddTransaction(ctx, testAccount, core.Transaction{
		Type:        core.Income,
		Amount:      core.NewMoney(1000),
		CategoryID:  f.category(t, "Salary"),
		Description: "Salary",
		Date:        core.NewDate(2026, 3, 1),
	})
	require.NoError(t, err)

	noop, err := f.ledger.AdjustBalance(ctx, testAccount, march, "1000")
	require.NoError(t, err)
	assert.Nil(t, noop)

	invalid, err := f.ledger.AdjustBalance(ctx, testAccount, march, "abc")
	require.NoError(t, err)
	assert.Nil(t, invalid)

	adj, err := f.ledger.AdjustBalance(ctx, testAccount, march, "1500")
	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, core.Income, adj.Type)
	assert.Equal(t, core.NewMoney(500), adj.Amount)
	assert.Equal(t, f.category(t, core.OtherCategoryName), adj.CategoryID)
	assert.Equal(t, core.BalanceAdjustmentDescription, adj.Description)
	assert.Equal(t, core.DateOf(testNow), adj.Date)

	down, err := f.ledger.AdjustBalance(ctx, testAccount, march, "1200,50")
	require.NoError(t, err)
	require.NotNil(t, down)
	assert.Equal(t, core.Expense, down.Type)
	assert.Equal(t, int64(29950), down.Amount.Cents)
}

func TestTransactions_FiltersByPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	food := f.category(t, "Food")
	for _, d := range []core.Date{core.NewDate(2026, 3, 1), core.NewDate(2026, 4, 1), core.NewDate(2026, 3, 9)} {
		_, err := f.ledger.AddTransaction(ctx, testAccount, expense(food, "Lunch", 100, d))
		require.NoError(t, err)
	}

	txs, err := f.ledger.Transactions(ctx, testAccount, march)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "2026-03-09", txs[0].Date.String())

	all, err := f.ledger.Transactions(ctx, testAccount, core.AllTime)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
