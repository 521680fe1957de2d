package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(cat string, units int64, d Date) Transaction {
	return Transaction{Type: Expense, Amount: NewMoney(units), CategoryID: cat, Description: "e", Date: d, Recurrence: OneTime}
}

func income(cat string, units int64, d Date) Transaction {
	return Transaction{Type: Income, Amount: NewMoney(units), CategoryID: cat, Description: "i", Date: d, Recurrence: OneTime}
}

func TestFilterByPeriod(t *testing.T) {
	txs := []Transaction{
		expense("food", 10, NewDate(2026, 3, 1)),
		expense("food", 20, NewDate(2026, 4, 1)),
		expense("food", 30, NewDate(2025, 3, 31)),
	}

	assert.Len(t, FilterByPeriod(txs, AllTime), 3)

	march := FilterByPeriod(txs, MonthPeriod(2026, time.March))
	require.Len(t, march, 1)
	assert.Equal(t, NewMoney(10), march[0].Amount)

	assert.Empty(t, FilterByPeriod(txs, MonthPeriod(2026, time.May)))
}

func TestComputeTotals(t *testing.T) {
	d := NewDate(2026, 3, 1)
	got := ComputeTotals([]Transaction{
		income("salary", 3000, d),
		expense("food", 200, d),
		expense("bills", 300, d),
	})
	assert.Equal(t, Totals{Income: NewMoney(3000), Expenses: NewMoney(500), Balance: NewMoney(2500)}, got)

	assert.Equal(t, Totals{}, ComputeTotals(nil))
}

func TestExpensesByCategory(t *testing.T) {
	d := NewDate(2026, 3, 1)
	got := ExpensesByCategory([]Transaction{
		expense("transport", 100, d),
		expense("food", 300, d),
		income("salary", 9000, d),
		expense("bills", 100, d),
		expense("health", 250, d),
	})

	require.Len(t, got, 4)
	assert.Equal(t, "food", got[0].CategoryID)
	assert.Equal(t, "health", got[1].CategoryID)
	// equal totals keep first-seen order
	assert.Equal(t, "transport", got[2].CategoryID)
	assert.Equal(t, "bills", got[3].CategoryID)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Amount.Cents, got[i].Amount.Cents)
	}
}

func TestBudgetProgress(t *testing.T) {
	food := Category{ID: "food", Name: "Food", Kind: KindExpense, Budget: budget(5000)}
	bills := Category{ID: "bills", Name: "Bills", Kind: KindExpense, Budget: budget(5000)}
	salary := Category{ID: "salary", Name: "Salary", Kind: KindIncome}
	noBudget := Category{ID: "misc", Name: "Misc", Kind: KindExpense}
	d := NewDate(2026, 3, 1)

	t.Run("over budget is capped at 100", func(t *testing.T) {
		lines := BudgetProgress([]Transaction{expense("food", 6000, d)}, []Category{food})
		require.Len(t, lines, 1)
		assert.True(t, lines[0].Percentage.Equal(decimal.NewFromInt(100)))
		assert.True(t, lines[0].IsOverBudget)
		assert.Equal(t, NewMoney(6000), lines[0].Spent)
	})

	t.Run("half spent", func(t *testing.T) {
		lines := BudgetProgress([]Transaction{expense("food", 2500, d)}, []Category{food})
		require.Len(t, lines, 1)
		assert.True(t, lines[0].Percentage.Equal(decimal.NewFromInt(50)))
		assert.False(t, lines[0].IsOverBudget)
	})

	t.Run("two decimals", func(t *testing.T) {
		third := Category{ID: "food", Kind: KindExpense, Budget: budget(3)}
		lines := BudgetProgress([]Transaction{expense("food", 1, d)}, []Category{third})
		require.Len(t, lines, 1)
		assert.Equal(t, "33.33", lines[0].Percentage.String())
	})

	t.Run("only budgeted categories, sorted by percentage", func(t *testing.T) {
		lines := BudgetProgress([]Transaction{
			expense("food", 1000, d),
			expense("bills", 4000, d),
			expense("misc", 999, d),
		}, []Category{food, salary, noBudget, bills})
		require.Len(t, lines, 2)
		assert.Equal(t, "bills", lines[0].CategoryID)
		assert.Equal(t, "food", lines[1].CategoryID)
	})

	t.Run("budget with no spend is kept", func(t *testing.T) {
		lines := BudgetProgress(nil, []Category{food})
		require.Len(t, lines, 1)
		assert.True(t, lines[0].Percentage.IsZero())
	})
}

func TestSummarizeMarchScenario(t *testing.T) {
	food := Category{ID: "food", Name: "Food", Kind: KindExpense, Budget: budget(5000)}
	txs := []Transaction{
		expense("food", 2000, NewDate(2026, 3, 3)),
		expense("food", 3500, NewDate(2026, 3, 20)),
		expense("food", 9999, NewDate(2026, 4, 2)),
	}

	s := Summarize(txs, []Category{food}, MonthPeriod(2026, time.March))
	require.Len(t, s.Budgets, 1)
	line := s.Budgets[0]
	assert.Equal(t, NewMoney(5500), line.Spent)
	assert.Equal(t, NewMoney(5000), line.Budget)
	assert.True(t, line.Percentage.Equal(decimal.NewFromInt(100)))
	assert.True(t, line.IsOverBudget)
	assert.Equal(t, NewMoney(-5500), s.Totals.Balance)
	require.Len(t, s.ByCategory, 1)
	assert.Equal(t, NewMoney(5500), s.ByCategory[0].Amount)
}
