package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals are the income, expense and balance sums over a transaction set.
type Totals struct {
	Income   Money `json:"income"`
	Expenses Money `json:"expenses"`
	Balance  Money `json:"balance"`
}

// CategoryAmount represents an expense amount aggregated by category.
type CategoryAmount struct {
	CategoryID string `json:"categoryId"`
	Amount     Money  `json:"amount"`
}

// BudgetLine is the spend-vs-budget state of one category.
type BudgetLine struct {
	CategoryID   string          `json:"categoryId"`
	Name         string          `json:"name"`
	Spent        Money           `json:"spent"`
	Budget       Money           `json:"budget"`
	Percentage   decimal.Decimal `json:"percentage"` // capped at 100
	IsOverBudget bool            `json:"isOverBudget"`
}

// Summary is a compact overview of a period.
type Summary struct {
	Period     Period           `json:"period"`
	Totals     Totals           `json:"totals"`
	ByCategory []CategoryAmount `json:"byCategory"`
	Budgets    []BudgetLine     `json:"budgets"`
}

// FilterByPeriod returns the transactions dated inside p, keeping their order.
func FilterByPeriod(txs []Transaction, p Period) []Transaction {
	if p.IsAll() {
		return slices.Clone(txs)
	}
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if p.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

func ComputeTotals(txs []Transaction) Totals {
	var tot Totals
	for _, t := range txs {
		switch t.Type {
		case Income:
			tot.Income = tot.Income.Add(t.Amount)
		case Expense:
			tot.Expenses = tot.Expenses.Add(t.Amount)
		}
	}
	tot.Balance = tot.Income.Sub(tot.Expenses)
	return tot
}

// ExpensesByCategory sums expenses per category, largest first. Ties keep the
// order in which categories first appear in txs.
func ExpensesByCategory(txs []Transaction) []CategoryAmount {
	index := make(map[string]int)
	var out []CategoryAmount
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		i, ok := index[t.CategoryID]
		if !ok {
			i = len(out)
			index[t.CategoryID] = i
			out = append(out, CategoryAmount{CategoryID: t.CategoryID})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	slices.SortStableFunc(out, func(a, b CategoryAmount) int {
		return cmp.Compare(b.Amount.Cents, a.Amount.Cents)
	})
	return out
}

// BudgetProgress reports spending against every category that carries a
// positive budget, highest percentage first.
func BudgetProgress(txs []Transaction, categories []Category) []BudgetLine {
	spent := make(map[string]Money)
	for _, t := range txs {
		if t.Type == Expense {
			spent[t.CategoryID] = spent[t.CategoryID].Add(t.Amount)
		}
	}

	var out []BudgetLine
	for _, c := range categories {
		if !c.HasBudget() {
			continue
		}
		s := spent[c.ID]
		if s.Cents <= 0 && c.Budget.Cents <= 0 {
			continue
		}
		out = append(out, BudgetLine{
			CategoryID:   c.ID,
			Name:         c.Name,
			Spent:        s,
			Budget:       *c.Budget,
			Percentage:   percentOf(s, *c.Budget),
			IsOverBudget: s.Cents > c.Budget.Cents,
		})
	}
	slices.SortStableFunc(out, func(a, b BudgetLine) int {
		return b.Percentage.Cmp(a.Percentage)
	})
	return out
}

// Summarize runs every aggregation over txs scoped to p.
func Summarize(txs []Transaction, categories []Category, p Period) Summary {
	filtered := FilterByPeriod(txs, p)
	return Summary{
		Period:     p,
		Totals:     ComputeTotals(filtered),
		ByCategory: ExpensesByCategory(filtered),
		Budgets:    BudgetProgress(filtered, categories),
	}
}

func percentOf(spent, budget Money) decimal.Decimal {
	pct := spent.Decimal().Div(budget.Decimal()).Mul(hundred).Round(2)
	return decimal.Min(pct, hundred)
}
