package core

import "strings"

// BalanceAdjustmentDescription labels transactions synthesized by a balance edit.
const BalanceAdjustmentDescription = "Balance Adjustment"

// ParseBalance parses a user-entered balance. Unlike amounts it may be
// negative or zero.
func ParseBalance(s string) (Money, error) {
	if strings.TrimSpace(s) == "" {
		return Money{}, ErrInvalidBalanceInput
	}
	d, err := ParseDecimal(s)
	if err != nil {
		return Money{}, ErrInvalidBalanceInput
	}
	m, err := MoneyFromDecimal(d)
	if err != nil {
		return Money{}, ErrInvalidBalanceInput
	}
	return m, nil
}

// PlanBalanceAdjustment returns the one-time transaction that moves current
// to target, filed under category. It reports false when they are equal.
func PlanBalanceAdjustment(current, target Money, categoryID string, today Date) (Transaction, bool) {
	diff := target.Sub(current)
	if diff.IsZero() {
		return Transaction{}, false
	}
	typ := Income
	if diff.Cents < 0 {
		typ = Expense
	}
	return Transaction{
		Type:        typ,
		Amount:      diff.Abs(),
		CategoryID:  categoryID,
		Description: BalanceAdjustmentDescription,
		Date:        today,
		Recurrence:  OneTime,
	}, true
}
