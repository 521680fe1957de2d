package core

import (
	"errors"
	"testing"
)

func TestPlanBalanceAdjustment(t *testing.T) {
	today := NewDate(2026, 3, 10)

	tx, ok := PlanBalanceAdjustment(NewMoney(1000), NewMoney(1500), "other", today)
	if !ok {
		t.Fatalf("expected an adjustment")
	}
	if tx.Type != Income || tx.Amount != NewMoney(500) || tx.CategoryID != "other" ||
		tx.Description != BalanceAdjustmentDescription || tx.Recurrence != OneTime || tx.Date != today {
		t.Fatalf("unexpected adjustment %+v", tx)
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("adjustment must be valid, got %v", err)
	}

	tx, ok = PlanBalanceAdjustment(NewMoney(1000), NewMoney(-250), "other", today)
	if !ok || tx.Type != Expense || tx.Amount != NewMoney(1250) {
		t.Fatalf("expected expense of 1250, got %+v", tx)
	}

	if _, ok := PlanBalanceAdjustment(NewMoney(1000), NewMoney(1000), "other", today); ok {
		t.Fatalf("equal balances must not produce a transaction")
	}
}

func TestParseBalance(t *testing.T) {
	for in, want := range map[string]int64{"1500": 150000, "-20,5": -2050, "0": 0} {
		got, err := ParseBalance(in)
		if err != nil || got.Cents != want {
			t.Fatalf("%q expected %d, got %d (err=%v)", in, want, got.Cents, err)
		}
	}
	for _, in := range []string{"", "NaN", "abc"} {
		if _, err := ParseBalance(in); !errors.Is(err, ErrInvalidBalanceInput) {
			t.Fatalf("%q expected ErrInvalidBalanceInput, got %v", in, err)
		}
	}
}
