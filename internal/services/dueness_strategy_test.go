package services

import (
	"testing"
	"time"

	"bilancio/internal/core"
)

func TestDailyAndWeeklyDue(t *testing.T) {
	p := core.MonthPeriod(2026, time.March)
	re := core.RecurringExpense{DueDay: 20}

	for _, strategy := range []DueDateStrategy{DailyDue{}, WeeklyDue{}} {
		got, ok := strategy.DueDate(re, p)
		if !ok {
			t.Fatalf("%T: expected due", strategy)
		}
		if got.String() != "2026-03-01" {
			t.Errorf("%T: DueDate() = %s, want 2026-03-01", strategy, got)
		}
	}
}

func TestMonthlyDue(t *testing.T) {
	tests := []struct {
		name   string
		dueDay int
		period core.Period
		want   string
	}{
		{
			name:   "regular day",
			dueDay: 15,
			period: core.MonthPeriod(2026, time.March),
			want:   "2026-03-15",
		},
		{
			name:   "day 31 in a 30-day month",
			dueDay: 31,
			period: core.MonthPeriod(2026, time.April),
			want:   "2026-04-30",
		},
		{
			name:   "day 30 in february",
			dueDay: 30,
			period: core.MonthPeriod(2026, time.February),
			want:   "2026-02-28",
		},
		{
			name:   "day 29 in leap february",
			dueDay: 29,
			period: core.MonthPeriod(2028, time.February),
			want:   "2028-02-29",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MonthlyDue{}.DueDate(core.RecurringExpense{DueDay: tt.dueDay}, tt.period)
			if !ok {
				t.Fatal("expected due")
			}
			if got.String() != tt.want {
				t.Errorf("MonthlyDue.DueDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestYearlyDue(t *testing.T) {
	re := core.RecurringExpense{
		DueDay:    10,
		CreatedAt: time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		period  core.Period
		wantOK  bool
		wantDue string
	}{
		{
			name:    "creation month",
			period:  core.MonthPeriod(2026, time.June),
			wantOK:  true,
			wantDue: "2026-06-10",
		},
		{
			name:   "other month",
			period: core.MonthPeriod(2026, time.July),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := YearlyDue{}.DueDate(re, tt.period)
			if ok != tt.wantOK {
				t.Fatalf("YearlyDue.DueDate() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.String() != tt.wantDue {
				t.Errorf("YearlyDue.DueDate() = %s, want %s", got, tt.wantDue)
			}
		})
	}
}

func TestEvaluateDue(t *testing.T) {
	p := core.MonthPeriod(2026, time.March)
	re := core.RecurringExpense{DueDay: 10, Recurrence: core.Monthly}

	tests := []struct {
		name        string
		paid        bool
		now         time.Time
		wantOverdue bool
	}{
		{
			name:        "unpaid after due date",
			now:         time.Date(2026, time.March, 11, 8, 0, 0, 0, time.UTC),
			wantOverdue: true,
		},
		{
			name:        "unpaid on due date",
			now:         time.Date(2026, time.March, 10, 23, 0, 0, 0, time.UTC),
			wantOverdue: false,
		},
		{
			name:        "paid after due date",
			paid:        true,
			now:         time.Date(2026, time.March, 20, 8, 0, 0, 0, time.UTC),
			wantOverdue: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateDue(re, p, tt.paid, tt.now)
			if !got.IsDue {
				t.Fatal("expected due")
			}
			if got.IsOverdue != tt.wantOverdue {
				t.Errorf("IsOverdue = %v, want %v", got.IsOverdue, tt.wantOverdue)
			}
		})
	}
}

func TestEvaluateDue_UnknownRecurrence(t *testing.T) {
	got := evaluateDue(core.RecurringExpense{DueDay: 1, Recurrence: core.OneTime},
		core.MonthPeriod(2026, time.March), false, time.Now())
	if got.IsDue || got.IsOverdue {
		t.Errorf("evaluateDue() = %+v, want zero state", got)
	}
}

func TestGetDueDateStrategy(t *testing.T) {
	tests := []struct {
		recurrence core.Recurrence
		wantErr    bool
	}{
		{core.Daily, false},
		{core.Weekly, false},
		{core.Monthly, false},
		{core.Yearly, false},
		{core.OneTime, true},
		{core.Recurrence("hourly"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.recurrence), func(t *testing.T) {
			strategy, err := GetDueDateStrategy(tt.recurrence)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetDueDateStrategy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && strategy == nil {
				t.Error("GetDueDateStrategy() returned nil strategy")
			}
		})
	}
}

type fixedDue struct{ day int }

func (f fixedDue) DueDate(_ core.RecurringExpense, p core.Period) (core.Date, bool) {
	return core.NewDate(p.Year, int(p.Month), f.day), true
}

func TestRegisterDueDateStrategy(t *testing.T) {
	custom := core.Recurrence("biweekly")
	RegisterDueDateStrategy(custom, fixedDue{day: 14})
	t.Cleanup(func() { delete(dueDateStrategies, custom) })

	strategy, err := GetDueDateStrategy(custom)
	if err != nil {
		t.Fatalf("GetDueDateStrategy() error = %v", err)
	}
	got, _ := strategy.DueDate(core.RecurringExpense{}, core.MonthPeriod(2026, time.May))
	if got.String() != "2026-05-14" {
		t.Errorf("DueDate() = %s, want 2026-05-14", got)
	}
}
