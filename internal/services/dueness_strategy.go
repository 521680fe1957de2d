// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring expense due dates.
// Each recurrence (daily, weekly, monthly, yearly) has its own strategy that
// decides whether and when an obligation falls due inside a month period.

package services

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// DueDateStrategy is the strategy interface for placing a recurring expense
// inside a month period.
type DueDateStrategy interface {
	// DueDate returns the date re falls due within p, or false when re is not
	// due at all in p.
	DueDate(re core.RecurringExpense, p core.Period) (core.Date, bool)
}

// DailyDue implements DueDateStrategy for daily obligations.
type DailyDue struct{}

// DueDate is the first day of the period: a daily bill is due all month.
func (DailyDue) DueDate(_ core.RecurringExpense, p core.Period) (core.Date, bool) {
	return p.FirstDay(), true
}

// WeeklyDue implements DueDateStrategy for weekly obligations.
type WeeklyDue struct{}

// DueDate is the first day of the period.
func (WeeklyDue) DueDate(_ core.RecurringExpense, p core.Period) (core.Date, bool) {
	return p.FirstDay(), true
}

// MonthlyDue implements DueDateStrategy for monthly obligations.
type MonthlyDue struct{}

// DueDate is the due day, moved back to the last day of short months.
func (MonthlyDue) DueDate(re core.RecurringExpense, p core.Period) (core.Date, bool) {
	return clampedDueDate(re.DueDay, p), true
}

// YearlyDue implements DueDateStrategy for yearly obligations.
type YearlyDue struct{}

// DueDate applies only in the month the obligation was created in.
func (YearlyDue) DueDate(re core.RecurringExpense, p core.Period) (core.Date, bool) {
	if re.CreatedAt.IsZero() || re.CreatedAt.Month() != p.Month {
		return core.Date{}, false
	}
	return clampedDueDate(re.DueDay, p), true
}

func clampedDueDate(dueDay int, p core.Period) core.Date {
	return core.NewDate(p.Year, int(p.Month), max(1, min(dueDay, p.LastDay())))
}

// dueDateStrategies maps recurrences to their corresponding strategies.
var dueDateStrategies = map[core.Recurrence]DueDateStrategy{
	core.Daily:   DailyDue{},
	core.Weekly:  WeeklyDue{},
	core.Monthly: MonthlyDue{},
	core.Yearly:  YearlyDue{},
}

// GetDueDateStrategy returns the strategy for a recurrence.
// Returns an error if the recurrence is not supported.
func GetDueDateStrategy(r core.Recurrence) (DueDateStrategy, error) {
	strategy, ok := dueDateStrategies[r]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence: %s", r)
	}
	return strategy, nil
}

// RegisterDueDateStrategy registers a strategy for a new recurrence.
func RegisterDueDateStrategy(r core.Recurrence, strategy DueDateStrategy) {
	dueDateStrategies[r] = strategy
}

// dueState is where a recurring expense stands in a period on a given day.
type dueState struct {
	DueDate   core.Date
	IsDue     bool
	IsOverdue bool
}

func evaluateDue(re core.RecurringExpense, p core.Period, paid bool, now time.Time) dueState {
	strategy, err := GetDueDateStrategy(re.Recurrence)
	if err != nil {
		return dueState{}
	}
	date, due := strategy.DueDate(re, p)
	if !due {
		return dueState{}
	}
	today := core.DateOf(now)
	return dueState{
		DueDate:   date,
		IsDue:     true,
		IsOverdue: !paid && date.Before(today.Time),
	}
}
