package core

import (
	"fmt"
	"strings"
	"time"
)

const periodLayout = "2006-01"

// Period scopes which transactions are visible and which month recurring
// expenses are evaluated against. The zero value means "all time".
type Period struct {
	Year  int
	Month time.Month // 0 for all time
}

// AllTime is the unscoped period.
var AllTime = Period{}

// MonthPeriod returns the period for year and month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the month period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod accepts "all", an empty string (all time) or "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllTime, nil
	}
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return PeriodOf(t), nil
}

func (p Period) IsAll() bool {
	return p.Month == 0
}

func (p Period) Validate() error {
	if p.IsAll() {
		return nil
	}
	if p.Month < time.January || p.Month > time.December || p.Year < 1 {
		return ErrInvalidPeriod
	}
	return nil
}

// RequireMonth fails unless p names a single month.
func (p Period) RequireMonth() error {
	if p.IsAll() {
		return ErrPeriodRequired
	}
	return p.Validate()
}

// OrCurrent resolves the all-time period to the month containing now.
func (p Period) OrCurrent(now time.Time) Period {
	if p.IsAll() {
		return PeriodOf(now)
	}
	return p
}

// Contains reports whether d falls inside p.
func (p Period) Contains(d Date) bool {
	if p.IsAll() {
		return true
	}
	return d.Year() == p.Year && d.Month() == p.Month
}

// FirstDay returns the first calendar day of a month period.
func (p Period) FirstDay() Date {
	return NewDate(p.Year, int(p.Month), 1)
}

// LastDay returns the number of days in a month period.
func (p Period) LastDay() int {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (p Period) String() string {
	if p.IsAll() {
		return "all"
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
