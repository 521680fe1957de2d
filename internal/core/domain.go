package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	OneTime Recurrence = "one-time"
	Daily   Recurrence = "daily"
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
	Yearly  Recurrence = "yearly"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	KindIncome  CategoryKind = "income"
	KindExpense CategoryKind = "expense"
	KindBoth    CategoryKind = "both"
)

// MaxDescriptionLength bounds transaction and recurring expense descriptions.
const MaxDescriptionLength = 200

// PaymentDayLimit is the latest day of month a recurring payment is booked on,
// valid in every month.
const PaymentDayLimit = 28

const dateLayout = "2006-01-02"

type (
	Recurrence      string
	TransactionType string
	CategoryKind    string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID     string       `json:"id"`
		Name   string       `json:"name"`
		Icon   string       `json:"icon"`
		Color  string       `json:"color"`
		Kind   CategoryKind `json:"kind"`
		Budget *Money       `json:"budget,omitempty"` // monthly ceiling, expense kinds only
	}

	Transaction struct {
		ID          string          `json:"id"`
		Type        TransactionType `json:"type"`
		Amount      Money           `json:"amount"`
		CategoryID  string          `json:"categoryId"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		Recurrence  Recurrence      `json:"recurrence"`
		// RecurringExpenseID is set when the transaction was generated by
		// marking a recurring expense as paid.
		RecurringExpenseID string    `json:"recurringExpenseId,omitempty"`
		CreatedAt          time.Time `json:"createdAt"`
	}

	RecurringExpense struct {
		ID          string     `json:"id"`
		Description string     `json:"description"`
		Amount      Money      `json:"amount"`
		CategoryID  string     `json:"categoryId"`
		DueDay      int        `json:"dueDay"`
		Recurrence  Recurrence `json:"recurrence"`

		LinkedTransactionID string `json:"linkedTransactionId,omitempty"`
		PaidForMonth        int    `json:"paidForMonth,omitempty"` // 1-12
		PaidForYear         int    `json:"paidForYear,omitempty"`

		CreatedAt time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidRecurrence   = errors.New("invalid recurrence")
	ErrInvalidDueDay       = errors.New("due day must be between 1 and 31")
	ErrEmptyCategory       = errors.New("empty category")
	ErrUnknownCategory     = errors.New("unknown category")
	ErrCategoryKind        = errors.New("category does not accept this transaction type")
	ErrBudgetNotAllowed    = errors.New("income categories cannot carry a budget")
	ErrPeriodRequired      = errors.New("a month period is required")
	ErrInvalidPeriod       = errors.New("invalid period")
	ErrInvalidBalanceInput = errors.New("invalid balance")
)

var validationErrors = []error{
	ErrInvalidDay, ErrInvalidMonth, ErrInvalidDate, ErrInvalidAmount,
	ErrEmptyDescription, ErrDescriptionTooLong, ErrInvalidType, ErrInvalidRecurrence,
	ErrInvalidDueDay, ErrEmptyCategory, ErrUnknownCategory, ErrCategoryKind,
	ErrBudgetNotAllowed, ErrPeriodRequired, ErrInvalidPeriod, ErrInvalidBalanceInput,
}

// IsValidation reports whether err stems from input validation, meaning no
// store call was attempted.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (r Recurrence) Valid() bool {
	switch r {
	case OneTime, Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Repeats reports whether r describes a repeating obligation.
func (r Recurrence) Repeats() bool {
	return r.Valid() && r != OneTime
}

func (k CategoryKind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindBoth:
		return true
	}
	return false
}

// Accepts reports whether transactions of type t may be filed under c.
func (c Category) Accepts(t TransactionType) bool {
	switch c.Kind {
	case KindBoth:
		return true
	case KindIncome:
		return t == Income
	case KindExpense:
		return t == Expense
	}
	return false
}

// ValidateBudget checks a budget before it is stored on c. A nil budget clears it.
func (c Category) ValidateBudget(budget *Money) error {
	if budget == nil {
		return nil
	}
	if c.Kind == KindIncome {
		return ErrBudgetNotAllowed
	}
	return budget.Validate()
}

// HasBudget reports whether c carries a positive monthly budget.
func (c Category) HasBudget() bool {
	return c.Kind != KindIncome && c.Budget != nil && c.Budget.Cents > 0
}

func validateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return ErrEmptyDescription
	}
	if len(s) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Recurrence.Valid() {
		return ErrInvalidRecurrence
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// SignedAmount returns the amount as it affects the balance.
func (t Transaction) SignedAmount() Money {
	if t.Type == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}

func (re RecurringExpense) Validate() error {
	if err := validateDescription(re.Description); err != nil {
		return err
	}
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if re.DueDay < 1 || re.DueDay > 31 {
		return ErrInvalidDueDay
	}
	if !re.Recurrence.Repeats() {
		return ErrInvalidRecurrence
	}
	if strings.TrimSpace(re.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// HasLink reports whether a payment link is stored, for any period.
func (re RecurringExpense) HasLink() bool {
	return re.LinkedTransactionID != ""
}

// PaidFor reports whether the stored payment link is attributed to p.
// It does not check that the linked transaction still exists.
func (re RecurringExpense) PaidFor(p Period) bool {
	if p.IsAll() || !re.HasLink() {
		return false
	}
	return re.PaidForMonth == int(p.Month) && re.PaidForYear == p.Year
}

// PaymentDate is the date of the transaction booked when re is paid for p.
func (re RecurringExpense) PaymentDate(p Period) Date {
	day := min(re.DueDay, PaymentDayLimit)
	if day < 1 {
		day = 1
	}
	return NewDate(p.Year, int(p.Month), day)
}

// PaymentTransaction builds the expense booked when re is paid for p.
func (re RecurringExpense) PaymentTransaction(p Period) Transaction {
	return Transaction{
		Type:               Expense,
		Amount:             re.Amount,
		CategoryID:         re.CategoryID,
		Description:        re.Description,
		Date:               re.PaymentDate(p),
		Recurrence:         re.Recurrence,
		RecurringExpenseID: re.ID,
	}
}
