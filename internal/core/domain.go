package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeUnknown CategoryType = ""
	TypeExpense CategoryType = "expense"
	TypeIncome  CategoryType = "income"
	// TypeOther is a tag that was present but matched no alias. Unlike
	// TypeUnknown it still takes precedence over the category table.
	TypeOther CategoryType = "other"
)

// DateLayout is the calendar-day format used by the backend (YYYY-MM-DD).
const DateLayout = "2006-01-02"

type (
	// CategoryType tags a category as contributing to income or expense totals.
	CategoryType string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID           int64
		UserID       int64
		CategoryID   int64
		CategoryName string
		Type         CategoryType // embedded tag, takes precedence over the category lookup
		Amount       decimal.Decimal
		Description  string
		Date         Date // zero when the backend sent no usable date
	}

	Category struct {
		ID   int64
		Name string
		Type CategoryType
	}

	BudgetLimit struct {
		ID            int64
		CategoryID    int64
		CategoryName  string
		Limit         decimal.Decimal
		StartDate     Date
		EndDate       Date
		CurrentAmount decimal.Decimal // derived from transactions, never persisted
	}

	User struct {
		ID       int64
		Username string
		Email    string
		FullName string
		Roles    []string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidCategory  = errors.New("invalid category id")
)

// IsKnown reports whether t is Income or Expense.
func (t CategoryType) IsKnown() bool {
	return t == TypeExpense || t == TypeIncome
}

func (t CategoryType) String() string {
	if t == TypeUnknown {
		return "unknown"
	}
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. Timestamps with a time part are
// truncated to their calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, ErrInvalidDate
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String formats the date as YYYY-MM-DD, or "" when empty.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ValidateYearMonth checks a report period.
func ValidateYearMonth(year, month int) error {
	if year < 1900 || year > 9999 {
		return ErrInvalidYear
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// MonthRange returns the first and last calendar day of the month.
func MonthRange(year, month int) (Date, Date) {
	first := NewDate(year, month, 1)
	last := Date{Time: first.AddDate(0, 1, -1)}
	return first, last
}

// YearRange returns Jan 1 and Dec 31 of the year.
func YearRange(year int) (Date, Date) {
	return NewDate(year, 1, 1), NewDate(year, 12, 31)
}

func (t Transaction) Validate() error {
	if t.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 255 {
		return errors.New("description too long (max 255 characters)")
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (b BudgetLimit) Validate() error {
	if strings.TrimSpace(b.CategoryName) == "" {
		return ErrEmptyCategory
	}
	if b.Limit.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}
