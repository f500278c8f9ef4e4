package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthLabels are the series labels, JAN..DEC.
var MonthLabels = [12]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// ReportRow is one category's reconciliation of spend against its limit.
type ReportRow struct {
	CategoryName string
	AmountSpent  decimal.Decimal
	AmountLimit  decimal.Decimal
	Difference   decimal.Decimal // AmountLimit - AmountSpent, positive = under budget
}

// NewReportRow builds a row keeping Difference consistent with the amounts.
func NewReportRow(name string, spent, limit decimal.Decimal) ReportRow {
	return ReportRow{
		CategoryName: name,
		AmountSpent:  spent,
		AmountLimit:  limit,
		Difference:   limit.Sub(spent),
	}
}

// SeriesPoint is one month bucket of a series.
type SeriesPoint struct {
	Label string
	Total decimal.Decimal
}

// MonthlySeries holds aligned 12-bucket income and expense series for a year.
type MonthlySeries struct {
	Year    int
	Income  []SeriesPoint
	Expense []SeriesPoint
}

// Summary is the month-level table shown above the category details.
type Summary struct {
	TotalIncome     decimal.Decimal
	TotalExpense    decimal.Decimal
	TotalBudget     decimal.Decimal
	ExpectedSavings decimal.Decimal // income - budget
	ActualSavings   decimal.Decimal // income - expense
}

// Report sources.
const (
	SourceLocal  = "local"
	SourceServer = "server"
)

// Sync states of an archived report.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "sync_error"
)

// ReportArchive is a stored snapshot of a monthly report.
type ReportArchive struct {
	ID         int64
	UserID     int64
	Year       int
	Month      int
	Source     string
	Version    int64
	SyncStatus string
	Summary    Summary
	Rows       []ReportRow
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TotalSpent sums AmountSpent over the rows.
func (a ReportArchive) TotalSpent() decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.Rows {
		total = total.Add(r.AmountSpent)
	}
	return total
}

// TotalLimit sums AmountLimit over the rows.
func (a ReportArchive) TotalLimit() decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.Rows {
		total = total.Add(r.AmountLimit)
	}
	return total
}

// MonthReport is the assembled report for one month as served to callers.
type MonthReport struct {
	Year     int
	Month    int
	Rows     []ReportRow
	Summary  Summary
	Source   string
	Partial  bool // some inputs failed and were replaced with empty sets
	Warnings []string
}

// Archive snapshots the report for userID. Version and sync status are set by
// the store.
func (r MonthReport) Archive(userID int64) ReportArchive {
	rows := make([]ReportRow, len(r.Rows))
	copy(rows, r.Rows)
	return ReportArchive{
		UserID:  userID,
		Year:    r.Year,
		Month:   r.Month,
		Source:  r.Source,
		Summary: r.Summary,
		Rows:    rows,
	}
}
