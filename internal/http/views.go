package http

import (
	"time"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
	"finreport/internal/services"
)

// JSON shapes of the API. Amounts are encoded as decimal strings.

type rowView struct {
	CategoryName string          `json:"categoryName"`
	AmountSpent  decimal.Decimal `json:"amountSpent"`
	AmountLimit  decimal.Decimal `json:"amountLimit"`
	Difference   decimal.Decimal `json:"difference"`
}

type summaryView struct {
	TotalIncome     decimal.Decimal `json:"totalIncome"`
	TotalExpense    decimal.Decimal `json:"totalExpense"`
	TotalBudget     decimal.Decimal `json:"totalBudget"`
	ExpectedSavings decimal.Decimal `json:"expectedSavings"`
	ActualSavings   decimal.Decimal `json:"actualSavings"`
}

type reportView struct {
	Year     int         `json:"year"`
	Month    int         `json:"month"`
	Source   string      `json:"source"`
	Partial  bool        `json:"partial"`
	Warnings []string    `json:"warnings,omitempty"`
	Summary  summaryView `json:"summary"`
	Rows     []rowView   `json:"rows"`
}

type pointView struct {
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
}

type seriesView struct {
	Year     int         `json:"year"`
	Income   []pointView `json:"income"`
	Expense  []pointView `json:"expense"`
	Partial  bool        `json:"partial"`
	Warnings []string    `json:"warnings,omitempty"`
}

type budgetView struct {
	ID            int64           `json:"id"`
	CategoryID    int64           `json:"categoryId"`
	CategoryName  string          `json:"categoryName"`
	Limit         decimal.Decimal `json:"limit"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	StartDate     string          `json:"startDate,omitempty"`
	EndDate       string          `json:"endDate,omitempty"`
}

type archiveView struct {
	ID         int64       `json:"id"`
	Year       int         `json:"year"`
	Month      int         `json:"month"`
	Source     string      `json:"source"`
	Version    int64       `json:"version"`
	SyncStatus string      `json:"syncStatus"`
	Summary    summaryView `json:"summary"`
	Rows       []rowView   `json:"rows,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type userView struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type loginView struct {
	AccessToken string     `json:"accessToken"`
	TokenType   string     `json:"tokenType,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	User        *userView  `json:"user,omitempty"`
}

type expenseView struct {
	ID           int64           `json:"id"`
	CategoryID   int64           `json:"categoryId"`
	CategoryName string          `json:"categoryName,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Date         string          `json:"date,omitempty"`
}

type avatarView struct {
	Initials string `json:"initials"`
	DataURI  string `json:"dataUri"`
}

func newRowViews(rows []core.ReportRow) []rowView {
	out := make([]rowView, len(rows))
	for i, r := range rows {
		out[i] = rowView{
			CategoryName: r.CategoryName,
			AmountSpent:  r.AmountSpent,
			AmountLimit:  r.AmountLimit,
			Difference:   r.Difference,
		}
	}
	return out
}

func newSummaryView(s core.Summary) summaryView {
	return summaryView{
		TotalIncome:     s.TotalIncome,
		TotalExpense:    s.TotalExpense,
		TotalBudget:     s.TotalBudget,
		ExpectedSavings: s.ExpectedSavings,
		ActualSavings:   s.ActualSavings,
	}
}

func newReportView(rep core.MonthReport) reportView {
	return reportView{
		Year:     rep.Year,
		Month:    rep.Month,
		Source:   rep.Source,
		Partial:  rep.Partial,
		Warnings: rep.Warnings,
		Summary:  newSummaryView(rep.Summary),
		Rows:     newRowViews(rep.Rows),
	}
}

func newPointViews(points []core.SeriesPoint) []pointView {
	out := make([]pointView, len(points))
	for i, p := range points {
		out[i] = pointView{Label: p.Label, Total: p.Total}
	}
	return out
}

func newSeriesView(sr services.SeriesReport) seriesView {
	return seriesView{
		Year:     sr.Series.Year,
		Income:   newPointViews(sr.Series.Income),
		Expense:  newPointViews(sr.Series.Expense),
		Partial:  sr.Partial,
		Warnings: sr.Warnings,
	}
}

func newBudgetViews(limits []core.BudgetLimit) []budgetView {
	out := make([]budgetView, len(limits))
	for i, b := range limits {
		v := budgetView{
			ID:            b.ID,
			CategoryID:    b.CategoryID,
			CategoryName:  b.CategoryName,
			Limit:         b.Limit,
			CurrentAmount: b.CurrentAmount,
		}
		if !b.StartDate.IsEmpty() {
			v.StartDate = b.StartDate.String()
		}
		if !b.EndDate.IsEmpty() {
			v.EndDate = b.EndDate.String()
		}
		out[i] = v
	}
	return out
}

func newArchiveView(a core.ReportArchive) archiveView {
	v := archiveView{
		ID:         a.ID,
		Year:       a.Year,
		Month:      a.Month,
		Source:     a.Source,
		Version:    a.Version,
		SyncStatus: a.SyncStatus,
		Summary:    newSummaryView(a.Summary),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if len(a.Rows) > 0 {
		v.Rows = newRowViews(a.Rows)
	}
	return v
}

func newExpenseView(tx core.Transaction) expenseView {
	v := expenseView{
		ID:           tx.ID,
		CategoryID:   tx.CategoryID,
		CategoryName: tx.CategoryName,
		Amount:       tx.Amount,
		Description:  tx.Description,
	}
	if !tx.Date.IsEmpty() {
		v.Date = tx.Date.String()
	}
	return v
}

func newExpenseViews(txs []core.Transaction) []expenseView {
	out := make([]expenseView, len(txs))
	for i, tx := range txs {
		out[i] = newExpenseView(tx)
	}
	return out
}

func newUserView(u core.User) *userView {
	if u.ID == 0 && u.Username == "" && u.Email == "" {
		return nil
	}
	return &userView{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Roles:    u.Roles,
	}
}
