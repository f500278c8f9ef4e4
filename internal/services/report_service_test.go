package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"finreport/internal/api"
	"finreport/internal/core"
)

type fakeBackend struct {
	mu sync.Mutex

	txs        []core.Transaction
	categories []core.Category
	limits     []core.BudgetLimit
	server     api.ServerReport

	txErr, categoryErr, budgetErr, serverErr error

	categoryCalls atomic.Int32
	serverCalls   atomic.Int32
	updated       map[string]decimal.Decimal
}

func (f *fakeBackend) ListExpensesBetween(_ context.Context, _ *api.Session, start, end core.Date) ([]core.Transaction, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	var out []core.Transaction
	for _, tx := range f.txs {
		if tx.Date.Before(start.Time) || tx.Date.After(end.Time) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (f *fakeBackend) ListCategories(context.Context, *api.Session) ([]core.Category, error) {
	f.categoryCalls.Add(1)
	return f.categories, f.categoryErr
}

func (f *fakeBackend) ListMyBudgets(context.Context, *api.Session) ([]core.BudgetLimit, error) {
	return f.limits, f.budgetErr
}

func (f *fakeBackend) UpdateBudgetLimit(_ context.Context, _ *api.Session, name string, limit decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = make(map[string]decimal.Decimal)
	}
	f.updated[name] = limit
	return nil
}

func (f *fakeBackend) GenerateReport(context.Context, *api.Session, int, int) (api.ServerReport, error) {
	f.serverCalls.Add(1)
	return f.server, f.serverErr
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func date(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func userSession(id int64) *api.Session {
	s := api.NewSession("")
	s.SetUser(core.User{ID: id})
	return s
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		categories: []core.Category{
			{ID: 1, Name: "Ăn uống", Type: core.TypeExpense},
			{ID: 2, Name: "Lương", Type: core.TypeIncome},
		},
		txs: []core.Transaction{
			{ID: 1, CategoryID: 1, Amount: dec(500000), Date: date("2024-01-15")},
			{ID: 2, CategoryID: 2, Amount: dec(10000000), Date: date("2024-01-05")},
			{ID: 3, CategoryID: 1, Amount: dec(70000), Date: date("2024-02-01")},
		},
		limits: []core.BudgetLimit{
			{CategoryName: "Ăn uống", Limit: dec(3000000)},
			{CategoryName: "Nhà", Limit: dec(4000000), StartDate: date("2024-03-01")},
		},
	}
}

func TestMonthlyReportLocal(t *testing.T) {
	svc := NewReportService(newBackend(), ReportOptions{Source: core.SourceLocal})

	rep, err := svc.MonthlyReport(context.Background(), userSession(7), 2024, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Source != core.SourceLocal || rep.Partial {
		t.Fatalf("unexpected report meta: %+v", rep)
	}
	if len(rep.Rows) != 1 {
		t.Fatalf("expected 1 row (Nhà starts in March), got %+v", rep.Rows)
	}
	row := rep.Rows[0]
	if row.CategoryName != "Ăn uống" || !row.Difference.Equal(dec(2500000)) {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !rep.Summary.TotalIncome.Equal(dec(10000000)) || !rep.Summary.ActualSavings.Equal(dec(9500000)) {
		t.Fatalf("unexpected summary: %+v", rep.Summary)
	}
}

func TestMonthlyReportPartialOnCategoryAndBudgetFailure(t *testing.T) {
	b := newBackend()
	b.categoryErr = errors.New("categories down")
	b.budgetErr = errors.New("budgets down")
	b.txs = []core.Transaction{
		{ID: 1, CategoryID: 1, CategoryName: "Ăn uống", Type: core.TypeExpense, Amount: dec(200), Date: date("2024-01-02")},
	}
	svc := NewReportService(b, ReportOptions{Source: core.SourceLocal})

	rep, err := svc.MonthlyReport(context.Background(), userSession(7), 2024, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.Partial || len(rep.Warnings) != 2 {
		t.Fatalf("expected partial report with 2 warnings, got %+v", rep)
	}
	if len(rep.Rows) != 1 || !rep.Rows[0].AmountLimit.IsZero() {
		t.Fatalf("expected a zero-limit row, got %+v", rep.Rows)
	}

	// partial results are not cached
	b.categoryErr, b.budgetErr = nil, nil
	rep, err = svc.MonthlyReport(context.Background(), userSession(7), 2024, 1)
	if err != nil || rep.Partial {
		t.Fatalf("expected a complete report after recovery, got %+v, %v", rep, err)
	}
}

func TestMonthlyReportTransactionFailureAborts(t *testing.T) {
	b := newBackend()
	b.txErr = errors.New("boom")
	svc := NewReportService(b, ReportOptions{Source: core.SourceLocal})

	if _, err := svc.MonthlyReport(context.Background(), userSession(7), 2024, 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestMonthlyReportInvalidPeriod(t *testing.T) {
	svc := NewReportService(newBackend(), ReportOptions{})
	if _, err := svc.MonthlyReport(context.Background(), userSession(7), 2024, 13); !errors.Is(err, core.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestMonthlyReportServerAndAuto(t *testing.T) {
	serverRows := []core.ReportRow{core.NewReportRow("Ăn uống", dec(400), dec(1000))}

	tests := []struct {
		name       string
		source     string
		server     api.ServerReport
		serverErr  error
		wantSource string
		wantSpent  decimal.Decimal
		wantWarn   bool
	}{
		{"server", core.SourceServer, api.ServerReport{Rows: serverRows}, nil, core.SourceServer, dec(400), false},
		{"auto uses server", "auto", api.ServerReport{Rows: serverRows}, nil, core.SourceServer, dec(400), false},
		{"auto falls back on error", "auto", api.ServerReport{}, errors.New("503"), core.SourceLocal, dec(500000), true},
		{"auto falls back on empty", "auto", api.ServerReport{}, nil, core.SourceLocal, dec(500000), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			b.server, b.serverErr = tt.server, tt.serverErr
			svc := NewReportService(b, ReportOptions{Source: tt.source})

			rep, err := svc.MonthlyReport(context.Background(), userSession(7), 2024, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rep.Source != tt.wantSource {
				t.Fatalf("expected source %s, got %s", tt.wantSource, rep.Source)
			}
			if !rep.Summary.TotalExpense.Equal(tt.wantSpent) {
				t.Fatalf("expected spent %s, got %s", tt.wantSpent, rep.Summary.TotalExpense)
			}
			if !rep.Summary.TotalIncome.Equal(dec(10000000)) {
				t.Fatalf("expected income from transactions, got %s", rep.Summary.TotalIncome)
			}
			if (len(rep.Warnings) > 0) != tt.wantWarn {
				t.Fatalf("unexpected warnings: %v", rep.Warnings)
			}
		})
	}
}

func TestMonthlyReportAutoPropagatesUnauthorized(t *testing.T) {
	b := newBackend()
	b.serverErr = api.ErrUnauthorized
	svc := NewReportService(b, ReportOptions{Source: "auto"})

	if _, err := svc.MonthlyReport(context.Background(), userSession(7), 2024, 1); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestMonthlyReportCachedPerUser(t *testing.T) {
	b := newBackend()
	b.server = api.ServerReport{Rows: []core.ReportRow{core.NewReportRow("Ăn uống", dec(1), dec(2))}}
	svc := NewReportService(b, ReportOptions{Source: core.SourceServer})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.MonthlyReport(ctx, userSession(7), 2024, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := b.serverCalls.Load(); got != 1 {
		t.Fatalf("expected 1 backend call, got %d", got)
	}

	if _, err := svc.MonthlyReport(ctx, userSession(8), 2024, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.serverCalls.Load(); got != 2 {
		t.Fatalf("other users must not share the cache, got %d calls", got)
	}

	// anonymous sessions bypass the cache
	for i := 0; i < 2; i++ {
		if _, err := svc.MonthlyReport(ctx, api.NewSession(""), 2024, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := b.serverCalls.Load(); got != 4 {
		t.Fatalf("expected 4 backend calls, got %d", got)
	}
}

func TestUpdateBudgetInvalidatesUserReports(t *testing.T) {
	b := newBackend()
	b.server = api.ServerReport{Rows: []core.ReportRow{core.NewReportRow("Ăn uống", dec(1), dec(2))}}
	svc := NewReportService(b, ReportOptions{Source: core.SourceServer})
	ctx := context.Background()
	s := userSession(7)

	if _, err := svc.MonthlyReport(ctx, s, 2024, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.UpdateBudget(ctx, s, "Ăn uống", dec(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.updated["Ăn uống"].Equal(dec(5)) {
		t.Fatalf("limit not forwarded: %v", b.updated)
	}
	if _, err := svc.MonthlyReport(ctx, s, 2024, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.serverCalls.Load(); got != 2 {
		t.Fatalf("expected cache to be invalidated, got %d calls", got)
	}
}

func TestUpdateBudgetValidation(t *testing.T) {
	b := newBackend()
	svc := NewReportService(b, ReportOptions{})

	if err := svc.UpdateBudget(context.Background(), userSession(7), " ", dec(5)); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	if err := svc.UpdateBudget(context.Background(), userSession(7), "Nhà", dec(-1)); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if len(b.updated) != 0 {
		t.Fatalf("invalid updates must not reach the backend: %v", b.updated)
	}
}

func TestCategoriesCached(t *testing.T) {
	b := newBackend()
	svc := NewReportService(b, ReportOptions{Source: core.SourceLocal})
	ctx := context.Background()

	if _, err := svc.MonthlyReport(ctx, userSession(7), 2024, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.YearSeries(ctx, userSession(7), 2024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := b.categoryCalls.Load(); got != 1 {
		t.Fatalf("expected categories to be fetched once, got %d", got)
	}
}

func TestYearSeries(t *testing.T) {
	svc := NewReportService(newBackend(), ReportOptions{})

	out, err := svc.YearSeries(context.Background(), userSession(7), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Partial {
		t.Fatalf("unexpected partial: %v", out.Warnings)
	}
	s := out.Series
	if len(s.Income) != 12 || len(s.Expense) != 12 {
		t.Fatalf("expected 12 buckets, got %d/%d", len(s.Income), len(s.Expense))
	}
	if !s.Expense[0].Total.Equal(dec(500000)) || !s.Expense[1].Total.Equal(dec(70000)) {
		t.Fatalf("unexpected expense series: %+v", s.Expense[:2])
	}
	if !s.Income[0].Total.Equal(dec(10000000)) {
		t.Fatalf("unexpected income series: %+v", s.Income[0])
	}
}

func TestYearSeriesWithoutCategories(t *testing.T) {
	b := newBackend()
	b.categoryErr = errors.New("down")
	svc := NewReportService(b, ReportOptions{})

	out, err := svc.YearSeries(context.Background(), userSession(7), 2024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Partial || len(out.Warnings) != 1 {
		t.Fatalf("expected partial series, got %+v", out)
	}
	for _, p := range out.Series.Expense {
		if !p.Total.IsZero() {
			t.Fatalf("untyped transactions must be excluded, got %+v", p)
		}
	}
}

func TestBudgets(t *testing.T) {
	svc := NewReportService(newBackend(), ReportOptions{})

	limits, err := svc.Budgets(context.Background(), userSession(7), 2024, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limits) != 2 {
		t.Fatalf("expected 2 limits in March, got %+v", limits)
	}
	for _, l := range limits {
		if !l.CurrentAmount.IsZero() {
			t.Fatalf("no March spending expected, got %+v", l)
		}
	}

	limits, err = svc.Budgets(context.Background(), userSession(7), 2024, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limits) != 1 || !limits[0].CurrentAmount.Equal(dec(500000)) {
		t.Fatalf("unexpected January budgets: %+v", limits)
	}
}

func TestLimitsForPeriod(t *testing.T) {
	first, last := core.MonthRange(2024, 2)
	limits := []core.BudgetLimit{
		{CategoryName: "open"},
		{CategoryName: "ended", EndDate: date("2024-01-31")},
		{CategoryName: "future", StartDate: date("2024-03-01")},
		{CategoryName: "overlap", StartDate: date("2024-01-15"), EndDate: date("2024-02-01")},
		{CategoryName: "last day", StartDate: date("2024-02-29")},
	}

	got := limitsForPeriod(limits, first, last)
	var names []string
	for _, l := range got {
		names = append(names, l.CategoryName)
	}
	want := []string{"open", "overlap", "last day"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}
