package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finreport/internal/api"
	"finreport/internal/cache"
	"finreport/internal/core"
	"finreport/internal/report"
)

// Backend is the part of the backend API client the report service uses.
type Backend interface {
	ListExpensesBetween(ctx context.Context, s *api.Session, start, end core.Date) ([]core.Transaction, error)
	ListCategories(ctx context.Context, s *api.Session) ([]core.Category, error)
	ListMyBudgets(ctx context.Context, s *api.Session) ([]core.BudgetLimit, error)
	UpdateBudgetLimit(ctx context.Context, s *api.Session, categoryName string, limit decimal.Decimal) error
	GenerateReport(ctx context.Context, s *api.Session, year, month int) (api.ServerReport, error)
}

// ReportOptions configures a ReportService.
type ReportOptions struct {
	Source    string // local, server or auto
	CacheSize int
	CacheTTL  time.Duration
}

// ReportService builds monthly reports, yearly series and budget views from
// the backend data of the calling user.
type ReportService struct {
	backend Backend
	source  string

	categories *cache.LRUCache[[]core.Category]
	reports    *cache.LRUCache[core.MonthReport]
}

func NewReportService(backend Backend, opts ReportOptions) *ReportService {
	if opts.Source == "" {
		opts.Source = "auto"
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 500
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &ReportService{
		backend:    backend,
		source:     opts.Source,
		categories: cache.NewLRUCache[[]core.Category](opts.CacheSize, opts.CacheTTL),
		reports:    cache.NewLRUCache[core.MonthReport](opts.CacheSize, opts.CacheTTL),
	}
}

// Caches returns the caches owned by the service so a cache.Manager can
// expire them.
func (r *ReportService) Caches() []cache.Cleaner {
	return []cache.Cleaner{r.categories, r.reports}
}

// MonthlyReport builds the category report and summary for a month.
//
// A failed transaction fetch aborts the report. Failed category or budget
// fetches are replaced with empty sets and reported through Partial and
// Warnings.
func (r *ReportService) MonthlyReport(ctx context.Context, s *api.Session, year, month int) (core.MonthReport, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return core.MonthReport{}, err
	}

	key := userKey(s)
	reportKey := key + ":report:" + r.source + ":" + strconv.Itoa(year) + "-" + strconv.Itoa(month)
	if key != "" {
		if rep, ok := r.reports.Get(reportKey); ok {
			return rep, nil
		}
	}

	var (
		rep core.MonthReport
		err error
	)
	switch r.source {
	case core.SourceServer:
		rep, err = r.serverReport(ctx, s, year, month)
	case core.SourceLocal:
		rep, err = r.localReport(ctx, s, year, month)
	default:
		rep, err = r.serverReport(ctx, s, year, month)
		if err != nil || len(rep.Rows) == 0 {
			if errors.Is(err, api.ErrUnauthorized) {
				return core.MonthReport{}, err
			}
			warning := "server report was empty"
			if err != nil {
				warning = "server report unavailable: " + err.Error()
			}
			slog.WarnContext(ctx, "Falling back to local report",
				"component", "report", "year", year, "month", month, "reason", warning)
			rep, err = r.localReport(ctx, s, year, month)
			if err == nil && len(rep.Rows) > 0 {
				rep.Warnings = append([]string{warning}, rep.Warnings...)
			}
		}
	}
	if err != nil {
		return core.MonthReport{}, err
	}

	if key != "" && !rep.Partial {
		r.reports.Set(reportKey, rep)
	}
	return rep, nil
}

func (r *ReportService) localReport(ctx context.Context, s *api.Session, year, month int) (core.MonthReport, error) {
	first, last := core.MonthRange(year, month)

	var (
		txs        []core.Transaction
		categories []core.Category
		limits     []core.BudgetLimit
		warnings   [2]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = r.backend.ListExpensesBetween(gctx, s, first, last)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = r.listCategories(gctx, s)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return err
			}
			warnings[0] = "categories unavailable: " + err.Error()
			categories = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		limits, err = r.backend.ListMyBudgets(gctx, s)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return err
			}
			warnings[1] = "budgets unavailable: " + err.Error()
			limits = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.MonthReport{}, fmt.Errorf("monthly report %d-%02d: %w", year, month, err)
	}

	idx := report.NewIndex(categories)
	rows := report.BuildCategoryReport(txs, limitsForPeriod(limits, first, last), idx)

	rep := core.MonthReport{
		Year:    year,
		Month:   month,
		Rows:    rows,
		Summary: report.BuildSummary(rows, report.IncomeTotal(txs, idx)),
		Source:  core.SourceLocal,
	}
	for _, w := range warnings {
		if w != "" {
			rep.Partial = true
			rep.Warnings = append(rep.Warnings, w)
		}
	}
	return rep, nil
}

// serverReport takes the rows from the backend's own report. Income is not
// part of that response and comes from the month's transactions; when those
// cannot be fetched the summary carries zero income and the report is partial.
func (r *ReportService) serverReport(ctx context.Context, s *api.Session, year, month int) (core.MonthReport, error) {
	first, last := core.MonthRange(year, month)

	var (
		srv     api.ServerReport
		income  = decimal.Zero
		warning string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		srv, err = r.backend.GenerateReport(gctx, s, year, month)
		return err
	})
	g.Go(func() error {
		txs, err := r.backend.ListExpensesBetween(gctx, s, first, last)
		if err != nil {
			warning = "income unavailable: " + err.Error()
			return nil
		}
		categories, err := r.listCategories(gctx, s)
		if err != nil {
			warning = "categories unavailable: " + err.Error()
		}
		income = report.IncomeTotal(txs, report.NewIndex(categories))
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.MonthReport{}, err
	}

	rep := core.MonthReport{
		Year:    year,
		Month:   month,
		Rows:    srv.Rows,
		Summary: report.BuildSummary(srv.Rows, income),
		Source:  core.SourceServer,
	}
	if warning != "" && len(srv.Rows) > 0 {
		rep.Partial = true
		rep.Warnings = []string{warning}
	}
	return rep, nil
}

// SeriesReport is a yearly income/expense series with any fetch warnings.
type SeriesReport struct {
	Series   core.MonthlySeries
	Partial  bool
	Warnings []string
}

// YearSeries builds the 12-month income and expense series for a year.
func (r *ReportService) YearSeries(ctx context.Context, s *api.Session, year int) (SeriesReport, error) {
	if err := core.ValidateYearMonth(year, 1); err != nil {
		return SeriesReport{}, err
	}
	start, end := core.YearRange(year)

	var (
		txs        []core.Transaction
		categories []core.Category
		warning    string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = r.backend.ListExpensesBetween(gctx, s, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = r.listCategories(gctx, s)
		if err != nil && !errors.Is(err, api.ErrUnauthorized) {
			warning = "categories unavailable: " + err.Error()
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return SeriesReport{}, fmt.Errorf("year series %d: %w", year, err)
	}

	out := SeriesReport{Series: report.BuildMonthlySeries(txs, year, report.NewIndex(categories))}
	if warning != "" {
		out.Partial = true
		out.Warnings = []string{warning}
	}
	return out, nil
}

// Budgets returns the user's budget limits active in the month, with
// CurrentAmount computed from the month's expense transactions.
func (r *ReportService) Budgets(ctx context.Context, s *api.Session, year, month int) ([]core.BudgetLimit, error) {
	if err := core.ValidateYearMonth(year, month); err != nil {
		return nil, err
	}
	first, last := core.MonthRange(year, month)

	var (
		txs        []core.Transaction
		categories []core.Category
		limits     []core.BudgetLimit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		limits, err = r.backend.ListMyBudgets(gctx, s)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = r.backend.ListExpensesBetween(gctx, s, first, last)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = r.listCategories(gctx, s)
		if err != nil && !errors.Is(err, api.ErrUnauthorized) {
			slog.WarnContext(gctx, "Categories unavailable for budgets", "component", "report", "error", err)
			categories, err = nil, nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("budgets %d-%02d: %w", year, month, err)
	}

	return report.AttachCurrentAmounts(limitsForPeriod(limits, first, last), txs, report.NewIndex(categories)), nil
}

// UpdateBudget changes the limit of a category and drops the user's cached
// reports.
func (r *ReportService) UpdateBudget(ctx context.Context, s *api.Session, categoryName string, limit decimal.Decimal) error {
	if err := (core.BudgetLimit{CategoryName: categoryName, Limit: limit}).Validate(); err != nil {
		return err
	}
	if err := r.backend.UpdateBudgetLimit(ctx, s, categoryName, limit); err != nil {
		return err
	}
	r.Invalidate(ctx, s)
	return nil
}

// Invalidate drops the cached reports of the session's user.
func (r *ReportService) Invalidate(ctx context.Context, s *api.Session) {
	if key := userKey(s); key != "" {
		n := r.reports.DeletePrefix(key + ":")
		slog.DebugContext(ctx, "Report cache invalidated", "component", "cache", "user_key", key, "count", n)
	}
}

func (r *ReportService) listCategories(ctx context.Context, s *api.Session) ([]core.Category, error) {
	key := userKey(s)
	if key == "" {
		return r.backend.ListCategories(ctx, s)
	}
	return r.categories.GetOrLoad(ctx, key+":categories", func(ctx context.Context) ([]core.Category, error) {
		return r.backend.ListCategories(ctx, s)
	})
}

// userKey namespaces cache entries per user. Sessions without a known user
// are not cached.
func userKey(s *api.Session) string {
	if s == nil {
		return ""
	}
	id := s.UserID()
	if id == 0 {
		return ""
	}
	return "u" + strconv.FormatInt(id, 10)
}

// limitsForPeriod keeps the limits whose validity window overlaps
// [first, last]. Missing dates are treated as open-ended.
func limitsForPeriod(limits []core.BudgetLimit, first, last core.Date) []core.BudgetLimit {
	out := make([]core.BudgetLimit, 0, len(limits))
	for _, l := range limits {
		if !l.StartDate.IsEmpty() && l.StartDate.After(last.Time) {
			continue
		}
		if !l.EndDate.IsEmpty() && l.EndDate.Before(first.Time) {
			continue
		}
		out = append(out, l)
	}
	return out
}
