package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"finreport/internal/api"
	"finreport/internal/core"
)

// ExpenseBackend is the part of the backend API client that manages
// transactions.
type ExpenseBackend interface {
	ListMyExpenses(ctx context.Context, s *api.Session) ([]core.Transaction, error)
	ListExpensesBetween(ctx context.Context, s *api.Session, start, end core.Date) ([]core.Transaction, error)
	CreateExpense(ctx context.Context, s *api.Session, tx core.Transaction) (core.Transaction, error)
	UpdateExpense(ctx context.Context, s *api.Session, tx core.Transaction) (core.Transaction, error)
	DeleteExpense(ctx context.Context, s *api.Session, id int64) error
	TotalSpendByCategory(ctx context.Context, s *api.Session, categoryName string) (decimal.Decimal, error)
}

// Invalidator drops cached reports after the user's data changed.
type Invalidator interface {
	Invalidate(ctx context.Context, s *api.Session)
}

// ExpenseService forwards transaction changes to the backend and keeps the
// report caches consistent with them.
type ExpenseService struct {
	backend ExpenseBackend
	reports Invalidator
}

func NewExpenseService(backend ExpenseBackend, reports Invalidator) *ExpenseService {
	return &ExpenseService{backend: backend, reports: reports}
}

// List returns the transactions of a month, of a whole year when month is
// 0, or all of them when year is 0 too.
func (e *ExpenseService) List(ctx context.Context, s *api.Session, year, month int) ([]core.Transaction, error) {
	switch {
	case year == 0 && month == 0:
		return e.backend.ListMyExpenses(ctx, s)
	case month == 0:
		if err := core.ValidateYearMonth(year, 1); err != nil {
			return nil, err
		}
		first, last := core.YearRange(year)
		return e.backend.ListExpensesBetween(ctx, s, first, last)
	default:
		if err := core.ValidateYearMonth(year, month); err != nil {
			return nil, err
		}
		first, last := core.MonthRange(year, month)
		return e.backend.ListExpensesBetween(ctx, s, first, last)
	}
}

func (e *ExpenseService) Create(ctx context.Context, s *api.Session, tx core.Transaction) (core.Transaction, error) {
	created, err := e.backend.CreateExpense(ctx, s, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	e.changed(ctx, s, "create", created.ID)
	return created, nil
}

func (e *ExpenseService) Update(ctx context.Context, s *api.Session, tx core.Transaction) (core.Transaction, error) {
	updated, err := e.backend.UpdateExpense(ctx, s, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	e.changed(ctx, s, "update", tx.ID)
	return updated, nil
}

func (e *ExpenseService) Delete(ctx context.Context, s *api.Session, id int64) error {
	if err := e.backend.DeleteExpense(ctx, s, id); err != nil {
		return err
	}
	e.changed(ctx, s, "delete", id)
	return nil
}

// CategoryTotal is the backend's all-time spend for one category, shown next
// to the limit when a budget is edited.
func (e *ExpenseService) CategoryTotal(ctx context.Context, s *api.Session, categoryName string) (decimal.Decimal, error) {
	name := strings.TrimSpace(categoryName)
	if name == "" {
		return decimal.Zero, core.ErrEmptyCategory
	}
	return e.backend.TotalSpendByCategory(ctx, s, name)
}

func (e *ExpenseService) changed(ctx context.Context, s *api.Session, op string, id int64) {
	slog.InfoContext(ctx, "Expense changed", "component", "expense", "operation", op, "expense_id", id)
	if e.reports != nil {
		e.reports.Invalidate(ctx, s)
	}
}
