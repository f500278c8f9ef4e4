// Package report turns normalized transactions, categories and budget limits
// into the per-category reconciliation table and the 12-month series.
//
// Everything here is a pure function of its inputs: no I/O, no shared state,
// and no error returns. Malformed records degrade to neutral values.
package report

import (
	"strings"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

// Index is the category lookup built once per request.
type Index struct {
	types map[int64]core.CategoryType
	names map[int64]string
}

// NewIndex indexes categories by ID. Later duplicates win.
func NewIndex(categories []core.Category) Index {
	idx := Index{
		types: make(map[int64]core.CategoryType, len(categories)),
		names: make(map[int64]string, len(categories)),
	}
	for _, c := range categories {
		idx.types[c.ID] = c.Type
		if name := strings.TrimSpace(c.Name); name != "" {
			idx.names[c.ID] = name
		}
	}
	return idx
}

// Types exposes the categoryID -> type map for ResolveType.
func (i Index) Types() map[int64]core.CategoryType {
	return i.types
}

// Name returns the category name for id, or "".
func (i Index) Name(id int64) string {
	return i.names[id]
}

// ResolveType decides whether tx counts as income or expense. A tag on the
// transaction wins over the category table even when it is neither, in
// which case tx is TypeUnknown.
func ResolveType(tx core.Transaction, types map[int64]core.CategoryType) core.CategoryType {
	if tx.Type != core.TypeUnknown {
		if tx.Type.IsKnown() {
			return tx.Type
		}
		return core.TypeUnknown
	}
	if t := types[tx.CategoryID]; t.IsKnown() {
		return t
	}
	return core.TypeUnknown
}

// CategoryName returns the name tx is reported under.
func (i Index) CategoryName(tx core.Transaction) string {
	if name := strings.TrimSpace(tx.CategoryName); name != "" {
		return name
	}
	return i.names[tx.CategoryID]
}

// BuildCategoryReport reconciles spend against limits, one row per category
// name seen in txs or limits. Rows follow first-seen order among txs, then
// budget-only categories in the order of limits.
//
// Only transactions resolved as expense add to AmountSpent; income
// categories still get a row with zero spend. Transactions with no
// resolvable category name are dropped.
func BuildCategoryReport(txs []core.Transaction, limits []core.BudgetLimit, idx Index) []core.ReportRow {
	rows := make([]core.ReportRow, 0)
	if len(txs) == 0 && len(limits) == 0 {
		return rows
	}

	var order []string
	spent := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		name := idx.CategoryName(tx)
		if name == "" {
			continue
		}
		if _, seen := spent[name]; !seen {
			spent[name] = decimal.Zero
			order = append(order, name)
		}
		if ResolveType(tx, idx.types) == core.TypeExpense {
			spent[name] = spent[name].Add(tx.Amount)
		}
	}

	limitByName := make(map[string]decimal.Decimal, len(limits))
	for _, l := range limits {
		name := strings.TrimSpace(l.CategoryName)
		if name == "" {
			name = idx.Name(l.CategoryID)
		}
		if name == "" {
			continue
		}
		if _, dup := limitByName[name]; dup {
			continue
		}
		limitByName[name] = l.Limit
		if _, seen := spent[name]; !seen {
			spent[name] = decimal.Zero
			order = append(order, name)
		}
	}

	for _, name := range order {
		rows = append(rows, core.NewReportRow(name, spent[name], limitByName[name]))
	}
	return rows
}

// BuildMonthlySeries buckets txs dated in year by month. Undated
// transactions and those of unknown type are skipped.
func BuildMonthlySeries(txs []core.Transaction, year int, idx Index) core.MonthlySeries {
	var income, expense [12]decimal.Decimal
	for _, tx := range txs {
		if tx.Date.IsEmpty() || tx.Date.Year() != year {
			continue
		}
		m := tx.Date.Month() - 1
		switch ResolveType(tx, idx.types) {
		case core.TypeIncome:
			income[m] = income[m].Add(tx.Amount)
		case core.TypeExpense:
			expense[m] = expense[m].Add(tx.Amount)
		}
	}

	series := core.MonthlySeries{
		Year:    year,
		Income:  make([]core.SeriesPoint, 12),
		Expense: make([]core.SeriesPoint, 12),
	}
	for i, label := range core.MonthLabels {
		series.Income[i] = core.SeriesPoint{Label: label, Total: income[i]}
		series.Expense[i] = core.SeriesPoint{Label: label, Total: expense[i]}
	}
	return series
}

// IncomeTotal sums the transactions resolved as income.
func IncomeTotal(txs []core.Transaction, idx Index) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if ResolveType(tx, idx.types) == core.TypeIncome {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// BuildSummary derives the month summary table from the category rows.
func BuildSummary(rows []core.ReportRow, income decimal.Decimal) core.Summary {
	s := core.Summary{
		TotalIncome:  income,
		TotalExpense: decimal.Zero,
		TotalBudget:  decimal.Zero,
	}
	for _, r := range rows {
		s.TotalExpense = s.TotalExpense.Add(r.AmountSpent)
		s.TotalBudget = s.TotalBudget.Add(r.AmountLimit)
	}
	s.ExpectedSavings = income.Sub(s.TotalBudget)
	s.ActualSavings = income.Sub(s.TotalExpense)
	return s
}

// AttachCurrentAmounts returns a copy of limits with CurrentAmount set to the
// expense total of the matching category in txs.
func AttachCurrentAmounts(limits []core.BudgetLimit, txs []core.Transaction, idx Index) []core.BudgetLimit {
	spent := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if ResolveType(tx, idx.types) != core.TypeExpense {
			continue
		}
		name := idx.CategoryName(tx)
		spent[name] = spent[name].Add(tx.Amount)
	}

	out := make([]core.BudgetLimit, len(limits))
	for i, l := range limits {
		name := strings.TrimSpace(l.CategoryName)
		if name == "" {
			name = idx.Name(l.CategoryID)
			l.CategoryName = name
		}
		l.CurrentAmount = spent[name]
		out[i] = l
	}
	return out
}
