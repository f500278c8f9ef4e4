// Package export renders monthly reports as downloadable files.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"finreport/internal/core"
)

// ContentTypeXLSX is the media type of WriteReportXLSX output.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	summarySheet    = "Summary"
	categoriesSheet = "Categories"
)

// FileName returns the download name of a month report.
func FileName(year, month int) string {
	return fmt.Sprintf("report-%d-%02d.xlsx", year, month)
}

// WriteReportXLSX writes the report as a workbook with a Summary sheet and a
// Categories sheet ending in a TOTAL row.
func WriteReportXLSX(w io.Writer, rep core.MonthReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(categoriesSheet); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return err
	}
	boldAmount, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 3})
	if err != nil {
		return err
	}

	summary := [][]any{
		{"Period", fmt.Sprintf("%d-%02d", rep.Year, rep.Month)},
		{"Source", rep.Source},
		{"Total income", num(rep.Summary.TotalIncome)},
		{"Total expense", num(rep.Summary.TotalExpense)},
		{"Total budget", num(rep.Summary.TotalBudget)},
		{"Expected savings", num(rep.Summary.ExpectedSavings)},
		{"Actual savings", num(rep.Summary.ActualSavings)},
	}
	for i, msg := range rep.Warnings {
		label := ""
		if i == 0 {
			label = "Warnings"
		}
		summary = append(summary, []any{label, msg})
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, cell("A", i+1), &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", cell("A", len(summary)), bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "B3", "B7", amount); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 18); err != nil {
		return err
	}

	header := []any{"Category", "Spent", "Limit", "Difference"}
	if err := f.SetSheetRow(categoriesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(categoriesSheet, "A1", "D1", bold); err != nil {
		return err
	}

	spent, limit := decimal.Zero, decimal.Zero
	for i, r := range rep.Rows {
		row := []any{r.CategoryName, num(r.AmountSpent), num(r.AmountLimit), num(r.Difference)}
		if err := f.SetSheetRow(categoriesSheet, cell("A", i+2), &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
		spent = spent.Add(r.AmountSpent)
		limit = limit.Add(r.AmountLimit)
	}

	totalRow := len(rep.Rows) + 2
	total := []any{"TOTAL", num(spent), num(limit), num(limit.Sub(spent))}
	if err := f.SetSheetRow(categoriesSheet, cell("A", totalRow), &total); err != nil {
		return fmt.Errorf("write total: %w", err)
	}
	if len(rep.Rows) > 0 {
		if err := f.SetCellStyle(categoriesSheet, "B2", cell("D", totalRow-1), amount); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(categoriesSheet, cell("A", totalRow), cell("D", totalRow), boldAmount); err != nil {
		return err
	}
	if err := f.SetColWidth(categoriesSheet, "A", "A", 24); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
