package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

type generateReportPayload struct {
	Month int `json:"month" validate:"min=1,max=12"`
	Year  int `json:"year" validate:"min=1900,max=9999"`
}

// ServerReport is the backend's own computation of a monthly report.
type ServerReport struct {
	Rows       []core.ReportRow
	TotalSpent decimal.Decimal
	TotalLimit decimal.Decimal
}

// GenerateReport asks the backend to compute the report for a month. Row
// differences are recomputed from the amounts.
func (c *Client) GenerateReport(ctx context.Context, s *Session, year, month int) (ServerReport, error) {
	req := generateReportPayload{Month: month, Year: year}
	if err := c.check(req); err != nil {
		return ServerReport{}, err
	}

	var raw record
	if err := c.do(ctx, s, http.MethodPost, "/reports/generate", nil, req, &raw); err != nil {
		return ServerReport{}, fmt.Errorf("generate report %d-%02d: %w", year, month, err)
	}

	rep := ServerReport{Rows: make([]core.ReportRow, 0)}
	if v, ok := raw.raw("rows"); ok {
		var recs []record
		if err := json.Unmarshal(v, &recs); err != nil {
			return ServerReport{}, fmt.Errorf("generate report: decode rows: %w", err)
		}
		for _, r := range recs {
			row := toReportRow(r)
			if row.CategoryName == "" {
				continue
			}
			rep.Rows = append(rep.Rows, row)
		}
	}

	rep.TotalSpent = raw.amount("totalSpent", "total_spent")
	rep.TotalLimit = raw.amount("totalLimit", "total_limit")
	if _, ok := raw.raw("totalSpent", "total_spent"); !ok {
		for _, r := range rep.Rows {
			rep.TotalSpent = rep.TotalSpent.Add(r.AmountSpent)
		}
	}
	if _, ok := raw.raw("totalLimit", "total_limit"); !ok {
		for _, r := range rep.Rows {
			rep.TotalLimit = rep.TotalLimit.Add(r.AmountLimit)
		}
	}
	return rep, nil
}
