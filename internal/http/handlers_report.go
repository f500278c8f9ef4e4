package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"finreport/internal/export"
	applog "finreport/internal/log"
)

// handleMonthlyReport serves the category report and summary for a month.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}

	rep, err := s.deps.Reports.MonthlyReport(r.Context(), sessionFrom(r.Context()), params.Year, params.Month)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogReportBuilt(r.Context(), rep.Year, rep.Month, rep.Source, len(rep.Rows), rep.Partial)

	NewJSONResponse().JSON(newReportView(rep)).Write(w)
}

// handleMonthlyReportXLSX serves the month report as a workbook download.
func (s *Server) handleMonthlyReportXLSX(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	rep, err := s.deps.Reports.MonthlyReport(r.Context(), sessionFrom(r.Context()), params.Year, params.Month)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	// render fully before writing headers so failures still get a JSON error
	var buf bytes.Buffer
	if err := export.WriteReportXLSX(&buf, rep); err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(rep.Year, rep.Month)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleSeries serves the 12-month income and expense series of a year.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYearParam(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}

	series, err := s.deps.Reports.YearSeries(r.Context(), sessionFrom(r.Context()), year)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().JSON(newSeriesView(series)).Write(w)
}

// handleBudgets lists the month's budgets with their current amounts.
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	limits, err := s.deps.Reports.Budgets(r.Context(), sessionFrom(r.Context()), params.Year, params.Month)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().JSON(newBudgetViews(limits)).Write(w)
}

type updateBudgetRequest struct {
	CategoryName string          `json:"categoryName" validate:"required,max=100"`
	Limit        json.RawMessage `json:"limit" validate:"required"`
}

// handleUpdateBudget changes the limit of one category.
func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req updateBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	name := sanitizeInput(req.CategoryName)
	limit, err := parseAmount(req.Limit)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	if err := s.deps.Reports.UpdateBudget(r.Context(), sessionFrom(r.Context()), name, limit); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Budget limit updated",
		applog.FieldCategory, name, "limit", limit.String())

	NewJSONResponse().JSON(map[string]any{"categoryName": name, "limit": limit}).Write(w)
}
