package http

import (
	"encoding/json"
	"net/http"

	"finreport/internal/core"
	applog "finreport/internal/log"
)

type expenseRequest struct {
	CategoryID  int64           `json:"categoryId" validate:"required,gt=0"`
	Amount      json.RawMessage `json:"amount" validate:"required"`
	Description string          `json:"description" validate:"required,max=255"`
	Date        string          `json:"date" validate:"required"`
}

func (req expenseRequest) transaction(id int64) (core.Transaction, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          id,
		CategoryID:  req.CategoryID,
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Date:        date,
	}, nil
}

// handleListExpenses lists a month (month given), a year (year only) or
// every transaction of the user (neither).
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var year, month int
	switch {
	case q.Has("month"):
		p, err := ParseMonthParams(q, s.now())
		if err != nil {
			writeError(w, r, applog.OpList, err)
			return
		}
		year, month = p.Year, p.Month
	case q.Has("year"):
		y, err := ParseYearParam(q, s.now())
		if err != nil {
			writeError(w, r, applog.OpList, err)
			return
		}
		year = y
	}

	txs, err := s.deps.Expenses.List(r.Context(), sessionFrom(r.Context()), year, month)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().JSON(newExpenseViews(txs)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	tx, err := req.transaction(0)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	created, err := s.deps.Expenses.Create(r.Context(), sessionFrom(r.Context()), tx)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(newExpenseView(created)).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	tx, err := req.transaction(id)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	updated, err := s.deps.Expenses.Update(r.Context(), sessionFrom(r.Context()), tx)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(newExpenseView(updated)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	if err := s.deps.Expenses.Delete(r.Context(), sessionFrom(r.Context()), id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCategoryTotal returns the backend's spend for ?categoryName=.
func (s *Server) handleCategoryTotal(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.URL.Query().Get("categoryName"))
	total, err := s.deps.Expenses.CategoryTotal(r.Context(), sessionFrom(r.Context()), name)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().JSON(map[string]any{"categoryName": name, "total": total}).Write(w)
}
