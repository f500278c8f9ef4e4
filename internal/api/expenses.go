package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

// expensePayload is the canonical create/update body.
type expensePayload struct {
	CategoryID  int64       `json:"category_id"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	ExpenseDate string      `json:"expenseDate"`
}

func newExpensePayload(tx core.Transaction) expensePayload {
	return expensePayload{
		CategoryID:  tx.CategoryID,
		Amount:      amountJSON(tx.Amount),
		Description: tx.Description,
		ExpenseDate: tx.Date.String(),
	}
}

// ListExpensesBetween returns the user's transactions dated in [start, end].
func (c *Client) ListExpensesBetween(ctx context.Context, s *Session, start, end core.Date) ([]core.Transaction, error) {
	q := url.Values{}
	q.Set("start", start.String())
	q.Set("end", end.String())
	return c.listExpenses(ctx, s, "/expenses/between", q)
}

// ListMyExpenses returns all of the user's transactions.
func (c *Client) ListMyExpenses(ctx context.Context, s *Session) ([]core.Transaction, error) {
	return c.listExpenses(ctx, s, "/expenses/my", nil)
}

func (c *Client) listExpenses(ctx context.Context, s *Session, path string, q url.Values) ([]core.Transaction, error) {
	var raw json.RawMessage
	if err := c.do(ctx, s, http.MethodGet, path, q, nil, &raw); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	recs, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("list expenses: decode: %w", err)
	}
	txs := make([]core.Transaction, 0, len(recs))
	for _, r := range recs {
		txs = append(txs, c.toTransaction(r))
	}
	return txs, nil
}

// CreateExpense validates tx and creates it on the backend.
func (c *Client) CreateExpense(ctx context.Context, s *Session, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var raw record
	if err := c.do(ctx, s, http.MethodPost, "/expenses/create", nil, newExpensePayload(tx), &raw); err != nil {
		return core.Transaction{}, fmt.Errorf("create expense: %w", err)
	}
	if raw == nil {
		return tx, nil
	}
	return c.toTransaction(raw), nil
}

// UpdateExpense replaces the transaction with ID tx.ID.
func (c *Client) UpdateExpense(ctx context.Context, s *Session, tx core.Transaction) (core.Transaction, error) {
	if tx.ID <= 0 {
		return core.Transaction{}, errors.New("update expense: missing id")
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	path := "/expenses/update/" + strconv.FormatInt(tx.ID, 10)
	var raw record
	if err := c.do(ctx, s, http.MethodPut, path, nil, newExpensePayload(tx), &raw); err != nil {
		return core.Transaction{}, fmt.Errorf("update expense %d: %w", tx.ID, err)
	}
	if raw == nil {
		return tx, nil
	}
	return c.toTransaction(raw), nil
}

func (c *Client) DeleteExpense(ctx context.Context, s *Session, id int64) error {
	path := "/expenses/delete/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, s, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// TotalSpendByCategory asks the backend for a category's spend. The backend
// answers with either a bare number or {"total": n}.
func (c *Client) TotalSpendByCategory(ctx context.Context, s *Session, categoryName string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("categoryName", categoryName)
	var raw json.RawMessage
	if err := c.do(ctx, s, http.MethodGet, "/expenses/total", q, nil, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("total spend for %q: %w", categoryName, err)
	}
	var obj record
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.amount("total"), nil
	}
	return parseAmountRaw(raw), nil
}
