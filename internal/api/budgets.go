package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

type updateBudgetPayload struct {
	CategoryName string      `json:"categoryName" validate:"required,max=100"`
	AmountLimit  json.Number `json:"amount_limit" validate:"required"`
}

// ListMyBudgets returns the user's budget limits. CurrentAmount is left
// zero; callers derive it from transactions.
func (c *Client) ListMyBudgets(ctx context.Context, s *Session) ([]core.BudgetLimit, error) {
	var raw json.RawMessage
	if err := c.do(ctx, s, http.MethodGet, "/budgets/my", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	recs, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("list budgets: decode: %w", err)
	}
	limits := make([]core.BudgetLimit, 0, len(recs))
	for _, r := range recs {
		limits = append(limits, toBudget(r))
	}
	return limits, nil
}

// UpdateBudgetLimit sets the limit of the named category.
func (c *Client) UpdateBudgetLimit(ctx context.Context, s *Session, categoryName string, limit decimal.Decimal) error {
	b := core.BudgetLimit{CategoryName: categoryName, Limit: limit}
	if err := b.Validate(); err != nil {
		return err
	}
	req := updateBudgetPayload{
		CategoryName: strings.TrimSpace(categoryName),
		AmountLimit:  amountJSON(limit),
	}
	if err := c.check(req); err != nil {
		return err
	}
	if err := c.do(ctx, s, http.MethodPut, "/budgets/update", nil, req, nil); err != nil {
		return fmt.Errorf("update budget %q: %w", categoryName, err)
	}
	return nil
}
