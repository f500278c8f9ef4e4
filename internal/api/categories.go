package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"finreport/internal/core"
)

// ListCategories returns the category directory.
func (c *Client) ListCategories(ctx context.Context, s *Session) ([]core.Category, error) {
	var raw json.RawMessage
	if err := c.do(ctx, s, http.MethodGet, "/category", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	recs, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("list categories: decode: %w", err)
	}
	cats := make([]core.Category, 0, len(recs))
	for _, r := range recs {
		cats = append(cats, c.toCategory(r))
	}
	return cats, nil
}
