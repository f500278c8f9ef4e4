package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
)

// record is a backend object decoded loosely. The backend is inconsistent
// about key casing (category_id vs categoryId, CategoryType vs
// categoryType), so lookups try each accepted key in order.
type record map[string]json.RawMessage

func (r record) raw(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		if t := bytes.TrimSpace(v); len(t) == 0 || bytes.Equal(t, []byte("null")) {
			continue
		}
		return v, true
	}
	return nil, false
}

func (r record) str(keys ...string) string {
	v, ok := r.raw(keys...)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// numbers sent where strings are expected
	return strings.Trim(strings.TrimSpace(string(v)), `"`)
}

func (r record) int64(keys ...string) int64 {
	v, ok := r.raw(keys...)
	if !ok {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	i, err := strconv.ParseInt(r.str(keys...), 10, 64)
	if err != nil {
		return 0
	}
	return i
}

// amount accepts a JSON number, a numeric string or null. Anything
// unparseable is treated as zero.
func (r record) amount(keys ...string) decimal.Decimal {
	v, ok := r.raw(keys...)
	if !ok {
		return decimal.Zero
	}
	return parseAmountRaw(v)
}

func parseAmountRaw(v json.RawMessage) decimal.Decimal {
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return d
		}
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			return d
		}
		if d, err := core.ParseAmount(s); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func (r record) date(keys ...string) core.Date {
	d, err := core.ParseDate(r.str(keys...))
	if err != nil {
		return core.Date{}
	}
	return d
}

// Accepted key spellings, canonical first.
var (
	keysExpenseID    = []string{"expense_id", "expenseId", "id"}
	keysUserID       = []string{"user_id", "userId"}
	keysCategoryID   = []string{"category_id", "categoryId"}
	keysCategoryName = []string{"CategoryName", "categoryName", "category_name"}
	keysCategoryType = []string{"CategoryType", "categoryType", "category_type"}
	keysExpenseDate  = []string{"expenseDate", "expense_date", "date"}
	keysBudgetID     = []string{"budget_id", "budgetId", "id"}
	keysAmountLimit  = []string{"amount_limit", "amountLimit", "limit"}
)

func (c *Client) toTransaction(r record) core.Transaction {
	return core.Transaction{
		ID:           r.int64(keysExpenseID...),
		UserID:       r.int64(keysUserID...),
		CategoryID:   r.int64(keysCategoryID...),
		CategoryName: r.str(keysCategoryName...),
		Type:         c.aliases.Parse(r.str(keysCategoryType...)),
		Amount:       r.amount("amount"),
		Description:  r.str("description"),
		Date:         r.date(keysExpenseDate...),
	}
}

func (c *Client) toCategory(r record) core.Category {
	return core.Category{
		ID:   r.int64(append(keysCategoryID, "id")...),
		Name: r.str(append(keysCategoryName, "name")...),
		Type: c.aliases.Parse(r.str(append(keysCategoryType, "type")...)),
	}
}

// toBudget drops any currentAmount the backend sends; it is recomputed from
// transactions at read time.
func toBudget(r record) core.BudgetLimit {
	return core.BudgetLimit{
		ID:           r.int64(keysBudgetID...),
		CategoryID:   r.int64(keysCategoryID...),
		CategoryName: r.str(keysCategoryName...),
		Limit:        r.amount(keysAmountLimit...),
		StartDate:    r.date("startDate", "start_date"),
		EndDate:      r.date("endDate", "end_date"),
	}
}

func toReportRow(r record) core.ReportRow {
	return core.NewReportRow(
		r.str(keysCategoryName...),
		r.amount("amountSpent", "amount_spent"),
		r.amount("amountLimit", "amount_limit"),
	)
}

func toUser(r record) core.User {
	u := core.User{
		ID:       r.int64("id", "user_id", "userId"),
		Username: r.str("username"),
		Email:    r.str("email", "Email"),
		FullName: r.str("fullName", "full_name"),
	}
	if v, ok := r.raw("roles"); ok {
		_ = json.Unmarshal(v, &u.Roles)
	}
	return u
}

// decodeList decodes a JSON array of records. A bare object wrapping the
// array under "data" or "content" is accepted too.
func decodeList(data json.RawMessage) ([]record, error) {
	var list []record
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped record
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	v, ok := wrapped.raw("data", "content", "items")
	if !ok {
		return nil, nil
	}
	if err := json.Unmarshal(v, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func amountJSON(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
