// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data:
// period query parameters, path IDs, bearer tokens and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"finreport/internal/api"
	"finreport/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var validate = validator.New()

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using the
// current month for missing values. Present but malformed values are errors.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	var err error
	if params.Year, err = intParam(query, "year", params.Year); err != nil {
		return MonthParams{}, err
	}
	if params.Month, err = intParam(query, "month", params.Month); err != nil {
		return MonthParams{}, err
	}
	if err := core.ValidateYearMonth(params.Year, params.Month); err != nil {
		return MonthParams{}, err
	}
	return params, nil
}

// ParseYearParam extracts the year query parameter, defaulting to now.
func ParseYearParam(query url.Values, now time.Time) (int, error) {
	year, err := intParam(query, "year", now.Year())
	if err != nil {
		return 0, err
	}
	if err := core.ValidateYearMonth(year, 1); err != nil {
		return 0, err
	}
	return year, nil
}

// paramError is a malformed query or path parameter.
type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.name, e.value)
}

func intParam(query url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &paramError{name: name, value: v}
	}
	return n, nil
}

// parseID reads a positive int64 path parameter.
func parseID(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &paramError{name: name, value: v}
	}
	return id, nil
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// decodeJSON reads a JSON body into dst and validates its struct tags.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &bodyError{err: err}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &api.ValidationError{Fields: fieldErrors(verrs)}
		}
		return err
	}
	return nil
}

// bodyError is a request body that is not valid JSON.
type bodyError struct{ err error }

func (e *bodyError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *bodyError) Unwrap() error { return e.err }

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out[jsonFieldName(fe.Field())] = msg
	}
	return out
}

// jsonFieldName lower-cases the first letter of a Go field name.
func jsonFieldName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseAmount accepts a JSON number or a string such as "3.000.000".
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	return core.ParseAmount(s)
}
