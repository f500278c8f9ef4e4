// Package core provides money parsing and handling utilities.
//
// Amounts are carried as decimal.Decimal end to end; the backend sends plain
// numbers in a single currency unit, while users type amounts with either a
// dot or a comma as decimal separator and thousands grouping.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount string to a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. When both
// appear, the last one is the decimal separator and the other is grouping
// ("1.234,50" and "1,234.50" both give 1234.5). A lone separator followed by
// exactly three digits is grouping ("3,000" gives 3000). Negative values and
// zero are rejected.
//
// Examples:
//
//	ParseAmount("12.34")     -> 12.34
//	ParseAmount("3,000")     -> 3000
//	ParseAmount("1.234,50")  -> 1234.5
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, ".")
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// normalizeSingleSeparator decides whether sep is grouping or decimal when it
// is the only separator kind present.
func normalizeSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	grouping := len(parts) > 2
	if len(parts) == 2 && len(parts[1]) == 3 && parts[0] != "" && parts[0] != "0" {
		grouping = true
	}
	if grouping {
		for _, p := range parts[1:] {
			if len(p) != 3 {
				return s // malformed, let the decimal parser reject it
			}
		}
		return strings.Join(parts, "")
	}
	return strings.Replace(s, sep, ".", 1)
}

// FormatAmount renders an amount with dot grouping and no fraction when the
// value is whole, the way the UI shows VND ("2.500.000").
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	d = d.Abs()
	intPart := d.Truncate(0)
	frac := d.Sub(intPart)

	digits := intPart.String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if !frac.IsZero() {
		fs := frac.StringFixed(2)
		out += "," + fs[strings.Index(fs, ".")+1:]
	}
	if neg {
		return "-" + out
	}
	return out
}
