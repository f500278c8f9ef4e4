package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TypeAliases maps backend type tags to canonical category types. Keys are
// compared after folding case, trimming and stripping diacritics, so
// "Chi tiêu", "chi tieu" and "CHI TIÊU" all hit the same entry.
type TypeAliases map[string]CategoryType

// DefaultTypeAliases covers the tags the backend is known to send.
func DefaultTypeAliases() TypeAliases {
	a := TypeAliases{}
	for _, tag := range []string{"expense", "expenses", "chi tiêu", "chi", "spending", "outcome"} {
		a.Add(tag, TypeExpense)
	}
	for _, tag := range []string{"income", "incomes", "thu nhập", "thu", "earning", "revenue"} {
		a.Add(tag, TypeIncome)
	}
	return a
}

// Add registers tag as an alias of t.
func (a TypeAliases) Add(tag string, t CategoryType) {
	if key := foldTag(tag); key != "" {
		a[key] = t
	}
}

// Merge copies other into a, overriding existing entries.
func (a TypeAliases) Merge(other TypeAliases) TypeAliases {
	for k, v := range other {
		a[foldTag(k)] = v
	}
	return a
}

// Parse resolves a raw tag. An empty tag gives TypeUnknown, a tag matching
// no alias gives TypeOther.
func (a TypeAliases) Parse(tag string) CategoryType {
	key := foldTag(tag)
	if key == "" {
		return TypeUnknown
	}
	if t, ok := a[key]; ok {
		return t
	}
	return TypeOther
}

// ParseCategoryType resolves tag with the default aliases.
func ParseCategoryType(tag string) CategoryType {
	return defaultAliases.Parse(tag)
}

var defaultAliases = DefaultTypeAliases()

func foldTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		// Vietnamese đ has no decomposition
		if r == 'đ' {
			r = 'd'
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
