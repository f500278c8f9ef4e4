package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-15", "2024-01-15", true},
		{"2024-01-15T23:10:00Z", "2024-01-15", true},
		{"2024-01-15 08:00:00", "2024-01-15", true},
		{"", "", false},
		{"15/01/2024", "", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || d.String() != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, d, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMonthRange(t *testing.T) {
	first, last := MonthRange(2024, 2)
	if first.String() != "2024-02-01" || last.String() != "2024-02-29" {
		t.Fatalf("unexpected range %s..%s", first, last)
	}
	first, last = MonthRange(2023, 12)
	if first.String() != "2023-12-01" || last.String() != "2023-12-31" {
		t.Fatalf("unexpected range %s..%s", first, last)
	}
}

func TestValidateYearMonth(t *testing.T) {
	if err := ValidateYearMonth(2024, 1); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := ValidateYearMonth(2024, 13); err != ErrInvalidMonth {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if err := ValidateYearMonth(0, 5); err != ErrInvalidYear {
		t.Fatalf("expected ErrInvalidYear, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		CategoryID:  1,
		Description: "Mua sắm tạp hóa",
		Amount:      decimal.NewFromInt(500000),
		Date:        NewDate(2024, 1, 15),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{CategoryID: 0, Description: "a", Amount: decimal.NewFromInt(1), Date: NewDate(2024, 1, 1)},
		{CategoryID: 1, Description: "a", Amount: decimal.NewFromInt(1), Date: Date{Time: time.Time{}}},
		{CategoryID: 1, Description: " ", Amount: decimal.NewFromInt(1), Date: NewDate(2024, 1, 1)},
		{CategoryID: 1, Description: "a", Amount: decimal.Zero, Date: NewDate(2024, 1, 1)},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNewReportRowDifference(t *testing.T) {
	row := NewReportRow("Di chuyển", decimal.NewFromInt(1200), decimal.NewFromInt(1000))
	if !row.Difference.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("expected -200, got %s", row.Difference)
	}
}

func TestTypeAliases(t *testing.T) {
	cases := map[string]CategoryType{
		"Chi tiêu":     TypeExpense,
		"chi tieu":     TypeExpense,
		" CHI TIÊU":    TypeExpense,
		"expense":      TypeExpense,
		"Thu nhập":     TypeIncome,
		"thu nhap":     TypeIncome,
		"Income":       TypeIncome,
		"":             TypeUnknown,
		"transfer":     TypeOther,
		"Chuyển khoản": TypeOther,
	}
	for in, want := range cases {
		if got := ParseCategoryType(in); got != want {
			t.Fatalf("ParseCategoryType(%q) = %q, want %q", in, got, want)
		}
	}

	custom := DefaultTypeAliases().Merge(TypeAliases{"Tiết kiệm": TypeExpense})
	if got := custom.Parse("tiet kiem"); got != TypeExpense {
		t.Fatalf("expected custom alias to resolve, got %q", got)
	}
}
