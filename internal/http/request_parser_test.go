package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"finreport/internal/api"
	"finreport/internal/core"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantYear  int
		wantMonth int
		wantErr   error
		wantParam bool
	}{
		{"all values provided", url.Values{"year": {"2023"}, "month": {"11"}}, 2023, 11, nil, false},
		{"defaults to current month", url.Values{}, 2024, 3, nil, false},
		{"only month", url.Values{"month": {" 6 "}}, 2024, 6, nil, false},
		{"non numeric month", url.Values{"month": {"abc"}}, 0, 0, nil, true},
		{"month out of range", url.Values{"month": {"13"}}, 0, 0, core.ErrInvalidMonth, false},
		{"year out of range", url.Values{"year": {"1800"}}, 0, 0, core.ErrInvalidYear, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParams(tt.query, fixedNow)
			var perr *paramError
			switch {
			case tt.wantParam:
				if !errors.As(err, &perr) {
					t.Fatalf("expected paramError, got %v", err)
				}
				return
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Year != tt.wantYear || got.Month != tt.wantMonth {
				t.Errorf("got %d-%d, want %d-%d", got.Year, got.Month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestParseYearParam(t *testing.T) {
	if y, err := ParseYearParam(url.Values{}, fixedNow); err != nil || y != 2024 {
		t.Fatalf("expected current year, got %d, %v", y, err)
	}
	if y, err := ParseYearParam(url.Values{"year": {"2021"}}, fixedNow); err != nil || y != 2021 {
		t.Fatalf("expected 2021, got %d, %v", y, err)
	}
	if _, err := ParseYearParam(url.Values{"year": {"20x1"}}, fixedNow); err == nil {
		t.Fatal("expected error for malformed year")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer   tok ", "tok"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(r); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"year":2024,"month":2}`))
		var req archiveRequest
		if err := decodeJSON(r, &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Year != 2024 || req.Month != 2 {
			t.Fatalf("unexpected request: %+v", req)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"year":`))
		var req archiveRequest
		var berr *bodyError
		if err := decodeJSON(r, &req); !errors.As(err, &berr) {
			t.Fatalf("expected bodyError, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"year":2024,"month":14}`))
		var req archiveRequest
		var verr *api.ValidationError
		if err := decodeJSON(r, &req); !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if verr.Fields["month"] != "max=12" {
			t.Fatalf("unexpected fields: %v", verr.Fields)
		}
	})
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`3000000`, "3000000", false},
		{`"3.000.000"`, "3000000", false},
		{`"1.234,50"`, "1234.5", false},
		{`0`, "", true},
		{`"-5"`, "", true},
		{`null`, "", true},
	}
	for _, tt := range tests {
		got, err := parseAmount([]byte(tt.raw))
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseAmount(%s): expected error", tt.raw)
			}
			continue
		}
		if err != nil || got.String() != tt.want {
			t.Errorf("parseAmount(%s) = %s, %v; want %s", tt.raw, got, err, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Ăn\x00 uống\t "); got != "Ăn uống" {
		t.Fatalf("unexpected sanitized value %q", got)
	}
}
