package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/budgets", nil))

	for name, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Cache-Control":           "no-store",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'; base-uri 'none'",
	} {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s: expected %q, got %q", name, want, got)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must only be sent over TLS")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/budgets", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("unexpected HSTS %q", got)
	}
}

func TestHeadersMiddlewareSkipsEmptyValues(t *testing.T) {
	h := NewHeadersMiddleware(HeadersConfig{XFrameOptions: "SAMEORIGIN"}).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, ok := rec.Header()["Content-Security-Policy"]; ok {
		t.Error("empty CSP must not be sent")
	}
	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Error("configured header missing")
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		xff    string
		want   bool
	}{
		{"normal", http.MethodGet, "/api/reports/monthly?year=2024&month=1", "Mozilla/5.0", "", false},
		{"curl is fine", http.MethodGet, "/healthz", "curl/8.0", "", false},
		{"path traversal", http.MethodGet, "/api/../etc/passwd", "", "", true},
		{"dotenv scan", http.MethodGet, "/.env", "", "", true},
		{"traversal in query", http.MethodGet, "/api/budgets?file=../../x", "", "", true},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", "", true},
		{"trace method", "TRACE", "/", "", "", true},
		{"long url", http.MethodGet, "/?q=" + strings.Repeat("a", 2100), "", "", true},
		{"many hops", http.MethodGet, "/", "", "1.1.1.1,2.2.2.2,3.3.3.3,4.4.4.4,5.5.5.5,6.6.6.6,7.7.7.7", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.agent)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := d.DetectSuspiciousRequest(req); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if tt.want && d.GetMetrics().SuspiciousRequests != 1 {
				t.Fatal("suspicious request not counted")
			}
		})
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector()
	called := 0
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called++ }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if called != 1 {
		t.Fatal("suspicious GET requests are logged, not blocked")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/", nil))
	if rec.Code != http.StatusMethodNotAllowed || called != 1 {
		t.Fatalf("TRACE should be rejected, got %d", rec.Code)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.5:1234", "", "", "203.0.113.5"},
		{"untrusted proxy ignored", "203.0.113.5:1234", "198.51.100.1", "", "203.0.113.5"},
		{"trusted proxy xff", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"invalid forwarded", "10.0.0.2:80", "not-an-ip", "", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Fatal("expected error")
	}
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(req); got != "198.51.100.1" {
		t.Fatalf("expected forwarded ip, got %s", got)
	}
}
