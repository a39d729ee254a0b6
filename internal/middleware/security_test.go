package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Security Headers Middleware Tests
// =============================================================================

func secureHeaders(t *testing.T, isSecure bool) http.Header {
	t.Helper()

	mw := NewSecurityHeadersMiddleware(isSecure)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/invoices", nil))
	return rec.Header()
}

func TestSecurityHeaders_BaselineSet(t *testing.T) {
	h := secureHeaders(t, true)

	tests := []struct {
		header string
		want   string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"X-XSS-Protection", "1; mode=block"},
		{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
	}

	for _, tt := range tests {
		if got := h.Get(tt.header); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.header, tt.want, got)
		}
	}
}

func TestSecurityHeaders_HSTSOnlyWhenSecure(t *testing.T) {
	hsts := secureHeaders(t, true).Get("Strict-Transport-Security")
	if !strings.Contains(hsts, "max-age=31536000") || !strings.Contains(hsts, "includeSubDomains") {
		t.Errorf("unexpected HSTS value in secure mode: %q", hsts)
	}

	if got := secureHeaders(t, false).Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS must not be set over plain HTTP, got %q", got)
	}
}

func TestSecurityHeaders_CSPLocksToSameOrigin(t *testing.T) {
	csp := secureHeaders(t, true).Get("Content-Security-Policy")

	for _, directive := range []string{
		"default-src 'self'",
		"img-src 'self' data: https:",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	} {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP missing %q: %s", directive, csp)
		}
	}

	// A JSON API has no business allowing external or inline scripts.
	if strings.Contains(csp, "unsafe-inline") || strings.Contains(csp, "script-src") {
		t.Errorf("CSP should not carry script allowances: %s", csp)
	}
}

func TestSecurityHeaders_ResponsePassesThrough(t *testing.T) {
	mw := NewSecurityHeadersMiddleware(true)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"bill_1"}`))
	}))

	req := httptest.NewRequest("POST", "/api/bills", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Body.String() != `{"id":"bill_1"}` {
		t.Errorf("body should pass through, got %q", rec.Body.String())
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("headers should be set on POST responses too")
	}
}
