package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

// logRequest runs one request through the logging middleware and returns
// the captured log output.
func logRequest(t *testing.T, target string, headers map[string]string, status int) string {
	t.Helper()

	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	method := "GET"
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "192.168.1.1:12345"
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	wrapped.ServeHTTP(httptest.NewRecorder(), req)
	return buf.String()
}

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	out := logRequest(t, "/api/invoices", nil, http.StatusOK)

	for _, want := range []string{"GET", "/api/invoices", "status=200", "duration_ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestRequestLoggingMiddleware_LogsForwardedClientIP(t *testing.T) {
	out := logRequest(t, "/api/contacts", map[string]string{"X-Forwarded-For": "203.0.113.195"}, http.StatusOK)

	if !strings.Contains(out, "203.0.113.195") {
		t.Errorf("log line should carry the X-Forwarded-For address: %s", out)
	}
}

func TestRequestLoggingMiddleware_ServerErrorsLogAtWarn(t *testing.T) {
	out := logRequest(t, "/api/bills", nil, http.StatusInternalServerError)

	if !strings.Contains(out, "status=500") {
		t.Errorf("log line missing 500 status: %s", out)
	}
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("5xx responses should log at WARN: %s", out)
	}
}

func TestRequestLoggingMiddleware_LogsUserAgent(t *testing.T) {
	out := logRequest(t, "/api/products", map[string]string{"User-Agent": "facturo-cli/1.2"}, http.StatusOK)

	if !strings.Contains(out, "facturo-cli/1.2") {
		t.Errorf("log line missing user agent: %s", out)
	}
}

func TestRequestLoggingMiddleware_RedactsSecretQueryParams(t *testing.T) {
	out := logRequest(t, "/api/auth/verify?token=secrettoken123&next=/api/invoices", nil, http.StatusOK)

	if strings.Contains(out, "secrettoken123") {
		t.Errorf("token value leaked into the log: %s", out)
	}
	if !strings.Contains(out, "token=[REDACTED]") {
		t.Errorf("token should appear redacted: %s", out)
	}
	if !strings.Contains(out, "next=/api/invoices") {
		t.Errorf("harmless params should survive redaction: %s", out)
	}
}

func TestRequestLoggingMiddleware_RedactsPasswordResetToken(t *testing.T) {
	out := logRequest(t, "/api/auth/password?token=abc123secret", nil, http.StatusOK)

	if strings.Contains(out, "abc123secret") {
		t.Errorf("reset token leaked into the log: %s", out)
	}
}

func TestRequestLoggingMiddleware_PassesResponseThrough(t *testing.T) {
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", "req-42")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"inv_1"}`))
	}))

	req := httptest.NewRequest("POST", "/api/invoices", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") != "req-42" {
		t.Error("response headers should pass through untouched")
	}
	if rec.Body.String() != `{"id":"inv_1"}` {
		t.Errorf("response body should pass through untouched, got: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "status=201") {
		t.Errorf("log line should record the written status: %s", buf.String())
	}
}

func TestRequestLoggingMiddleware_CapturesWrittenStatus(t *testing.T) {
	out := logRequest(t, "/api/invoices/missing", nil, http.StatusNotFound)

	if !strings.Contains(out, "status=404") {
		t.Errorf("log line missing 404 status: %s", out)
	}
}

func TestRequestLoggingMiddleware_SkipsHealthAndMetrics(t *testing.T) {
	for _, target := range []string{"/health", "/metrics"} {
		if out := logRequest(t, target, nil, http.StatusOK); out != "" {
			t.Errorf("%s should not be logged, got: %s", target, out)
		}
	}
}

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		query string
		want  string
	}{
		{name: "no query", path: "/api/ledger", query: "", want: "/api/ledger"},
		{name: "plain params kept", path: "/api/ledger", query: "from=2026-01&to=2026-06", want: "/api/ledger?from=2026-01&to=2026-06"},
		{name: "secret masked", path: "/cb", query: "code=s3cr3t", want: "/cb?code=[REDACTED]"},
		{name: "case insensitive", path: "/cb", query: "Token=s3cr3t", want: "/cb?Token=[REDACTED]"},
		{name: "valueless pair dropped", path: "/api/ledger", query: "flag", want: "/api/ledger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactQuery(tt.path, tt.query); got != tt.want {
				t.Errorf("redactQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
