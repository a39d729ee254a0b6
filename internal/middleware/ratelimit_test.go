package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// RateLimiter Tests
// =============================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimiter_AllowCountsPerKey(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, quietLogger())

	// Each key has its own window.
	for _, ip := range []string{"192.168.1.1", "192.168.1.2"} {
		if !rl.Allow(ip) || !rl.Allow(ip) {
			t.Errorf("%s: first two attempts should pass", ip)
		}
		if rl.Allow(ip) {
			t.Errorf("%s: third attempt should be limited", ip)
		}
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond, quietLogger())

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.1")
	if rl.Allow("192.168.1.1") {
		t.Error("should be limited inside the window")
	}

	time.Sleep(60 * time.Millisecond)

	if !rl.Allow("192.168.1.1") {
		t.Error("expired window should reopen the limit")
	}
}

func TestRateLimiter_RecordFailureBurnsAllowance(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute, quietLogger())

	for i := 0; i < 5; i++ {
		rl.RecordFailure("192.168.1.1")
	}

	if rl.Allow("192.168.1.1") {
		t.Error("five recorded failures should exhaust the window")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, quietLogger())

	rl.Allow("192.168.1.1")
	rl.Allow("192.168.1.1")
	rl.Reset("192.168.1.1")

	if !rl.Allow("192.168.1.1") {
		t.Error("reset should clear the key's window")
	}
}

func TestRateLimiter_TimeUntilReset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, quietLogger())

	if got := rl.TimeUntilReset("203.0.113.7"); got != 0 {
		t.Errorf("unknown key should report 0, got %v", got)
	}

	rl.Allow("203.0.113.7")
	got := rl.TimeUntilReset("203.0.113.7")
	if got <= 0 || got > time.Minute {
		t.Errorf("active window should report a positive remainder, got %v", got)
	}
}

// =============================================================================
// RateLimitMiddleware Tests
// =============================================================================

// hitLogin sends a POST through the wrapped handler from the given
// remote address with optional proxy headers.
func hitLogin(wrapped http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, quietLogger())
	wrapped := NewRateLimitMiddleware(rl, quietLogger()).Limit(okHandler())

	for i := 0; i < 3; i++ {
		rec := hitLogin(wrapped, "192.168.1.1:12345", nil)
		want := http.StatusOK
		if i == 2 {
			want = http.StatusTooManyRequests
		}
		if rec.Code != want {
			t.Errorf("request %d: expected %d, got %d", i+1, want, rec.Code)
		}
	}
}

func TestRateLimitMiddleware_JSONErrorWithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, quietLogger())
	wrapped := NewRateLimitMiddleware(rl, quietLogger()).Limit(okHandler())

	hitLogin(wrapped, "192.168.1.1:12345", nil)
	rec := hitLogin(wrapped, "192.168.1.1:12345", nil)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("429 body should be JSON, got content type %q", got)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal 429 body: %v", err)
	}
	if body["error"] != "rate_limit_exceeded" {
		t.Errorf("unexpected error code %q", body["error"])
	}
}

func TestRateLimitMiddleware_KeysOnForwardedAddress(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{name: "X-Forwarded-For chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}},
		{name: "X-Real-IP", headers: map[string]string{"X-Real-IP": "203.0.113.195"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(2, time.Minute, quietLogger())
			wrapped := NewRateLimitMiddleware(rl, quietLogger()).Limit(okHandler())

			// All requests come from the proxy address but carry the
			// same client header, so they share one window.
			for i := 0; i < 3; i++ {
				rec := hitLogin(wrapped, "10.0.0.1:12345", tt.headers)
				want := http.StatusOK
				if i == 2 {
					want = http.StatusTooManyRequests
				}
				if rec.Code != want {
					t.Errorf("request %d: expected %d, got %d", i+1, want, rec.Code)
				}
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "socket address", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "no port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{name: "forwarded chain takes first hop", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, want: "203.0.113.195"},
		{name: "real ip", remoteAddr: "10.0.0.1:1", headers: map[string]string{"X-Real-IP": " 203.0.113.7 "}, want: "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// AuthRateLimiter Tests
// =============================================================================

func TestAuthRateLimiter_PerEndpointBudgets(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(*AuthRateLimiter, http.Handler) http.Handler
		limit int
	}{
		{name: "login allows 5", wrap: func(a *AuthRateLimiter, h http.Handler) http.Handler { return a.LimitLogin(h) }, limit: 5},
		{name: "register allows 3", wrap: func(a *AuthRateLimiter, h http.Handler) http.Handler { return a.LimitRegister(h) }, limit: 3},
		{name: "password change allows 3", wrap: func(a *AuthRateLimiter, h http.Handler) http.Handler { return a.LimitPasswordReset(h) }, limit: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arl := NewAuthRateLimiter(quietLogger())
			wrapped := tt.wrap(arl, okHandler())

			for i := 0; i <= tt.limit; i++ {
				rec := hitLogin(wrapped, "192.168.1.1:12345", nil)
				want := http.StatusOK
				if i == tt.limit {
					want = http.StatusTooManyRequests
				}
				if rec.Code != want {
					t.Errorf("request %d: expected %d, got %d", i+1, want, rec.Code)
				}
			}
		})
	}
}

func TestAuthRateLimiter_FailedLoginsCountAgainstLimit(t *testing.T) {
	arl := NewAuthRateLimiter(quietLogger())

	for i := 0; i < 5; i++ {
		arl.RecordFailedLogin("192.168.1.1")
	}

	rec := hitLogin(arl.LimitLogin(okHandler()), "192.168.1.1:12345", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 after recorded failures, got %d", rec.Code)
	}
}

func TestAuthRateLimiter_SuccessfulLoginResets(t *testing.T) {
	arl := NewAuthRateLimiter(quietLogger())

	for i := 0; i < 3; i++ {
		arl.RecordFailedLogin("192.168.1.1")
	}
	arl.ResetLogin("192.168.1.1")

	wrapped := arl.LimitLogin(okHandler())
	for i := 0; i < 5; i++ {
		if rec := hitLogin(wrapped, "192.168.1.1:12345", nil); rec.Code != http.StatusOK {
			t.Errorf("request %d: expected a clean window after reset, got %d", i+1, rec.Code)
		}
	}
}

func TestAuthRateLimiter_TrackLogin(t *testing.T) {
	arl := NewAuthRateLimiter(quietLogger())

	status := http.StatusUnauthorized
	handler := arl.TrackLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	// Each rejected credential counts against the window.
	for i := 0; i < 5; i++ {
		hitLogin(handler, "10.0.0.9:40000", nil)
	}
	if arl.loginLimiter.Allow("10.0.0.9") {
		t.Error("expected IP to be limited after 5 tracked failures")
	}

	// A successful login clears the window.
	status = http.StatusOK
	hitLogin(handler, "10.0.0.9:40000", nil)
	if !arl.loginLimiter.Allow("10.0.0.9") {
		t.Error("expected limit to clear after successful login")
	}
}
