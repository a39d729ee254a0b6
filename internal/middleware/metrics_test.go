package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

// =============================================================================
// Metrics Auth Middleware Tests
// =============================================================================

// scrapeWith sends a /metrics request through the middleware, optionally
// with basic auth credentials, and returns the recorder.
func scrapeWith(mw *MetricsAuthMiddleware, setAuth func(*http.Request)) *httptest.ResponseRecorder {
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# HELP facturo_http_requests_total"))
	}))

	req := httptest.NewRequest("GET", "/metrics", nil)
	if setAuth != nil {
		setAuth(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMetricsAuth_ValidCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("scraper", "s3cret")

	rec := scrapeWith(mw, func(r *http.Request) { r.SetBasicAuth("scraper", "s3cret") })

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected the scrape body to pass through")
	}
}

func TestMetricsAuth_MissingCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("scraper", "s3cret")

	rec := scrapeWith(mw, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="metrics"` {
		t.Errorf("unexpected WWW-Authenticate header: %q", got)
	}
}

func TestMetricsAuth_WrongCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("scraper", "s3cret")

	tests := []struct {
		name string
		user string
		pass string
		want int
	}{
		{name: "both correct", user: "scraper", pass: "s3cret", want: http.StatusOK},
		{name: "wrong password", user: "scraper", pass: "nope", want: http.StatusUnauthorized},
		{name: "wrong username", user: "intruder", pass: "s3cret", want: http.StatusUnauthorized},
		{name: "both wrong", user: "intruder", pass: "nope", want: http.StatusUnauthorized},
		{name: "empty pair", user: "", pass: "", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := scrapeWith(mw, func(r *http.Request) { r.SetBasicAuth(tt.user, tt.pass) })
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestMetricsAuth_MalformedAuthorizationHeader(t *testing.T) {
	mw := NewMetricsAuthMiddleware("scraper", "s3cret")

	rec := scrapeWith(mw, func(r *http.Request) {
		r.Header.Set("Authorization", "Basic notvalidbase64!!!")
	})

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestMetricsAuth_CRLFInCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("scraper", "s3cret")

	rec := scrapeWith(mw, func(r *http.Request) {
		payload := base64.StdEncoding.EncodeToString([]byte("scraper:s3cret\r\nX-Injected: header"))
		r.Header.Set("Authorization", "Basic "+payload)
	})

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for injected credentials, got %d", rec.Code)
	}
}

func TestMetricsAuth_DisabledWithoutCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("", "")

	rec := scrapeWith(mw, nil)

	if rec.Code != http.StatusOK {
		t.Errorf("auth should be disabled with no credentials configured, got %d", rec.Code)
	}
}
