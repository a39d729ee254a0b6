package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/session"
	"github.com/google/uuid"
)

// =============================================================================
// Test Fakes
// =============================================================================

// stubUserService resolves a single known session token to a fixed user.
type stubUserService struct {
	token string
	user  *domain.User
}

func (s *stubUserService) Register(context.Context, domain.RegisterParams) (*domain.User, error) {
	panic("not used")
}

func (s *stubUserService) Login(context.Context, string, string) (*domain.LoginResult, error) {
	panic("not used")
}

func (s *stubUserService) Logout(context.Context, string) error {
	panic("not used")
}

func (s *stubUserService) GetByID(context.Context, uuid.UUID) (*domain.User, error) {
	panic("not used")
}

func (s *stubUserService) GetBySessionToken(_ context.Context, token string) (*domain.User, error) {
	if s.user != nil && token == s.token {
		return s.user, nil
	}
	return nil, domain.Unauthorized("user.get_by_session_token", "Invalid or expired session")
}

func (s *stubUserService) ChangePassword(context.Context, domain.PasswordChangeParams) error {
	panic("not used")
}

func (s *stubUserService) DeleteExpiredSessions(context.Context) error {
	panic("not used")
}

func testUser(role domain.UserRole) *domain.User {
	return &domain.User{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Email:     "owner@example.com",
		Role:      role,
	}
}

func newAuthMiddleware(users *stubUserService) *AuthMiddleware {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewAuthMiddleware(users, logger, false)
}

// =============================================================================
// WithUser Middleware Tests
// =============================================================================

func TestWithUserValidSession(t *testing.T) {
	user := testUser(domain.UserRoleMember)
	mw := newAuthMiddleware(&stubUserService{token: "tok_valid", user: user})

	var got *domain.User
	handler := mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.GetUser(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok_valid"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil {
		t.Fatal("expected user in request context")
	}
	if got.ID != user.ID {
		t.Errorf("user ID = %v, want %v", got.ID, user.ID)
	}
}

func TestWithUserNoCookie(t *testing.T) {
	mw := newAuthMiddleware(&stubUserService{})

	called := false
	handler := mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if auth.GetUser(r.Context()) != nil {
			t.Error("expected no user in context")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("expected next handler to run without a cookie")
	}
}

func TestWithUserInvalidSessionClearsCookie(t *testing.T) {
	mw := newAuthMiddleware(&stubUserService{token: "tok_valid", user: testUser(domain.UserRoleMember)})

	handler := mw.WithUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) != nil {
			t.Error("expected no user for invalid session")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "tok_expired"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	setCookie := rec.Header().Get("Set-Cookie")
	if !strings.Contains(setCookie, session.CookieName+"=") {
		t.Errorf("expected session cookie to be cleared, got %q", setCookie)
	}
	if !strings.Contains(setCookie, "Max-Age=0") {
		t.Errorf("expected expired cookie, got %q", setCookie)
	}
}

// =============================================================================
// RequireUser Middleware Tests
// =============================================================================

func TestRequireUserAuthenticated(t *testing.T) {
	mw := newAuthMiddleware(&stubUserService{})

	called := false
	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.SetUser(req.Context(), testUser(domain.UserRoleMember)))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("expected next handler to run for authenticated user")
	}
}

func TestRequireUserUnauthenticated(t *testing.T) {
	mw := newAuthMiddleware(&stubUserService{})

	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// =============================================================================
// RequireOwner Middleware Tests
// =============================================================================

func TestRequireOwner(t *testing.T) {
	tests := []struct {
		name       string
		user       *domain.User
		wantStatus int
		wantNext   bool
	}{
		{
			name:       "owner allowed",
			user:       testUser(domain.UserRoleOwner),
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "member forbidden",
			user:       testUser(domain.UserRoleMember),
			wantStatus: http.StatusForbidden,
			wantNext:   false,
		},
		{
			name:       "missing user unauthorized",
			user:       nil,
			wantStatus: http.StatusUnauthorized,
			wantNext:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := newAuthMiddleware(&stubUserService{})

			called := false
			handler := mw.RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/billing/checkout", nil)
			if tt.user != nil {
				req = req.WithContext(auth.SetUser(req.Context(), tt.user))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestStack(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	stack := Stack(tag("outer"), tag("inner"))
	stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}
