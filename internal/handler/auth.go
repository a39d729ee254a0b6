package handler

import (
	"log/slog"
	"net/http"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/service"
	"github.com/facturo/facturo/internal/session"
)

// AuthHandler serves registration, login and account endpoints.
type AuthHandler struct {
	users    service.UserService
	isSecure bool
	logger   *slog.Logger
}

func NewAuthHandler(users service.UserService, isSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, isSecure: isSecure, logger: logger}
}

// RegisterRoutes mounts the auth endpoints. The authenticated routes are
// wrapped by the caller with the session middleware; the credential
// endpoints get the caller's rate limiters.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, requireUser, limitLogin, limitRegister, limitPassword func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth/register", limitRegister(http.HandlerFunc(h.HandleRegister)))
	mux.Handle("POST /api/auth/login", limitLogin(http.HandlerFunc(h.HandleLogin)))
	mux.HandleFunc("POST /api/auth/logout", h.HandleLogout)
	mux.Handle("GET /api/auth/me", requireUser(http.HandlerFunc(h.HandleMe)))
	mux.Handle("POST /api/auth/password", limitPassword(requireUser(http.HandlerFunc(h.HandleChangePassword))))
}

type registerRequest struct {
	CompanyName string `json:"company_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
}

type userResponse struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		CompanyID: u.CompanyID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Role:      string(u.Role),
	}
}

// HandleRegister creates a company with its owner user and logs them in.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), domain.RegisterParams{
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Registration logs the new owner straight in.
	result, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	session.SetCookie(w, result.Token, h.isSecure)

	h.logger.Info("user registered", "user_id", user.ID, "company_id", user.CompanyID)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	session.SetCookie(w, result.Token, h.isSecure)

	writeJSON(w, http.StatusOK, toUserResponse(result.User))
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		if err := h.users.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Error("failed to invalidate session", "error", err)
		}
	}
	session.ClearCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	err := h.users.ChangePassword(r.Context(), domain.PasswordChangeParams{
		UserID:          user.ID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
