// Package service contains the business logic layer.
//
// This file implements account management: registration, login, sessions
// and password changes. Registration creates the company, its owner user
// and a free subscription in one transaction.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 takes roughly 250ms on modern hardware, which is slow enough
	// for credential stuffing and fast enough for login flows.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes for session tokens.
	// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
	SessionTokenBytes = 32

	// SessionDuration is how long a session remains valid.
	SessionDuration = 7 * 24 * time.Hour

	// MinPasswordLength follows NIST SP 800-63B.
	MinPasswordLength = 8

	// MaxPasswordLength caps input before bcrypt's own 72-byte limit.
	MaxPasswordLength = 72
)

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines account and session operations.
type UserService interface {
	// Register creates a company, its owner user and a free subscription.
	// Returns domain.ECONFLICT if the email is already taken.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and creates a new session.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates the session for the given raw token.
	Logout(ctx context.Context, token string) error

	// GetByID returns a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetBySessionToken resolves a raw session token to its user.
	// Returns domain.EUNAUTHORIZED for missing or expired sessions.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// ChangePassword verifies the current password and sets a new one.
	ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error

	// DeleteExpiredSessions removes expired sessions. Run periodically.
	DeleteExpiredSessions(ctx context.Context) error
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	db            *sql.DB
	queries       *repository.Queries
	subscriptions SubscriptionService
	logger        *slog.Logger
}

// NewUserService creates a new UserService. The *sql.DB handle is needed
// because registration spans companies, users and subscriptions.
func NewUserService(db *sql.DB, queries *repository.Queries, subscriptions SubscriptionService, logger *slog.Logger) UserService {
	return &userService{
		db:            db,
		queries:       queries,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "user.register"

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.CompanyName) == "" {
		return nil, domain.Invalid(op, "Company name is required")
	}

	// Check for an existing account first so the common conflict case does
	// not pay for a bcrypt hash.
	if _, err := s.queries.GetUserByEmail(ctx, email); err == nil {
		return nil, domain.Conflict(op, "An account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to check existing account")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to hash password")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	company, err := qtx.CreateCompany(ctx, repository.CreateCompanyParams{
		Name:  strings.TrimSpace(params.CompanyName),
		Email: email,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create company")
	}

	user, err := qtx.CreateUser(ctx, repository.CreateUserParams{
		CompanyID:    company.ID,
		Email:        email,
		PasswordHash: string(passwordHash),
		Name:         strings.TrimSpace(params.Name),
		Role:         string(domain.UserRoleOwner),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "An account with this email already exists")
		}
		return nil, domain.Internal(err, op, "failed to create user")
	}

	def := domain.DefaultSubscription(company.ID)
	if _, err := qtx.CreateSubscription(ctx, repository.CreateSubscriptionParams{
		CompanyID:   company.ID,
		Tier:        string(def.Tier),
		Status:      string(def.Status),
		PeriodStart: def.PeriodStart,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to create subscription")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit registration")
	}

	s.logger.Info("Account registered",
		"user_id", user.ID,
		"company_id", company.ID)
	return &user, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "user.login"

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn a comparison anyway so missing accounts are not
			// distinguishable by response time.
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to generate session token")
	}

	if _, err := s.queries.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    user.ID,
		TokenHash: hashSessionToken(token),
		ExpiresAt: time.Now().Add(SessionDuration),
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to create session")
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return &domain.LoginResult{User: &user, Token: token}, nil
}

func (s *userService) Logout(ctx context.Context, token string) error {
	const op = "user.logout"

	if err := s.queries.DeleteSession(ctx, hashSessionToken(token)); err != nil {
		return domain.Internal(err, op, "failed to delete session")
	}
	return nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "user.get_by_id"

	user, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}
	return &user, nil
}

func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "user.get_by_session"

	session, err := s.queries.GetSessionByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "failed to load session")
	}

	if session.IsExpired() {
		// Clean up eagerly; the periodic sweep would catch it anyway.
		_ = s.queries.DeleteSession(ctx, session.TokenHash)
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	user, err := s.queries.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load session user")
	}
	return &user, nil
}

func (s *userService) ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error {
	const op = "user.change_password"

	if err := validatePassword(params.NewPassword); err != nil {
		return err
	}

	user, err := s.queries.GetUserByID(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", params.UserID.String())
		}
		return domain.Internal(err, op, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(params.CurrentPassword)); err != nil {
		return domain.Unauthorized(op, "Current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(params.NewPassword), BcryptCost)
	if err != nil {
		return domain.Internal(err, op, "failed to hash password")
	}

	if err := s.queries.UpdateUserPassword(ctx, user.ID, string(newHash)); err != nil {
		return domain.Internal(err, op, "failed to update password")
	}

	s.logger.Info("Password changed", "user_id", user.ID)
	return nil
}

func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "user.delete_expired_sessions"

	count, err := s.queries.DeleteExpiredSessions(ctx)
	if err != nil {
		return domain.Internal(err, op, "failed to delete expired sessions")
	}
	if count > 0 {
		s.logger.Debug("Deleted expired sessions", "count", count)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func generateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashSessionToken hashes tokens before storage so a leaked sessions table
// cannot be replayed. Tokens are high-entropy, so SHA-256 is enough; bcrypt
// would just slow down every request.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	at := strings.Count(email, "@")
	if at != 1 {
		return domain.Invalid("", "Email must contain exactly one @ symbol")
	}
	idx := strings.Index(email, "@")
	if idx == 0 || idx == len(email)-1 {
		return domain.Invalid("", "Email must have a local part and a domain")
	}
	if !strings.Contains(email[idx+1:], ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}
	return nil
}

// isUniqueViolation reports whether the error is a Postgres unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
