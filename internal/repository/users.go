package repository

import (
	"context"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Companies
// =============================================================================

// CreateCompanyParams contains the fields for inserting a company.
type CreateCompanyParams struct {
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	Country string
	TaxID   string
}

const createCompany = `
INSERT INTO companies (name, email, phone, address, city, country, tax_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, name, email, phone, address, city, country, tax_id, logo_key, created_at, updated_at
`

func (q *Queries) CreateCompany(ctx context.Context, arg CreateCompanyParams) (domain.Company, error) {
	row := q.db.QueryRowContext(ctx, createCompany,
		arg.Name, arg.Email, arg.Phone, arg.Address, arg.City, arg.Country, arg.TaxID)
	return scanCompany(row)
}

const getCompanyByID = `
SELECT id, name, email, phone, address, city, country, tax_id, logo_key, created_at, updated_at
FROM companies WHERE id = $1
`

func (q *Queries) GetCompanyByID(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	return scanCompany(q.db.QueryRowContext(ctx, getCompanyByID, id))
}

// UpdateCompanyParams contains the updatable company fields.
type UpdateCompanyParams struct {
	ID      uuid.UUID
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	Country string
	TaxID   string
}

const updateCompany = `
UPDATE companies
SET name = $2, email = $3, phone = $4, address = $5, city = $6, country = $7, tax_id = $8, updated_at = now()
WHERE id = $1
RETURNING id, name, email, phone, address, city, country, tax_id, logo_key, created_at, updated_at
`

func (q *Queries) UpdateCompany(ctx context.Context, arg UpdateCompanyParams) (domain.Company, error) {
	row := q.db.QueryRowContext(ctx, updateCompany,
		arg.ID, arg.Name, arg.Email, arg.Phone, arg.Address, arg.City, arg.Country, arg.TaxID)
	return scanCompany(row)
}

const updateCompanyLogoKey = `
UPDATE companies SET logo_key = $2, updated_at = now() WHERE id = $1
`

func (q *Queries) UpdateCompanyLogoKey(ctx context.Context, id uuid.UUID, logoKey string) error {
	_, err := q.db.ExecContext(ctx, updateCompanyLogoKey, id, logoKey)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(row rowScanner) (domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.City,
		&c.Country, &c.TaxID, &c.LogoKey, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// =============================================================================
// Users
// =============================================================================

// CreateUserParams contains the fields for inserting a user.
type CreateUserParams struct {
	CompanyID    uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
}

const createUser = `
INSERT INTO users (company_id, email, password_hash, name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, company_id, email, password_hash, name, role, created_at, updated_at
`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (domain.User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.CompanyID, arg.Email, arg.PasswordHash, arg.Name, arg.Role)
	return scanUser(row)
}

const getUserByEmail = `
SELECT id, company_id, email, password_hash, name, role, created_at, updated_at
FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByID = `
SELECT id, company_id, email, password_hash, name, role, created_at, updated_at
FROM users WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getCompanyOwner = `
SELECT id, company_id, email, password_hash, name, role, created_at, updated_at
FROM users WHERE company_id = $1 AND role = 'owner'
ORDER BY created_at LIMIT 1
`

func (q *Queries) GetCompanyOwner(ctx context.Context, companyID uuid.UUID) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getCompanyOwner, companyID))
}

const updateUserPassword = `
UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
`

func (q *Queries) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, id, passwordHash)
	return err
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.PasswordHash, &u.Name,
		&u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// =============================================================================
// Sessions
// =============================================================================

// CreateSessionParams contains the fields for inserting a session.
type CreateSessionParams struct {
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
}

const createSession = `
INSERT INTO sessions (user_id, token_hash, expires_at)
VALUES ($1, $2, $3)
RETURNING id, user_id, token_hash, expires_at, created_at
`

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (domain.Session, error) {
	row := q.db.QueryRowContext(ctx, createSession, arg.UserID, arg.TokenHash, arg.ExpiresAt)
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const getSessionByTokenHash = `
SELECT id, user_id, token_hash, expires_at, created_at
FROM sessions WHERE token_hash = $1
`

func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	row := q.db.QueryRowContext(ctx, getSessionByTokenHash, tokenHash)
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const deleteSession = `
DELETE FROM sessions WHERE token_hash = $1
`

func (q *Queries) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, tokenHash)
	return err
}

const deleteExpiredSessions = `
DELETE FROM sessions WHERE expires_at < now()
`

func (q *Queries) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
