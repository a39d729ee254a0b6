// Package domain contains core business types and interfaces.
//
// This file defines the User and Company domain types and related types for
// authentication. These types are separate from the repository models to allow
// for business logic enrichment and to decouple the domain layer from the
// database layer.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Company is the tenant: all business records (invoices, bills, products,
// employees, the subscription, usage counters) hang off a company.
type Company struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Address   string
	City      string
	Country   string
	TaxID     string
	LogoKey   string // object storage key for the company logo (branding feature)
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRole controls what a user may do within their company.
type UserRole string

const (
	UserRoleOwner  UserRole = "owner"
	UserRoleMember UserRole = "member"
)

// User represents a registered user of the Facturo platform.
// Every user belongs to exactly one company; the company is the tenant
// against which all gating decisions are made.
type User struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	Email        string
	PasswordHash string // Never expose this in API responses
	Name         string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsOwner returns true if the user may manage billing and company settings.
func (u *User) IsOwner() bool {
	return u.Role == UserRoleOwner
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored in the database with a hashed token.
// The raw token is only given to the client once (at login).
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for registration.
// Registration creates the company, its owner user, and a Free subscription.
type RegisterParams struct {
	CompanyName string
	Email       string
	Password    string // Raw password, will be hashed by service
	Name        string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed) - only returned once
}

// PasswordChangeParams contains parameters for changing a user's password.
type PasswordChangeParams struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ToNullUUID converts a uuid pointer to uuid.NullUUID.
func ToNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{Valid: false}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
