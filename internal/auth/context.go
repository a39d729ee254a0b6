// Package auth carries the authenticated user through request contexts.
// It sits below both middleware and handler so neither has to import
// the other.
package auth

import (
	"context"
	"net/http"

	"github.com/facturo/facturo/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

// SetUser returns a context carrying the authenticated user. The session
// middleware calls this after resolving the session cookie.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUser returns the authenticated user, or nil for anonymous requests.
func GetUser(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

// GetUserFromRequest is GetUser applied to the request's context.
func GetUserFromRequest(r *http.Request) *domain.User {
	return GetUser(r.Context())
}
