// Package session holds the cookie settings shared by the auth handler
// and the session middleware.
package session

const (
	// CookieName identifies the session token cookie.
	CookieName = "facturo_session"

	// CookiePath scopes the cookie to the whole site.
	CookiePath = "/"

	// CookieMaxAge is seven days in seconds. Keep in sync with the
	// session lifetime enforced by the user service.
	CookieMaxAge = 7 * 24 * 60 * 60
)
