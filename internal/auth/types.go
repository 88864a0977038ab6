package auth

import (
	"errors"
	"time"
)

// Role represents an authorisation tier.
type Role string

const (
	// RoleUser may issue device commands and read status.
	RoleUser Role = "user"

	// RoleAdmin may additionally read security statistics and revoke
	// sessions.
	RoleAdmin Role = "admin"
)

// User is one whitelist entry. The whitelist is the source of truth: users
// are never created or mutated at runtime.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Roles       []Role `json:"roles"`
}

// HasRole reports whether the user holds the role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Session is one user's active session. Renewed on activity, destroyed on
// expiry or explicit revoke.
type Session struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Sentinel errors for authorisation failures.
var (
	ErrNotWhitelisted = errors.New("user is not whitelisted")
	ErrSessionExpired = errors.New("session has expired")
	ErrTokenInvalid   = errors.New("invalid token")
)
