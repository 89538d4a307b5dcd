package models

import "time"

// User is the authenticated account as reported by the auth service
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// IsConfirmed reports whether the user verified their email address
func (u *User) IsConfirmed() bool {
	return u != nil && u.EmailConfirmedAt != nil
}

// Session represents an authenticated session
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// IsExpired checks if the access token has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// AuthEventType names a change in authentication state
type AuthEventType string

const (
	AuthInitialSession AuthEventType = "INITIAL_SESSION"
	AuthSignedIn       AuthEventType = "SIGNED_IN"
	AuthSignedOut      AuthEventType = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	AuthUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent is published whenever the session changes; Session is nil after sign-out
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}
