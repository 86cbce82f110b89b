// Package identity is the client side of the identity service. It signs
// users in and out, keeps the current session on disk, and republishes
// auth state changes as events.
package identity

import (
	"context"
	"time"
)

// User is the authenticated account as the service reports it.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a signed-in session with its token pair.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// EventType identifies an auth state change.
type EventType string

const (
	SignedIn       EventType = "SIGNED_IN"
	SignedOut      EventType = "SIGNED_OUT"
	TokenRefreshed EventType = "TOKEN_REFRESHED"
)

// AuthEvent is published whenever the client's session changes. Session is
// nil for SignedOut.
type AuthEvent struct {
	Type    EventType
	Session *Session
}

// Client talks to the identity service on behalf of one local user.
type Client interface {
	// GetSession returns the locally persisted session, or nil when no
	// one is signed in. A session whose access token has expired is
	// renewed through the refresh grant before being returned; when the
	// server rejects the refresh the session is forgotten and nil is
	// returned.
	GetSession(ctx context.Context) (*Session, error)

	// SignInWithPassword exchanges credentials for a session and
	// persists it.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// SignUp registers a new account. It does not sign the account in.
	SignUp(ctx context.Context, email, password, name string) (*User, error)

	// SignOut revokes the current session on the server and forgets it
	// locally.
	SignOut(ctx context.Context) error

	// GetUser fetches the account behind the current session from the
	// server. It fails when the session is invalid or the account is gone.
	GetUser(ctx context.Context) (*User, error)

	// Events returns the stream of auth state changes.
	Events() <-chan AuthEvent
}
