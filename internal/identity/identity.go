// Package identity is the boundary to the hosted identity provider.
//
// The provider owns accounts and sessions. This package consumes five
// operations from it: start a session with credentials, register, end the
// session, fetch the current session, and subscribe to session changes.
//
// Client speaks the provider's REST dialect (GoTrue: /token, /signup,
// /logout, /user) and holds no state. Auth adds the client-side session
// handling a provider SDK would: it persists the session into a kv.Store,
// refreshes it when it expires and pushes an Event to every subscriber when
// it changes.
package identity

import (
	"context"
	"time"
)

// StorageKey is the kv key the serialized Session is persisted under.
const StorageKey = "habit.auth.session"

// TokenKey is the well-known key the access token is mirrored under for the
// request client.
const TokenKey = "habit_token"

// User is the provider-defined identity. Only ID and Email are relied on.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role,omitempty"`
	Aud       string    `json:"aud,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Session is an authenticated identity plus its tokens.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// expiryMargin: sessions this close to expiry are refreshed before use.
const expiryMargin = 10 * time.Second

// ExpiresSoon reports whether the access token expires within the refresh
// margin of now. A session without expiry never does.
func (s *Session) ExpiresSoon(now time.Time) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return now.Add(expiryMargin).Unix() >= s.ExpiresAt
}

// minRefreshDelay bounds how often a short-lived session is refreshed.
const minRefreshDelay = time.Second

// RefreshIn returns how long after now the session should be refreshed:
// expiryMargin before it expires, but no sooner than halfway through what
// is left of its lifetime. ok is false for a session without expiry.
func (s *Session) RefreshIn(now time.Time) (d time.Duration, ok bool) {
	if s == nil || s.ExpiresAt == 0 {
		return 0, false
	}
	remaining := time.Unix(s.ExpiresAt, 0).Sub(now)
	d = remaining - expiryMargin
	if half := remaining / 2; d < half {
		d = half
	}
	if d < minRefreshDelay {
		d = minRefreshDelay
	}
	return d, true
}

// EventKind is the reason a session changed.
type EventKind string

const (
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is one session change. Session is nil for EventSignedOut.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Provider is what the session layer needs from the identity provider.
//
// SignUp may return a nil Session when the provider requires email
// confirmation before the first sign-in. Session returns (nil, nil) when no
// one is signed in.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	Session(ctx context.Context) (*Session, error)
	Subscribe() (<-chan Event, func())
}
