package blogflow

import (
	"context"
	"time"
)

// SessionEvent names the identity provider transition that produced a session change.
type SessionEvent string

const (
	SessionInitial        SessionEvent = "INITIAL_SESSION"
	SessionSignedIn       SessionEvent = "SIGNED_IN"
	SessionSignedOut      SessionEvent = "SIGNED_OUT"
	SessionTokenRefreshed SessionEvent = "TOKEN_REFRESHED"
	SessionUserUpdated    SessionEvent = "USER_UPDATED"
)

// User is the identity the provider reports for a session.
type User struct {
	ID         string
	Email      string
	FullName   string
	AvatarURL  string
	ProviderID string
}

// Session is an authenticated session issued by the identity provider.
type Session struct {
	User        User
	AccessToken string
	ExpiresAt   time.Time
}

// SignInResult is what the provider returns when an OAuth sign-in starts.
type SignInResult struct {
	Provider    string
	RedirectURL string
}

// SessionHandler receives session changes. A nil session means signed out.
// Providers call it synchronously with their own state change, so it must not block.
type SessionHandler func(event SessionEvent, session *Session)

// IdentityProvider is the external OAuth/session backend.
type IdentityProvider interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// OnSessionChange registers a handler and returns a function that unregisters it.
	OnSessionChange(handler SessionHandler) (unsubscribe func())
	// SignInWithProvider starts an OAuth sign-in with the named provider.
	SignInWithProvider(ctx context.Context, provider string) (*SignInResult, error)
	// SignOut ends the current session.
	SignOut(ctx context.Context) error
}
