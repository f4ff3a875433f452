// Package identity is the identity service the rest of the application signs
// users in against: accounts, credentials, sessions and auth-state events.
package identity

import (
	"alcyxob/wellness-portal/internal/domain"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidCredentials  = errors.New("invalid login credentials")
	ErrEmailNotConfirmed   = errors.New("email not confirmed")
	ErrUserAlreadyExists   = errors.New("user with this email already exists")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrSessionRevoked      = errors.New("session has been revoked")
	ErrInvalidConfirmation = errors.New("invalid confirmation token")
	ErrHashingFailed       = errors.New("failed to hash password")
	ErrTokenGeneration     = errors.New("failed to generate authentication token")
)

// Session is an authenticated session as seen by a client.
type Session struct {
	ID          string             `json:"id"`
	AccountID   primitive.ObjectID `json:"accountId"`
	Email       string             `json:"email"`
	AccessToken string             `json:"accessToken"`
	IssuedAt    time.Time          `json:"issuedAt"`
	ExpiresAt   time.Time          `json:"expiresAt"`
}

// Valid reports whether the session has not expired at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// AuthEvent names a session change.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthStateChange is delivered to subscribers after the client has committed
// the new session, so listeners always observe settled state.
type AuthStateChange struct {
	Event   AuthEvent
	Session *Session // nil after sign-out or when no session was restored
}

// Listener receives auth-state changes.
type Listener func(ctx context.Context, change AuthStateChange)

// SignOutScope selects which sessions a sign-out terminates.
type SignOutScope string

const (
	ScopeLocal  SignOutScope = "local"  // this session only
	ScopeGlobal SignOutScope = "global" // every session of the account
)

// RegistrationHook runs after an account is created. It materializes the
// sign-up metadata elsewhere, e.g. into the profile table.
type RegistrationHook func(ctx context.Context, account *domain.Account) error

// Service is the server side of the identity service.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	// Register creates an account. The returned session is nil while the
	// email still needs confirming.
	Register(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*domain.Account, *Session, error)
	ConfirmEmail(ctx context.Context, token string) (*domain.Account, error)
	Verify(ctx context.Context, accessToken string) (*Session, error)
	Refresh(ctx context.Context, session *Session) (*Session, error)
	TerminateSession(ctx context.Context, session *Session, scope SignOutScope) error
}
