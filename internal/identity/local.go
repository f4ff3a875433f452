package identity

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the settings of the local identity service.
type Config struct {
	JWTSecret             string
	JWTExpiration         time.Duration
	RequireConfirmedEmail bool
	// Mailer delivers confirmation tokens. Nil leaves delivery to the operator.
	Mailer Mailer
}

// localService implements Service on top of the account repository.
type localService struct {
	accounts    repository.AccountRepository
	revocations RevocationStore
	hooks       []RegistrationHook
	cfg         Config
	log         *logger.Logger
	now         func() time.Time
}

// NewLocalService creates the identity service. Hooks run in order after
// every successful registration.
func NewLocalService(accounts repository.AccountRepository, revocations RevocationStore, cfg Config, log *logger.Logger, hooks ...RegistrationHook) Service {
	if cfg.JWTSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if cfg.JWTExpiration <= 0 {
		cfg.JWTExpiration = time.Hour
	}
	if revocations == nil {
		revocations = NewMemoryRevocationStore()
	}
	return &localService{
		accounts:    accounts,
		revocations: revocations,
		hooks:       hooks,
		cfg:         cfg,
		log:         log.With("service", "IdentityService"),
		now:         time.Now,
	}
}

// Authenticate checks the password and opens a new session.
func (s *localService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.cfg.RequireConfirmedEmail && !account.EmailConfirmed {
		return nil, ErrEmailNotConfirmed
	}
	return s.issue(account, uuid.NewString())
}

// Register creates the account, runs the registration hooks and, when no
// confirmation is required, opens a session right away.
func (s *localService) Register(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*domain.Account, *Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" || meta.FullName == "" || !meta.Role.Valid() {
		return nil, nil, errors.New("email, password, full name and a valid role are required")
	}

	_, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		return nil, nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, ErrHashingFailed
	}

	account := &domain.Account{
		Email:          email,
		PasswordHash:   string(hashed),
		EmailConfirmed: !s.cfg.RequireConfirmedEmail,
		Metadata:       meta,
	}
	if s.cfg.RequireConfirmedEmail {
		account.ConfirmationToken = uuid.NewString()
	}

	if _, err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, ErrUserAlreadyExists
		}
		return nil, nil, err
	}

	for _, hook := range s.hooks {
		if err := hook(ctx, account); err != nil {
			s.log.Error("registration hook failed", "accountId", account.ID.Hex(), "error", err)
			if delErr := s.accounts.Delete(ctx, account.ID); delErr != nil {
				s.log.Error("failed to roll back account", "accountId", account.ID.Hex(), "error", delErr)
			}
			return nil, nil, fmt.Errorf("post-registration: %w", err)
		}
	}

	if s.cfg.RequireConfirmedEmail {
		s.log.Info("confirmation pending", "accountId", account.ID.Hex())
		if s.cfg.Mailer != nil {
			if err := s.cfg.Mailer.SendConfirmation(ctx, account.Email, account.ConfirmationToken); err != nil {
				s.log.Warn("failed to send confirmation", "accountId", account.ID.Hex(), "error", err)
			}
		}
		account.PasswordHash = ""
		return account, nil, nil
	}

	session, err := s.issue(account, uuid.NewString())
	if err != nil {
		return nil, nil, err
	}
	account.PasswordHash = ""
	return account, session, nil
}

// ConfirmEmail redeems a confirmation token.
func (s *localService) ConfirmEmail(ctx context.Context, token string) (*domain.Account, error) {
	account, err := s.accounts.GetByConfirmationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidConfirmation
		}
		return nil, err
	}
	if err := s.accounts.MarkEmailConfirmed(ctx, account.ID); err != nil {
		return nil, err
	}
	account.EmailConfirmed = true
	account.ConfirmationToken = ""
	account.PasswordHash = ""
	return account, nil
}

// Verify parses an access token and checks it has not been revoked.
func (s *localService) Verify(ctx context.Context, accessToken string) (*Session, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid || claims.SessionID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	session, err := claims.session(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	revoked, err := s.revocations.IsRevoked(ctx, session.ID, session.AccountID.Hex(), session.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	return session, nil
}

// Refresh re-issues the token of a live session, keeping its session ID.
func (s *localService) Refresh(ctx context.Context, session *Session) (*Session, error) {
	current, err := s.Verify(ctx, session.AccessToken)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, current.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.issue(account, current.ID)
}

// TerminateSession revokes one session, or every session of the account.
func (s *localService) TerminateSession(ctx context.Context, session *Session, scope SignOutScope) error {
	if session == nil {
		return nil
	}
	switch scope {
	case ScopeGlobal:
		return s.revocations.RevokeAccount(ctx, session.AccountID.Hex(), s.now(), s.cfg.JWTExpiration)
	default:
		return s.revocations.RevokeSession(ctx, session.ID, session.ExpiresAt)
	}
}

// sessionClaims is the JWT payload of an access token.
type sessionClaims struct {
	UserID       string `json:"uid"`
	SessionID    string `json:"sid"`
	Email        string `json:"email"`
	IssuedAtNano int64  `json:"iatn"`
	jwt.RegisteredClaims
}

func (c *sessionClaims) session(token string) (*Session, error) {
	accountID, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:          c.SessionID,
		AccountID:   accountID,
		Email:       c.Email,
		AccessToken: token,
		IssuedAt:    time.Unix(0, c.IssuedAtNano),
		ExpiresAt:   c.ExpiresAt.Time,
	}, nil
}

func (s *localService) issue(account *domain.Account, sessionID string) (*Session, error) {
	now := s.now()
	expires := now.Add(s.cfg.JWTExpiration)
	claims := &sessionClaims{
		UserID:       account.ID.Hex(),
		SessionID:    sessionID,
		Email:        account.Email,
		IssuedAtNano: now.UnixNano(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "wellness-portal",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, ErrTokenGeneration
	}
	return &Session{
		ID:          sessionID,
		AccountID:   account.ID,
		Email:       account.Email,
		AccessToken: signed,
		IssuedAt:    time.Unix(0, claims.IssuedAtNano),
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
