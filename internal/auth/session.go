package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"antspend/internal/core"
	"antspend/internal/log"
	"antspend/internal/storage"
)

// SessionCookie is the cookie name carrying the session token.
const SessionCookie = "session"

// ErrInvalidCredentials is returned for a bad username or password. Both
// cases share one error so login responses cannot be used to probe accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionStore is the slice of the repository the auth service needs.
type SessionStore interface {
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error
	UserBySession(ctx context.Context, token string, now time.Time) (core.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Service issues and validates session tokens.
type Service struct {
	store  SessionStore
	ttl    time.Duration
	logger *log.Logger
}

func NewService(store SessionStore, ttl time.Duration, logger *log.Logger) *Service {
	return &Service{store: store, ttl: ttl, logger: logger}
}

// TTL returns the configured session lifetime, used for cookie expiry.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login checks the credentials and creates a session, returning its token.
func (s *Service) Login(ctx context.Context, username, password string, now time.Time) (string, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if !CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	// Each login doubles as the expired-session sweep; a failed sweep is
	// only noise, never a login failure.
	if n, err := s.store.DeleteExpiredSessions(ctx, now); err != nil {
		s.logger.WarnContext(ctx, "Expired session sweep failed", log.FieldError, err)
	} else if n > 0 {
		s.logger.DebugContext(ctx, "Purged expired sessions", "sessions", n)
	}

	token := uuid.NewString()
	if err := s.store.CreateSession(ctx, token, user.ID, now.Add(s.ttl)); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "User logged in",
		log.FieldUserID, user.ID, "username", user.Username)
	return token, nil
}

// Logout removes the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string, now time.Time) (core.User, error) {
	return s.store.UserBySession(ctx, token, now)
}
