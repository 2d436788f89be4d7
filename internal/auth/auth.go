// Package auth authenticates users and guards catalog mutation. It is the
// only package that creates or destroys sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/apperr"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const DefaultSessionTTL = 24 * time.Hour

type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type UserInfo struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type AuthStatus struct {
	Authenticated bool      `json:"authenticated"`
	User          *UserInfo `json:"user,omitempty"`
}

type Service struct {
	users    UserFinder
	sessions session.Store
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

type Option func(*Service)

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func NewService(users UserFinder, sessions session.Store, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		ttl:      DefaultSessionTTL,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// Authenticate verifies the credentials and opens a new session. Unknown
// emails still pay for a bcrypt comparison so both failure paths look the
// same from outside.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, apperr.Store("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	sess := &models.Session{
		ID:        id.String(),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, apperr.Store("save session", err)
	}

	return sess, nil
}

func (s *Service) RequireAuthenticated(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, apperr.ErrUnauthorized
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, apperr.Store("get session", err)
	}

	if sess.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			s.log.Warn("Failed to drop expired session", zap.Error(err))
		}
		return nil, apperr.ErrUnauthorized
	}

	return sess, nil
}

func (s *Service) RequireAdmin(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.RequireAuthenticated(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.IsAdmin() {
		return nil, apperr.ErrForbidden
	}

	return sess, nil
}

// Logout is idempotent: unknown or empty ids succeed.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperr.Store("delete session", err)
	}
	return nil
}

// CheckAuth never fails; store errors are logged and reported as
// unauthenticated.
func (s *Service) CheckAuth(ctx context.Context, sessionID string) AuthStatus {
	sess, err := s.RequireAuthenticated(ctx, sessionID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindStore {
			s.log.Error("Session lookup failed", zap.Error(err))
		}
		return AuthStatus{Authenticated: false}
	}

	return AuthStatus{
		Authenticated: true,
		User:          &UserInfo{Email: sess.Email, Role: sess.Role},
	}
}

// PurgeExpired removes every expired session from the store.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, apperr.Store("purge sessions", err)
	}
	return n, nil
}

// dummyHash is compared against when the email is unknown. It is built at
// init so the first miss costs the same as any other.
var dummyHash = mustDummyHash()

func mustDummyHash() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("storefront-timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: dummy hash: %v", err))
	}
	return h
}
