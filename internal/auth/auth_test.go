package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safar/go-storefront/internal/apperr"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	users map[string]*models.User
	err   error
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return u, nil
}

type failingSessions struct {
	session.Store
}

func (failingSessions) Save(context.Context, *models.Session) error { return errors.New("redis down") }
func (failingSessions) Get(context.Context, string) (*models.Session, error) {
	return nil, errors.New("redis down")
}

func newFixture(t *testing.T) (*Service, *session.MemoryStore, *time.Time) {
	t.Helper()

	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}

	users := &fakeUsers{users: map[string]*models.User{
		"admin@moggesstore.se": {ID: 1, Email: "admin@moggesstore.se", PasswordHash: hash("admin123"), Role: models.RoleAdmin},
		"kund@example.com":     {ID: 2, Email: "kund@example.com", PasswordHash: hash("hemligt1"), Role: models.RoleUser},
	}}

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sessions := session.NewMemoryStore()
	svc := NewService(users, sessions,
		WithSessionTTL(time.Hour),
		WithClock(func() time.Time { return clock }),
	)
	return svc, sessions, &clock
}

func TestAuthenticate(t *testing.T) {
	svc, sessions, clock := newFixture(t)
	ctx := context.Background()

	sess, err := svc.Authenticate(ctx, "admin@moggesstore.se", "admin123")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, models.RoleAdmin, sess.Role)
	assert.Equal(t, clock.Add(time.Hour), sess.ExpiresAt)

	stored, err := sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@moggesstore.se", stored.Email)

	again, err := svc.Authenticate(ctx, "admin@moggesstore.se", "admin123")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, again.ID)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	_, wrongPassword := svc.Authenticate(ctx, "admin@moggesstore.se", "wrong")
	_, unknownEmail := svc.Authenticate(ctx, "nobody@moggesstore.se", "admin123")
	_, wrongCase := svc.Authenticate(ctx, "Admin@MoggesStore.se", "admin123")

	for _, err := range []error{wrongPassword, unknownEmail, wrongCase} {
		assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
		assert.Equal(t, "Invalid credentials", apperr.PublicMessage(err))
	}
}

func TestDummyHashIsReadyBeforeFirstLogin(t *testing.T) {
	cost, err := bcrypt.Cost(dummyHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestAuthenticateStoreFailure(t *testing.T) {
	svc := NewService(&fakeUsers{err: errors.New("connection refused")}, session.NewMemoryStore())

	_, err := svc.Authenticate(context.Background(), "admin@moggesstore.se", "admin123")
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))

	working, _, _ := newFixture(t)
	svc = NewService(working.users, failingSessions{})
	_, err = svc.Authenticate(context.Background(), "admin@moggesstore.se", "admin123")
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
}

func TestRequireAdmin(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	admin, err := svc.Authenticate(ctx, "admin@moggesstore.se", "admin123")
	require.NoError(t, err)
	customer, err := svc.Authenticate(ctx, "kund@example.com", "hemligt1")
	require.NoError(t, err)

	got, err := svc.RequireAdmin(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)

	_, err = svc.RequireAdmin(ctx, customer.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.RequireAdmin(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.RequireAdmin(ctx, "does-not-exist")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestExpiredSessionIsRemoved(t *testing.T) {
	svc, sessions, clock := newFixture(t)
	ctx := context.Background()

	sess, err := svc.Authenticate(ctx, "admin@moggesstore.se", "admin123")
	require.NoError(t, err)

	*clock = clock.Add(59 * time.Minute)
	_, err = svc.RequireAuthenticated(ctx, sess.ID)
	require.NoError(t, err)

	*clock = clock.Add(time.Minute)
	_, err = svc.RequireAuthenticated(ctx, sess.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = sessions.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	sess, err := svc.Authenticate(ctx, "admin@moggesstore.se", "admin123")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, sess.ID))
	require.NoError(t, svc.Logout(ctx, sess.ID))
	require.NoError(t, svc.Logout(ctx, ""))

	_, err = svc.RequireAuthenticated(ctx, sess.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCheckAuth(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, AuthStatus{Authenticated: false}, svc.CheckAuth(ctx, ""))
	assert.False(t, svc.CheckAuth(ctx, "stale").Authenticated)

	sess, err := svc.Authenticate(ctx, "kund@example.com", "hemligt1")
	require.NoError(t, err)

	status := svc.CheckAuth(ctx, sess.ID)
	require.True(t, status.Authenticated)
	assert.Equal(t, &UserInfo{Email: "kund@example.com", Role: models.RoleUser}, status.User)

	broken := NewService(&fakeUsers{}, failingSessions{})
	assert.False(t, broken.CheckAuth(ctx, sess.ID).Authenticated)
}

func TestPurgeExpired(t *testing.T) {
	svc, _, clock := newFixture(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "admin@moggesstore.se", "admin123")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "kund@example.com", "hemligt1")
	require.NoError(t, err)

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	*clock = clock.Add(2 * time.Hour)
	n, err = svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("admin123")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("admin123")))
}
