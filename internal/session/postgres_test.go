package session

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/safar/go-storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreSaveAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expires := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s := &models.Session{ID: "sid", UserID: 7, Email: "admin@moggesstore.se", Role: models.RoleAdmin, ExpiresAt: expires}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).
		WithArgs("sid", int64(7), "admin@moggesstore.se", models.RoleAdmin, expires).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM sessions\s+WHERE id = \$1`).
		WithArgs("sid").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "email", "role", "expires_at"}).
			AddRow("sid", 7, "admin@moggesstore.se", "admin", expires))

	store := NewPostgresStore(db)
	require.NoError(t, store.Save(context.Background(), s))

	got, err := store.Get(context.Background(), "sid")
	require.NoError(t, err)
	assert.Equal(t, *s, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "email", "role", "expires_at"}))

	_, err = NewPostgresStore(db).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreDeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at <= $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := NewPostgresStore(db).DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
