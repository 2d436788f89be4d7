// Package session persists login sessions. Callers only ever see the opaque
// session id; the record itself stays behind a Store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/safar/go-storefront/internal/models"
)

var ErrNotFound = errors.New("session not found")

// Store is implemented by the memory, postgres and redis backends. Get
// returns the record as stored, expired or not; expiry policy belongs to the
// caller.
type Store interface {
	Save(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
