package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-storefront/internal/config"
)

// New builds the Store selected by cfg.Session.Backend. The returned close
// func releases backend resources; it never closes db, which the caller owns.
func New(ctx context.Context, cfg *config.Config, db *sql.DB) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		return NewMemoryStore(), noop, nil
	case config.SessionBackendPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("postgres session backend requires a database")
		}
		return NewPostgresStore(db), noop, nil
	case config.SessionBackendRedis:
		client, err := NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend: %s", cfg.Session.Backend)
	}
}
