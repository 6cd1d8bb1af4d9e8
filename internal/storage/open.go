package storage

import (
	"context"
	"fmt"

	"github.com/benvon/sitetime/internal/database"
	"github.com/benvon/sitetime/internal/redisstore"
)

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var (
	_ Store = (*database.Store)(nil)
	_ Store = (*redisstore.Store)(nil)
)

// Open connects to the configured backend and prepares it for use.
// SQL backends are migrated before returning.
func Open(ctx context.Context, backend, databaseURL, redisURL string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, BackendPostgres:
		store, err := database.Open(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", backend, err)
		}
		return store, nil
	case BackendRedis:
		store, err := redisstore.New(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
