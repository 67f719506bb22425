package store

import (
	"context"
	"database/sql"
	"time"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Ping verifies the backing database connection.
	Ping(ctx context.Context) error

	// Migrate creates the cache entry schema and indexes if missing.
	Migrate(ctx context.Context) error

	// InsertCacheEntry persists a new cache entry and fills in its
	// generated identifier.
	InsertCacheEntry(ctx context.Context, create *CacheEntry) (*CacheEntry, error)

	// VectorSearch returns candidates ranked by similarity, filtered by
	// user, threshold, and creation cutoff. An empty result with a nil
	// error is a logical miss; a non-nil error is an operational failure.
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*CacheEntryWithScore, error)

	// DeleteExpiredEntries removes entries created at or before the cutoff
	// and reports how many rows were deleted.
	DeleteExpiredEntries(ctx context.Context, before time.Time) (int64, error)
}
