package postgres

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Migrate creates the cache entry table and its indexes. The embedding
// column dimension is fixed at migration time; a redeployment with a
// different dimension requires a fresh collection.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return errors.Wrap(err, "failed to create pgvector extension")
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS cache_entry (
			id BIGSERIAL PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			query TEXT NOT NULL,
			response TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_ts BIGINT NOT NULL
		)`, d.profile.EmbeddingDimensions)
	if _, err := d.db.ExecContext(ctx, createTable); err != nil {
		return errors.Wrap(err, "failed to create cache_entry table")
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_cache_entry_user_id ON cache_entry (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entry_created_ts ON cache_entry (created_ts)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entry_embedding ON cache_entry
			USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range indexes {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create cache_entry index")
		}
	}

	return nil
}
