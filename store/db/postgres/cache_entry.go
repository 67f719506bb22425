package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/hrygo/semcache/store"
)

// InsertCacheEntry persists a cache entry.
func (d *DB) InsertCacheEntry(ctx context.Context, create *store.CacheEntry) (*store.CacheEntry, error) {
	stmt := `
		INSERT INTO cache_entry (uid, user_id, query, response, embedding, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	vector := pgvector.NewVector(create.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Query,
		create.Response,
		vector,
		create.CreatedTs,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert cache entry")
	}

	return create, nil
}

// VectorSearch performs cosine similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity), so
// ordering by distance ascending yields the most similar entries first.
// The candidate pool size maps onto the HNSW ef_search knob.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.CacheEntryWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin search transaction")
	}
	defer tx.Rollback()

	if opts.NumCandidates > 0 {
		// SET LOCAL does not accept bind parameters; the value is an
		// integer clamped by the profile, never raw user input.
		efSearch := opts.NumCandidates
		if efSearch > 1000 {
			efSearch = 1000
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch)); err != nil {
			return nil, errors.Wrap(err, "failed to set candidate pool size")
		}
	}

	query := `
		SELECT id, uid, user_id, query, response,
			1 - (embedding <=> $1) AS score
		FROM cache_entry
		WHERE user_id = $2
			AND created_ts > $3
		ORDER BY embedding <=> $4, created_ts DESC, id
		LIMIT $5
	`

	vector := pgvector.NewVector(opts.Vector)
	rows, err := tx.QueryContext(ctx, query,
		vector,
		opts.UserID,
		opts.CreatedAfter,
		vector,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.CacheEntryWithScore{}
	for rows.Next() {
		var entry store.CacheEntry
		var score float64
		if err := rows.Scan(
			&entry.ID,
			&entry.UID,
			&entry.UserID,
			&entry.Query,
			&entry.Response,
			&score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}

		// Post-filter: candidates strictly below the threshold are discarded.
		if score < opts.Threshold {
			continue
		}
		results = append(results, &store.CacheEntryWithScore{Entry: &entry, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit search transaction")
	}

	return results, nil
}

// DeleteExpiredEntries removes entries created at or before the cutoff.
func (d *DB) DeleteExpiredEntries(ctx context.Context, before time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM cache_entry WHERE created_ts <= $1`, before.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired cache entries")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count deleted cache entries")
	}
	return rows, nil
}
