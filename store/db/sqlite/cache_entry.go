package sqlite

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/semcache/plugin/vectorenc"
	"github.com/hrygo/semcache/store"
)

// InsertCacheEntry persists a cache entry with its embedding encoded per the
// configured vector encoding.
func (d *DB) InsertCacheEntry(ctx context.Context, create *store.CacheEntry) (*store.CacheEntry, error) {
	blob, err := vectorenc.Encode(d.encoding, create.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode embedding")
	}

	stmt := `
		INSERT INTO cache_entry (uid, user_id, query, response, embedding, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.UserID,
		create.Query,
		create.Response,
		blob,
		create.CreatedTs,
	).Scan(&create.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert cache entry")
	}

	return create, nil
}

// VectorSearch scans the user's entries and ranks them by cosine similarity
// computed in Go. NumCandidates is a no-op here: the scan is exhaustive, so
// recall is exact.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.CacheEntryWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, uid, user_id, query, response, embedding, created_ts
		FROM cache_entry
		WHERE user_id = $1
			AND created_ts > $2
		ORDER BY created_ts DESC, id
	`
	rows, err := d.db.QueryContext(ctx, query, opts.UserID, opts.CreatedAfter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.CacheEntryWithScore{}
	for rows.Next() {
		var entry store.CacheEntry
		var blob []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.UID,
			&entry.UserID,
			&entry.Query,
			&entry.Response,
			&blob,
			&entry.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan cache entry")
		}

		embedding, err := vectorenc.Decode(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode embedding for entry %s", entry.UID)
		}
		entry.Embedding = embedding

		score := cosineSimilarity(opts.Vector, embedding)
		if score < opts.Threshold {
			continue
		}
		results = append(results, &store.CacheEntryWithScore{Entry: &entry, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rank best-first; the scan order already breaks score ties by recency.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
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

// cosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either has zero magnitude or the dimensions differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
