package store

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/semcache/internal/profile"
)

// Store provides database access to cache entries. It owns the deployment
// defaults (candidate pool, result limit, TTL) so callers only supply
// per-request values.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// InsertCacheEntry persists a new entry. The embedding dimension must match
// the deployment dimension; a mismatch is a hard write-time error. UID and
// creation timestamp are filled in when absent.
func (s *Store) InsertCacheEntry(ctx context.Context, create *CacheEntry) (*CacheEntry, error) {
	if len(create.Embedding) != s.profile.EmbeddingDimensions {
		return nil, errors.Errorf("embedding dimension %d does not match collection dimension %d",
			len(create.Embedding), s.profile.EmbeddingDimensions)
	}
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	return s.driver.InsertCacheEntry(ctx, create)
}

// BestMatch returns the highest-scoring same-user candidate at or above the
// threshold, or nil if none passes. Entries older than the TTL are never
// returned. A nil candidate with a nil error is a logical miss; a non-nil
// error is an operational failure.
func (s *Store) BestMatch(ctx context.Context, userID string, vector []float32, threshold float64) (*CacheEntryWithScore, error) {
	candidates, err := s.driver.VectorSearch(ctx, &VectorSearchOptions{
		UserID:        userID,
		Vector:        vector,
		Threshold:     threshold,
		NumCandidates: s.profile.NumCandidates,
		Limit:         s.profile.QueryLimit,
		CreatedAfter:  s.expiryCutoff().Unix(),
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	// Drivers return candidates ranked best-first.
	return candidates[0], nil
}

// DeleteExpiredEntries physically removes entries past their TTL.
func (s *Store) DeleteExpiredEntries(ctx context.Context) (int64, error) {
	return s.driver.DeleteExpiredEntries(ctx, s.expiryCutoff())
}

func (s *Store) expiryCutoff() time.Time {
	return time.Now().Add(-s.profile.TTL())
}
