package expiry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/semcache/internal/profile"
	"github.com/hrygo/semcache/store"
	"github.com/hrygo/semcache/store/db"
)

func newExpiryStore(t *testing.T) *store.Store {
	p := &profile.Profile{Mode: "dev", Driver: "sqlite", DSN: "file::memory:"}
	p.FromEnv()
	p.EmbeddingDimensions = 2
	p.TTLSeconds = 60
	require.NoError(t, p.Validate())

	driver, err := db.NewDBDriver(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	s := store.New(driver, p)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestRunOnceReapsOnlyExpired(t *testing.T) {
	ctx := context.Background()
	s := newExpiryStore(t)

	_, err := s.InsertCacheEntry(ctx, &store.CacheEntry{
		UserID:    "u1",
		Query:     "stale",
		Response:  "r",
		Embedding: []float32{1, 0},
		CreatedTs: time.Now().Add(-2 * time.Minute).Unix(),
	})
	require.NoError(t, err)
	_, err = s.InsertCacheEntry(ctx, &store.CacheEntry{
		UserID:    "u1",
		Query:     "fresh",
		Response:  "r",
		Embedding: []float32{1, 0},
	})
	require.NoError(t, err)

	runner := NewRunner(s, time.Minute)
	runner.RunOnce(ctx)

	match, err := s.BestMatch(ctx, "u1", []float32{1, 0}, 0.0)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "fresh", match.Entry.Query)

	deleted, err := s.DeleteExpiredEntries(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := newExpiryStore(t)
	runner := NewRunner(s, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}
