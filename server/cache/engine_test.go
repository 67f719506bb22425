package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/semcache/internal/profile"
	"github.com/hrygo/semcache/plugin/metrics"
	cacheerrors "github.com/hrygo/semcache/server/internal/errors"
	"github.com/hrygo/semcache/store"
)

type stubEmbedder struct {
	vector []float32
	dims   int
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) Dimensions() int {
	if s.dims > 0 {
		return s.dims
	}
	return len(s.vector)
}

type stubStore struct {
	match     *store.CacheEntryWithScore
	searchErr error
	insertErr error
	inserted  []*store.CacheEntry
}

func (s *stubStore) InsertCacheEntry(_ context.Context, create *store.CacheEntry) (*store.CacheEntry, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.inserted = append(s.inserted, create)
	return create, nil
}

func (s *stubStore) BestMatch(_ context.Context, _ string, _ []float32, _ float64) (*store.CacheEntryWithScore, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.match, nil
}

func newTestEngine(embedder Embedder, entryStore EntryStore) (*Engine, *metrics.Collector) {
	p := &profile.Profile{Driver: "sqlite", Mode: "dev"}
	p.FromEnv()
	collector := metrics.NewCollector(0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(p, embedder, entryStore, collector, logger), collector
}

func floatPtr(f float64) *float64 { return &f }

func TestLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("Hit", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		st := &stubStore{match: &store.CacheEntryWithScore{
			Entry: &store.CacheEntry{UserID: "u1", Query: "q", Response: "cached answer"},
			Score: 0.93,
		}}
		engine, collector := newTestEngine(embedder, st)

		result, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "q"})
		require.NoError(t, err)
		assert.True(t, result.Hit)
		assert.Equal(t, "cached answer", result.Response)
		assert.Equal(t, 0.93, result.SimilarityScore)
		assert.GreaterOrEqual(t, result.LatencyMs, 0.0)

		snapshot := collector.GetSnapshot()
		assert.Equal(t, int64(1), snapshot.Counters["cache_requests[hit=true,user_id=u1]"])
		assert.Equal(t, int64(1), snapshot.Counters["vector_search_total[result=hit]"])
		assert.Equal(t, 1, snapshot.Histograms["similarity_score"].Count)
		assert.Equal(t, 0.93, snapshot.Histograms["similarity_score"].Max)
		assert.Equal(t, 1, snapshot.Histograms["query_latency_ms"].Count)
		assert.Equal(t, 1000.0, snapshot.Gauges["candidates[user_id=u1]"])
	})

	t.Run("MissReturnsSentinel", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		engine, collector := newTestEngine(embedder, &stubStore{})

		result, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "q"})
		require.NoError(t, err)
		assert.False(t, result.Hit)
		assert.Equal(t, MissResponse, result.Response)
		assert.Zero(t, result.SimilarityScore)

		snapshot := collector.GetSnapshot()
		assert.Equal(t, int64(1), snapshot.Counters["cache_requests[hit=false,user_id=u1]"])
		assert.Equal(t, int64(1), snapshot.Counters["vector_search_total[result=miss]"])
		// Misses record a zero similarity sample.
		assert.Equal(t, 0.0, snapshot.Histograms["similarity_score"].Max)
	})

	t.Run("EmbeddingFailure", func(t *testing.T) {
		embedder := &stubEmbedder{err: errors.New("model unavailable")}
		engine, collector := newTestEngine(embedder, &stubStore{})

		_, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "q"})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeEmbeddingFailed))
		assert.Contains(t, err.Error(), "Embedding generation failed")

		snapshot := collector.GetSnapshot()
		assert.Equal(t, int64(1), snapshot.Counters["cache_requests[hit=false,user_id=u1]"])
		assert.Equal(t, int64(1), snapshot.Counters["errors[code=EMBEDDING_FAILED,operation=read_cache]"])
		// The search never ran.
		assert.NotContains(t, snapshot.Counters, "vector_search_total[result=error]")
	})

	t.Run("SearchFailure", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		engine, collector := newTestEngine(embedder, &stubStore{searchErr: errors.New("connection refused")})

		_, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "q"})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeSearchFailed))

		snapshot := collector.GetSnapshot()
		assert.Equal(t, int64(1), snapshot.Counters["vector_search_total[result=error]"])
		assert.Equal(t, int64(1), snapshot.Counters["errors[code=SEARCH_FAILED,operation=read_cache]"])
	})

	t.Run("SearchTimeoutClassified", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		engine, _ := newTestEngine(embedder, &stubStore{
			searchErr: errors.Wrap(context.DeadlineExceeded, "query aborted"),
		})

		_, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "q"})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeTimeout))
	})

	t.Run("RejectsEmptyQuery", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		engine, _ := newTestEngine(embedder, &stubStore{})

		_, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "   "})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeInvalidInput))
		assert.Zero(t, embedder.calls)
	})

	t.Run("RejectsEmptyUserID", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		engine, _ := newTestEngine(embedder, &stubStore{})

		_, err := engine.Lookup(ctx, &QueryRequest{UserID: "", Query: "q"})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeInvalidInput))
	})

	t.Run("RejectsThresholdOutOfRange", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		engine, _ := newTestEngine(embedder, &stubStore{})

		_, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "q", Threshold: floatPtr(1.5)})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeInvalidInput))
		assert.Zero(t, embedder.calls)
	})

	t.Run("Deterministic", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		st := &stubStore{match: &store.CacheEntryWithScore{
			Entry: &store.CacheEntry{Response: "same answer"},
			Score: 0.9,
		}}
		engine, _ := newTestEngine(embedder, st)

		first, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "q"})
		require.NoError(t, err)
		second, err := engine.Lookup(ctx, &QueryRequest{UserID: "u1", Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, first.Response, second.Response)
		assert.Equal(t, first.SimilarityScore, second.SimilarityScore)
	})
}

func TestSave(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		st := &stubStore{}
		engine, collector := newTestEngine(embedder, st)

		result, err := engine.Save(ctx, &SaveRequest{UserID: "u1", Query: "q", Response: "r"})
		require.NoError(t, err)
		assert.Equal(t, "Saved to cache.", result.Message)
		require.Len(t, st.inserted, 1)
		assert.Equal(t, "u1", st.inserted[0].UserID)
		assert.Equal(t, []float32{1, 0}, st.inserted[0].Embedding)

		snapshot := collector.GetSnapshot()
		assert.Equal(t, int64(1), snapshot.Counters["cache_writes[status=success]"])
		assert.Equal(t, 1, snapshot.Histograms["cache_save_latency_ms"].Count)
	})

	t.Run("EmbeddingFailure", func(t *testing.T) {
		embedder := &stubEmbedder{err: errors.New("model unavailable")}
		engine, collector := newTestEngine(embedder, &stubStore{})

		_, err := engine.Save(ctx, &SaveRequest{UserID: "u1", Query: "q", Response: "r"})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeEmbeddingFailed))

		snapshot := collector.GetSnapshot()
		assert.Equal(t, int64(1), snapshot.Counters["cache_writes[status=error]"])
	})

	t.Run("InsertFailure", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		engine, collector := newTestEngine(embedder, &stubStore{insertErr: errors.New("disk full")})

		_, err := engine.Save(ctx, &SaveRequest{UserID: "u1", Query: "q", Response: "r"})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeInsertFailed))
		assert.Contains(t, err.Error(), "Database insert failed")

		snapshot := collector.GetSnapshot()
		assert.Equal(t, int64(1), snapshot.Counters["cache_writes[status=error]"])
		assert.Equal(t, int64(1), snapshot.Counters["errors[code=INSERT_FAILED,operation=save_to_cache]"])
	})

	t.Run("CallerEmbeddingSkipsModel", func(t *testing.T) {
		// Even with the model down, a precomputed vector saves fine.
		embedder := &stubEmbedder{dims: 2, err: errors.New("model unavailable")}
		st := &stubStore{}
		engine, collector := newTestEngine(embedder, st)

		result, err := engine.Save(ctx, &SaveRequest{
			UserID:    "u1",
			Query:     "q",
			Response:  "r",
			Embedding: []float32{0.5, 0.5},
		})
		require.NoError(t, err)
		assert.Equal(t, "Saved to cache.", result.Message)
		assert.Zero(t, embedder.calls)
		require.Len(t, st.inserted, 1)
		assert.Equal(t, []float32{0.5, 0.5}, st.inserted[0].Embedding)

		snapshot := collector.GetSnapshot()
		assert.Equal(t, int64(1), snapshot.Counters["cache_writes[status=success]"])
	})

	t.Run("CallerEmbeddingDimensionMismatch", func(t *testing.T) {
		embedder := &stubEmbedder{dims: 2}
		engine, _ := newTestEngine(embedder, &stubStore{})

		_, err := engine.Save(ctx, &SaveRequest{
			UserID:    "u1",
			Query:     "q",
			Response:  "r",
			Embedding: []float32{1, 0, 0},
		})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeInvalidInput))
		assert.Zero(t, embedder.calls)
	})

	t.Run("CallerTimestampPassedThrough", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		st := &stubStore{}
		engine, _ := newTestEngine(embedder, st)

		_, err := engine.Save(ctx, &SaveRequest{
			UserID:    "u1",
			Query:     "q",
			Response:  "r",
			Timestamp: 1234567890,
		})
		require.NoError(t, err)
		require.Len(t, st.inserted, 1)
		assert.Equal(t, int64(1234567890), st.inserted[0].CreatedTs)
	})

	t.Run("RejectsEmptyResponse", func(t *testing.T) {
		embedder := &stubEmbedder{vector: []float32{1, 0}}
		engine, _ := newTestEngine(embedder, &stubStore{})

		_, err := engine.Save(ctx, &SaveRequest{UserID: "u1", Query: "q", Response: ""})
		require.Error(t, err)
		assert.True(t, cacheerrors.IsCode(err, cacheerrors.ErrCodeInvalidInput))
		assert.Zero(t, embedder.calls)
	})
}
