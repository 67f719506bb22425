// Package cache implements the semantic cache engine: embed the query,
// search the caller's stored entries, and answer with a hit, the miss
// sentinel, or a structured error. The engine is stateless across requests.
package cache

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/semcache/internal/profile"
	"github.com/hrygo/semcache/plugin/metrics"
	"github.com/hrygo/semcache/server/internal/errors"
	"github.com/hrygo/semcache/server/internal/observability"
	"github.com/hrygo/semcache/store"
)

// MissResponse is the sentinel returned when no stored entry clears the
// similarity threshold.
const MissResponse = "cache_miss"

// Embedder turns query text into a vector. plugin/ai.Gateway satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// EntryStore is the slice of the store the engine needs.
type EntryStore interface {
	InsertCacheEntry(ctx context.Context, create *store.CacheEntry) (*store.CacheEntry, error)
	BestMatch(ctx context.Context, userID string, vector []float32, threshold float64) (*store.CacheEntryWithScore, error)
}

// QueryRequest is a single lookup. Threshold overrides the deployment
// default when set.
type QueryRequest struct {
	UserID    string
	Query     string
	Threshold *float64
}

// SaveRequest is a single write-through of a (query, response) pair.
// Embedding and Timestamp are optional: an absent embedding is generated
// from the query, an absent timestamp defaults to now.
type SaveRequest struct {
	UserID    string
	Query     string
	Response  string
	Embedding []float32
	Timestamp int64
}

// LookupResult is the terminal outcome of a lookup that did not error.
type LookupResult struct {
	Response        string
	SimilarityScore float64
	LatencyMs       float64
	Hit             bool
}

// SaveResult is the terminal outcome of a successful save.
type SaveResult struct {
	Message   string
	LatencyMs float64
}

// Engine orchestrates one embedding gateway, one store, and one metrics
// collector. It never retries; every failure surfaces as a CacheError.
type Engine struct {
	profile  *profile.Profile
	embedder Embedder
	store    EntryStore
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewEngine creates a cache engine.
func NewEngine(profile *profile.Profile, embedder Embedder, entryStore EntryStore, collector *metrics.Collector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		profile:  profile,
		embedder: embedder,
		store:    entryStore,
		metrics:  collector,
		logger:   logger,
	}
}

// Lookup resolves a query to a cached response. Outcomes:
//   - hit: the best same-user candidate at or above the threshold.
//   - miss: MissResponse with a zero similarity score.
//   - error: a CacheError; the caller decides the transport mapping.
func (e *Engine) Lookup(ctx context.Context, req *QueryRequest) (*LookupResult, error) {
	reqCtx := observability.NewRequestContext(e.logger, "read_cache", req.UserID)

	if err := validateIdentity(req.UserID, req.Query); err != nil {
		return nil, err
	}
	threshold, err := e.resolveThreshold(req.Threshold)
	if err != nil {
		return nil, err
	}

	vector, embedErr := e.embedder.Embed(ctx, req.Query)
	if embedErr != nil {
		cerr := errors.EmbeddingFailed("Embedding generation failed", embedErr)
		e.finishLookupError(reqCtx, cerr)
		return nil, cerr
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.profile.SearchTimeout)
	defer cancel()

	searchStart := time.Now()
	match, searchErr := e.store.BestMatch(searchCtx, req.UserID, vector, threshold)
	searchMs := float64(time.Since(searchStart).Microseconds()) / 1000.0

	e.metrics.RecordHistogram("vector_search_latency_ms", searchMs, nil)
	e.metrics.SetGauge("candidates", float64(e.profile.NumCandidates), map[string]string{
		"user_id": req.UserID,
	})

	if searchErr != nil {
		e.metrics.IncrementCounter("vector_search_total", 1, map[string]string{"result": "error"})
		cerr := classifySearchError(searchErr)
		e.finishLookupError(reqCtx, cerr)
		return nil, cerr
	}

	latencyMs := reqCtx.DurationMs()
	if match == nil {
		e.metrics.IncrementCounter("vector_search_total", 1, map[string]string{"result": "miss"})
		e.metrics.IncrementCounter("cache_requests", 1, map[string]string{
			"user_id": req.UserID,
			"hit":     "false",
		})
		e.metrics.RecordHistogram("similarity_score", 0, nil)
		e.metrics.RecordHistogram("query_latency_ms", latencyMs, nil)

		reqCtx.Info("cache miss",
			slog.Float64(observability.LogFieldDuration, latencyMs))
		return &LookupResult{
			Response:  MissResponse,
			LatencyMs: latencyMs,
			Hit:       false,
		}, nil
	}

	e.metrics.IncrementCounter("vector_search_total", 1, map[string]string{"result": "hit"})
	e.metrics.IncrementCounter("cache_requests", 1, map[string]string{
		"user_id": req.UserID,
		"hit":     "true",
	})
	e.metrics.RecordHistogram("similarity_score", match.Score, nil)
	e.metrics.RecordHistogram("query_latency_ms", latencyMs, nil)

	reqCtx.Info("cache hit",
		slog.Float64(observability.LogFieldScore, match.Score),
		slog.Float64(observability.LogFieldDuration, latencyMs))
	return &LookupResult{
		Response:        match.Entry.Response,
		SimilarityScore: match.Score,
		LatencyMs:       latencyMs,
		Hit:             true,
	}, nil
}

// Save persists the (query, response) pair for the user. The model is only
// invoked when the caller did not supply an embedding, so saves with a
// precomputed vector succeed even while the model is down. Entries are
// immutable; duplicates of the same query coexist and ranking decides which
// one answers future lookups.
func (e *Engine) Save(ctx context.Context, req *SaveRequest) (*SaveResult, error) {
	reqCtx := observability.NewRequestContext(e.logger, "save_to_cache", req.UserID)

	if err := validateIdentity(req.UserID, req.Query); err != nil {
		return nil, err
	}
	if req.Response == "" {
		return nil, errors.InvalidInput("response must not be empty")
	}

	vector := req.Embedding
	if len(vector) == 0 {
		var embedErr error
		vector, embedErr = e.embedder.Embed(ctx, req.Query)
		if embedErr != nil {
			cerr := errors.EmbeddingFailed("Embedding generation failed", embedErr)
			e.finishSaveError(reqCtx, cerr)
			return nil, cerr
		}
	} else if len(vector) != e.embedder.Dimensions() {
		return nil, errors.InvalidInput(fmt.Sprintf(
			"embedding dimension %d does not match deployment dimension %d",
			len(vector), e.embedder.Dimensions()))
	}

	if _, insertErr := e.store.InsertCacheEntry(ctx, &store.CacheEntry{
		UserID:    req.UserID,
		Query:     req.Query,
		Response:  req.Response,
		Embedding: vector,
		CreatedTs: req.Timestamp,
	}); insertErr != nil {
		cerr := errors.InsertFailed("Database insert failed", insertErr)
		e.finishSaveError(reqCtx, cerr)
		return nil, cerr
	}

	latencyMs := reqCtx.DurationMs()
	e.metrics.IncrementCounter("cache_writes", 1, map[string]string{"status": "success"})
	e.metrics.RecordHistogram("cache_save_latency_ms", latencyMs, nil)

	reqCtx.Info("cache entry saved",
		slog.Float64(observability.LogFieldDuration, latencyMs))
	return &SaveResult{
		Message:   "Saved to cache.",
		LatencyMs: latencyMs,
	}, nil
}

func (e *Engine) resolveThreshold(override *float64) (float64, error) {
	if override == nil {
		return e.profile.SimilarityThreshold, nil
	}
	if *override < 0 || *override > 1 {
		return 0, errors.InvalidInput("threshold out of range [0, 1]")
	}
	return *override, nil
}

// finishLookupError records the error-path metrics. The error path still
// emits a cache_requests sample so request totals stay accountable.
func (e *Engine) finishLookupError(reqCtx *observability.RequestContext, cerr *errors.CacheError) {
	latencyMs := reqCtx.DurationMs()
	e.metrics.IncrementCounter("cache_requests", 1, map[string]string{
		"user_id": reqCtx.UserID,
		"hit":     "false",
	})
	e.metrics.IncrementCounter("errors", 1, map[string]string{
		"operation": reqCtx.Operation,
		"code":      string(cerr.Code),
	})
	e.metrics.RecordHistogram("query_latency_ms", latencyMs, nil)

	reqCtx.Error("cache lookup failed", cerr,
		slog.String(observability.LogFieldErrorCode, string(cerr.Code)),
		slog.Float64(observability.LogFieldDuration, latencyMs))
}

func (e *Engine) finishSaveError(reqCtx *observability.RequestContext, cerr *errors.CacheError) {
	latencyMs := reqCtx.DurationMs()
	e.metrics.IncrementCounter("cache_writes", 1, map[string]string{"status": "error"})
	e.metrics.IncrementCounter("errors", 1, map[string]string{
		"operation": reqCtx.Operation,
		"code":      string(cerr.Code),
	})
	e.metrics.RecordHistogram("cache_save_latency_ms", latencyMs, nil)

	reqCtx.Error("cache save failed", cerr,
		slog.String(observability.LogFieldErrorCode, string(cerr.Code)),
		slog.Float64(observability.LogFieldDuration, latencyMs))
}

func validateIdentity(userID, query string) *errors.CacheError {
	if strings.TrimSpace(userID) == "" {
		return errors.InvalidInput("user_id must not be empty")
	}
	if strings.TrimSpace(query) == "" {
		return errors.InvalidInput("query must not be empty")
	}
	return nil
}

func classifySearchError(err error) *errors.CacheError {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Timeout("vector search timed out", err)
	case stderrors.Is(err, context.Canceled):
		return errors.ContextCanceled(err)
	default:
		return errors.SearchFailed("Vector search failed", err)
	}
}
