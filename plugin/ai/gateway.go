package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input. The
	// underlying model is never invoked in this case.
	ErrEmptyText = errors.New("empty text provided for embedding")

	// ErrDimensionMismatch is returned when the model produces a vector of
	// unexpected dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

const logTextLimit = 50

// Gateway wraps an EmbeddingService with input validation, a per-call
// deadline, and bounded concurrency. Concurrent calls beyond the configured
// limit queue on the semaphore rather than fanning out; each call is
// dispatched individually (no coalescing or batching of distinct requests).
type Gateway struct {
	service EmbeddingService
	timeout time.Duration
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewGateway creates a gateway around the given embedding service.
func NewGateway(service EmbeddingService, cfg *EmbeddingConfig) *Gateway {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Gateway{
		service: service,
		timeout: timeout,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		limiter: limiter,
	}
}

// Dimensions returns the configured vector dimension.
func (g *Gateway) Dimensions() int {
	return g.service.Dimensions()
}

// Embed generates an embedding for the given text. Empty or whitespace-only
// text fails with ErrEmptyText before the model is invoked.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vector, err := g.service.Embed(callCtx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) != g.service.Dimensions() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), g.service.Dimensions())
	}

	slog.Debug("generated embedding",
		"dimension", len(vector),
		"text", truncate(text, logTextLimit))
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts. Empty and
// whitespace-only texts are dropped before the model call, so the result
// aligns with the filtered inputs, not the original slice; callers that need
// positional correspondence must track which indices were dropped. If no
// text survives filtering, the model is not invoked and an empty slice is
// returned.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	valid := make([]string, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			valid = append(valid, text)
		}
	}
	if len(valid) == 0 {
		return [][]float32{}, nil
	}

	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vectors, err := g.service.EmbedBatch(callCtx, valid)
	if err != nil {
		return nil, err
	}
	for i, vector := range vectors {
		if len(vector) != g.service.Dimensions() {
			return nil, fmt.Errorf("%w: batch item %d got %d, want %d",
				ErrDimensionMismatch, i, len(vector), g.service.Dimensions())
		}
	}

	slog.Debug("generated batch embeddings", "count", len(vectors), "requested", len(texts))
	return vectors, nil
}

func (g *Gateway) acquire(ctx context.Context) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return g.sem.Acquire(ctx, 1)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
