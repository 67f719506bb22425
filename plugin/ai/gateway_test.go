package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedding is a deterministic in-process embedding service.
type stubEmbedding struct {
	dimensions int
	calls      atomic.Int64
	err        error
	badDim     bool
}

func (s *stubEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *stubEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	dim := s.dimensions
	if s.badDim {
		dim++
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(len(text)%7) / 7
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (s *stubEmbedding) Dimensions() int { return s.dimensions }

func newTestGateway(stub *stubEmbedding) *Gateway {
	return NewGateway(stub, &EmbeddingConfig{
		Dimensions:  stub.dimensions,
		Timeout:     time.Second,
		Concurrency: 2,
	})
}

func TestGatewayRejectsEmptyInput(t *testing.T) {
	stub := &stubEmbedding{dimensions: 4}
	gw := newTestGateway(stub)

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := gw.Embed(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyText)
	}
	// The underlying model must never be invoked.
	assert.Equal(t, int64(0), stub.calls.Load())
}

func TestGatewayEmbed(t *testing.T) {
	stub := &stubEmbedding{dimensions: 4}
	gw := newTestGateway(stub)

	vector, err := gw.Embed(context.Background(), "what is the baggage allowance")
	require.NoError(t, err)
	assert.Len(t, vector, 4)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestGatewayDimensionMismatch(t *testing.T) {
	stub := &stubEmbedding{dimensions: 4, badDim: true}
	gw := newTestGateway(stub)

	_, err := gw.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGatewayPropagatesModelFailure(t *testing.T) {
	modelErr := errors.New("model unavailable")
	stub := &stubEmbedding{dimensions: 4, err: modelErr}
	gw := newTestGateway(stub)

	_, err := gw.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, modelErr)
}

func TestGatewayBatchFiltersEmptyTexts(t *testing.T) {
	stub := &stubEmbedding{dimensions: 4}
	gw := newTestGateway(stub)

	t.Run("MixedInput", func(t *testing.T) {
		vectors, err := gw.EmbedBatch(context.Background(), []string{"a", "", "bb", "   "})
		require.NoError(t, err)
		// Results align with the filtered inputs.
		assert.Len(t, vectors, 2)
	})

	t.Run("AllEmpty", func(t *testing.T) {
		before := stub.calls.Load()
		vectors, err := gw.EmbedBatch(context.Background(), []string{"", "  "})
		require.NoError(t, err)
		assert.Empty(t, vectors)
		assert.Equal(t, before, stub.calls.Load())
	})
}

func TestGatewayCanceledContext(t *testing.T) {
	stub := &stubEmbedding{dimensions: 4}
	gw := newTestGateway(stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Embed(ctx, "hello")
	assert.Error(t, err)
}
