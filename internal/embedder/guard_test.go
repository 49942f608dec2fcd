package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/snipvault/pkg/types"
)

// stubProvider answers from a function and counts calls
type stubProvider struct {
	calls atomic.Int32
	fn    func(ctx context.Context, n int32) ([]float32, error)
}

func (s *stubProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, s, req)
}

func (s *stubProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	n := s.calls.Add(1)
	v, err := s.fn(ctx, n)
	if err != nil {
		return nil, err
	}
	embs := make([]*Embedding, len(req.Texts))
	for i := range embs {
		embs[i] = &Embedding{Vector: v, Dimension: len(v), Provider: "stub"}
	}
	return &BatchEmbeddingResponse{Embeddings: embs, Provider: "stub"}, nil
}

func (s *stubProvider) Dimension() int   { return 2 }
func (s *stubProvider) Provider() string { return "stub" }
func (s *stubProvider) Model() string    { return "stub-model" }
func (s *stubProvider) Close() error     { return nil }

func fastRetry(attempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestGuardPassesThrough(t *testing.T) {
	stub := &stubProvider{fn: func(context.Context, int32) ([]float32, error) {
		return []float32{1, 2}, nil
	}}
	g := NewGuard(stub, GuardConfig{Timeout: time.Second, Retry: fastRetry(1)})

	emb, err := g.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, emb.Vector)
	assert.Equal(t, "stub", g.Provider())
	assert.Equal(t, "stub-model", g.Model())
	assert.Equal(t, 2, g.Dimension())
	assert.Same(t, stub, g.Unwrap())
}

func TestGuardTimeout(t *testing.T) {
	stub := &stubProvider{fn: func(ctx context.Context, _ int32) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := NewGuard(stub, GuardConfig{Timeout: 20 * time.Millisecond, Retry: fastRetry(1)})

	_, err := g.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "slow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrProviderTimeout)
	assert.ErrorIs(t, err, types.ErrProvider)
}

func TestGuardParentCancel(t *testing.T) {
	stub := &stubProvider{fn: func(ctx context.Context, _ int32) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := NewGuard(stub, GuardConfig{Timeout: time.Second, Retry: fastRetry(1)})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := g.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, types.ErrProvider)
}

func TestGuardWrapsUnknownErrors(t *testing.T) {
	stub := &stubProvider{fn: func(context.Context, int32) ([]float32, error) {
		return nil, errors.New("connection reset")
	}}
	g := NewGuard(stub, GuardConfig{Retry: fastRetry(1)})

	_, err := g.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.NotErrorIs(t, err, types.ErrProviderTimeout)
	assert.Equal(t, int32(1), stub.calls.Load(), "single attempt by default")
}

func TestGuardRetries(t *testing.T) {
	stub := &stubProvider{fn: func(_ context.Context, n int32) ([]float32, error) {
		if n < 3 {
			return nil, errors.New("temporary")
		}
		return []float32{1, 0}, nil
	}}
	g := NewGuard(stub, GuardConfig{Retry: fastRetry(3)})

	emb, err := g.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, emb.Vector)
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestGuardValidation(t *testing.T) {
	stub := &stubProvider{fn: func(context.Context, int32) ([]float32, error) {
		return []float32{1}, nil
	}}
	g := NewGuard(stub, GuardConfig{Retry: fastRetry(3)})

	_, err := g.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "  "})
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, int32(0), stub.calls.Load(), "provider not called")
}

func TestGuardRateLimit(t *testing.T) {
	stub := &stubProvider{fn: func(context.Context, int32) ([]float32, error) {
		return []float32{1}, nil
	}}
	// One token, refilled every 10s: the second call can't make its deadline.
	g := NewGuard(stub, GuardConfig{Timeout: 50 * time.Millisecond, RateLimit: 0.1, Burst: 1, Retry: fastRetry(1)})

	_, err := g.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "first"})
	require.NoError(t, err)

	_, err = g.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "second"})
	assert.ErrorIs(t, err, types.ErrProviderTimeout)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		cfg := fastRetry(5)
		cfg.Retryable = func(error) bool { return false }
		_, err := retryWithBackoff(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, errors.New("fatal")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns last error after all attempts", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(context.Background(), fastRetry(3), func() (int, error) {
			calls++
			return 0, errors.New("still failing")
		})
		assert.EqualError(t, err, "still failing")
		assert.Equal(t, 3, calls)
	})

	t.Run("zero attempts means one", func(t *testing.T) {
		calls := 0
		v, err := retryWithBackoff(context.Background(), RetryConfig{}, func() (int, error) {
			calls++
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, v)
		assert.Equal(t, 1, calls)
	})
}
