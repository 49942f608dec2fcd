package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/snipvault/pkg/types"
)

// GuardConfig bounds every call made through a Guard
type GuardConfig struct {
	Timeout   time.Duration // Per-call deadline, 0 disables
	RateLimit float64       // Requests per second, 0 disables
	Burst     int
	Retry     RetryConfig
}

// Guard wraps a provider with a per-call timeout, a client-side rate limit
// and an optional retry policy. Provider failures come back as
// types.ErrProvider and deadline overruns as types.ErrProviderTimeout.
type Guard struct {
	next    Embedder
	limiter *rate.Limiter
	timeout time.Duration
	retry   RetryConfig
}

var _ Embedder = (*Guard)(nil)

// NewGuard wraps next
func NewGuard(next Embedder, cfg GuardConfig) *Guard {
	g := &Guard{
		next:    next,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if g.retry.Retryable == nil {
		g.retry.Retryable = isTransient
	}
	return g
}

func (g *Guard) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return guarded(ctx, g, func(ctx context.Context) (*Embedding, error) {
		return g.next.GenerateEmbedding(ctx, req)
	})
}

func (g *Guard) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	return guarded(ctx, g, func(ctx context.Context) (*BatchEmbeddingResponse, error) {
		return g.next.GenerateBatch(ctx, req)
	})
}

func guarded[T any](ctx context.Context, g *Guard, call func(context.Context) (T, error)) (T, error) {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := retryWithBackoff(callCtx, g.retry, func() (T, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(callCtx); err != nil {
				var zero T
				// Wait fails early when the deadline can't be met.
				return zero, fmt.Errorf("rate limit: %w", context.DeadlineExceeded)
			}
		}
		return call(callCtx)
	})
	if err != nil {
		var zero T
		return zero, g.classify(ctx, callCtx, err)
	}
	return result, nil
}

// classify maps a raw failure onto the provider error taxonomy. A cancelled
// parent context is passed through untouched.
func (g *Guard) classify(parent, callCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, types.ErrValidation) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", types.ErrProviderTimeout, g.next.Provider(), g.timeout)
	}
	if errors.Is(err, types.ErrProvider) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderFailed, err)
}

func isTransient(err error) bool {
	return !errors.Is(err, types.ErrValidation)
}

func (g *Guard) Dimension() int {
	return g.next.Dimension()
}

func (g *Guard) Provider() string {
	return g.next.Provider()
}

func (g *Guard) Model() string {
	return g.next.Model()
}

// Unwrap returns the guarded provider
func (g *Guard) Unwrap() Embedder {
	return g.next
}

func (g *Guard) Close() error {
	return g.next.Close()
}
