package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider string // jina, openai, gemini, local; empty auto-detects
	Model    string
	BaseURL  string

	OpenAIKey string
	JinaKey   string
	GeminiKey string

	Timeout     time.Duration
	RateLimit   float64
	Burst       int
	MaxAttempts int
}

// DetectProvider returns the provider that New would use for cfg.
// Priority:
// 1. cfg.Provider when set
// 2. The first available key: Jina, OpenAI, Gemini
// 3. local
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	switch {
	case cfg.JinaKey != "":
		return ProviderJina
	case cfg.OpenAIKey != "":
		return ProviderOpenAI
	case cfg.GeminiKey != "":
		return ProviderGemini
	}
	return ProviderLocal
}

// New creates the configured provider wrapped in a Guard
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var (
		provider Embedder
		err      error
	)

	switch name := DetectProvider(cfg); name {
	case ProviderJina:
		provider, err = NewJinaProvider(cfg.JinaKey, cfg.Model, cfg.BaseURL)
	case ProviderOpenAI:
		provider, err = NewOpenAIProvider(cfg.OpenAIKey, cfg.Model, cfg.BaseURL)
	case ProviderGemini:
		provider, err = NewGeminiProvider(ctx, cfg.GeminiKey, cfg.Model)
	case ProviderLocal:
		provider = NewLocalProvider()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, name)
	}
	if err != nil {
		return nil, err
	}

	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	return NewGuard(provider, GuardConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Retry:     retry,
	}), nil
}
