package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/pkg/types"
)

type stubCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []Prompt
}

func (s *stubCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p)
	return s.reply, s.err
}

func (s *stubCompleter) Provider() string { return "stub" }

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func TestAnalyze(t *testing.T) {
	stub := &stubCompleter{reply: "```json\n{\"tags\":[\"HTTP Client\",\"retry\",\"retry\",\"go!\"],\"description\":\"Retries requests\",\"framework\":null,\"complexity\":\"Moderate\"}\n```"}
	a := New(stub, nil, 0, nil)

	got, err := a.Analyze(context.Background(), "for {}", "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"http-client", "retry", "go"}, got.Tags)
	assert.Equal(t, "Retries requests", got.Description)
	assert.Nil(t, got.Framework)
	assert.Equal(t, types.ComplexityModerate, got.Complexity)

	require.Len(t, stub.prompts, 1)
	assert.Equal(t, float32(0.3), stub.prompts[0].Temperature)
	assert.Equal(t, 300, stub.prompts[0].MaxTokens)
	assert.Contains(t, stub.prompts[0].User, "Analyze this go code")
	assert.NoError(t, types.ValidateTags(got.Tags))
}

func TestAnalyzeCaches(t *testing.T) {
	stub := &stubCompleter{reply: `{"tags":["a"],"description":"d","framework":"react","complexity":"simple"}`}
	a := New(stub, nil, 8, nil)
	ctx := context.Background()

	first, err := a.Analyze(ctx, "code", "js")
	require.NoError(t, err)
	require.NotNil(t, first.Framework)
	assert.Equal(t, "react", *first.Framework)

	// Mutating the returned value must not leak into the cache.
	first.Tags[0] = "mutated"

	second, err := a.Analyze(ctx, "code", "js")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, second.Tags)
	assert.Equal(t, 1, stub.calls())

	_, err = a.Analyze(ctx, "code", "ts")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls(), "language is part of the key")
}

func TestAnalyzeValidation(t *testing.T) {
	stub := &stubCompleter{reply: "{}"}
	a := New(stub, nil, 0, nil)
	ctx := context.Background()

	_, err := a.Analyze(ctx, "", "go")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = a.Analyze(ctx, "x", " ")
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = a.Analyze(ctx, strings.Repeat("x", MaxAnalyzeCodeLength+1), "go")
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Equal(t, 0, stub.calls())
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	a := New(&stubCompleter{reply: "I think this is Go code."}, nil, 0, nil)
	_, err := a.Analyze(context.Background(), "x", "go")
	assert.ErrorIs(t, err, types.ErrProvider)
}

func TestAnalyzeProviderError(t *testing.T) {
	a := New(&stubCompleter{err: types.ErrProviderTimeout}, nil, 0, nil)
	_, err := a.Analyze(context.Background(), "x", "go")
	assert.ErrorIs(t, err, types.ErrProviderTimeout)
}

func TestNotConfigured(t *testing.T) {
	a := New(nil, nil, 0, nil)
	assert.False(t, a.Available())
	assert.Equal(t, ProviderNone, a.Provider())

	_, err := a.Analyze(context.Background(), "x", "go")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, err, types.ErrProvider)

	_, err = a.Explain(context.Background(), "x", "go")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = a.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, types.ErrProvider)
}

func TestExplain(t *testing.T) {
	stub := &stubCompleter{reply: "It loops forever."}
	a := New(stub, nil, 0, nil)

	got, err := a.Explain(context.Background(), "for {}", "go")
	require.NoError(t, err)
	assert.Equal(t, "It loops forever.", got)
	assert.Equal(t, float32(0.5), stub.prompts[0].Temperature)
	assert.Equal(t, 200, stub.prompts[0].MaxTokens)

	_, err = a.Explain(context.Background(), "for {}", "go")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls())
}

func TestExplainEmptyReply(t *testing.T) {
	a := New(&stubCompleter{reply: ""}, nil, 0, nil)
	got, err := a.Explain(context.Background(), "x", "go")
	require.NoError(t, err)
	assert.Equal(t, "Unable to explain code.", got)
}

func TestEmbed(t *testing.T) {
	a := New(nil, embedder.NewLocalProvider(), 0, nil)

	v, err := a.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, v, embedder.LocalDimension)

	_, err = a.Embed(context.Background(), "  ")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestNormalizeTags(t *testing.T) {
	many := make([]string, 30)
	for i := range many {
		many[i] = strings.Repeat("t", i+1)
	}

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"cleans", []string{" Web Dev ", "c++", "node.js", "--x--"}, []string{"web-dev", "c", "node-js", "x"}},
		{"dedupes", []string{"Go", "go", "GO"}, []string{"go"}},
		{"drops empty", []string{"", "!!!", "ok"}, []string{"ok"}},
		{"long", []string{strings.Repeat("a", 40)}, []string{strings.Repeat("a", 32)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}

	capped := NormalizeTags(many)
	assert.Len(t, capped, types.MaxTags)
	assert.NoError(t, types.ValidateTags(capped))
}

func TestDetectCompletionProvider(t *testing.T) {
	assert.Equal(t, ProviderOpenAI, DetectProvider(CompleterConfig{OpenAIKey: "o", AnthropicKey: "a"}))
	assert.Equal(t, ProviderAnthropic, DetectProvider(CompleterConfig{AnthropicKey: "a", GeminiKey: "g"}))
	assert.Equal(t, ProviderGemini, DetectProvider(CompleterConfig{GeminiKey: "g"}))
	assert.Equal(t, ProviderNone, DetectProvider(CompleterConfig{}))
	assert.Equal(t, ProviderAnthropic, DetectProvider(CompleterConfig{Provider: "Anthropic"}))
}

func TestNewCompleter(t *testing.T) {
	ctx := context.Background()

	c, err := NewCompleter(ctx, CompleterConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCompleter(ctx, CompleterConfig{AnthropicKey: "sk-ant"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, c.Provider())

	_, err = NewCompleter(ctx, CompleterConfig{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = NewCompleter(ctx, CompleterConfig{Provider: "llama"})
	assert.Error(t, err)
}

func TestProviderError(t *testing.T) {
	err := providerError(context.Background(), "x", errors.New("boom"))
	assert.ErrorIs(t, err, types.ErrProvider)
	assert.NotErrorIs(t, err, types.ErrProviderTimeout)

	err = providerError(context.Background(), "x", context.DeadlineExceeded)
	assert.ErrorIs(t, err, types.ErrProviderTimeout)
}
