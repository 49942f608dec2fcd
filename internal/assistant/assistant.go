// Package assistant provides AI help for writing snippets: suggested tags,
// descriptions and plain-language explanations of code.
package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/pkg/types"
)

// MaxAnalyzeCodeLength bounds the code sent for analysis
const MaxAnalyzeCodeLength = 10000

// DefaultCacheSize is the number of analyses and explanations kept
const DefaultCacheSize = 256

const analyzeSystemPrompt = `You are a code analysis expert. Analyze code and return ONLY a JSON object with this exact structure:
{
  "tags": ["tag1", "tag2", "tag3"],
  "description": "brief description of what the code does",
  "framework": "framework name if applicable, or null",
  "complexity": "simple|moderate|complex"
}
Return ONLY valid JSON, no markdown, no explanation.`

const explainSystemPrompt = `You are a helpful coding instructor. Explain code clearly and concisely in 2-3 sentences.`

// CodeAnalysis is the assistant's suggestion for a snippet's metadata
type CodeAnalysis struct {
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Framework   *string  `json:"framework"`
	Complexity  string   `json:"complexity"`
}

// Assistant answers analyze, explain and embed requests
type Assistant struct {
	completer Completer
	embedder  embedder.Embedder
	logger    *slog.Logger

	analyses     *lru.Cache[string, CodeAnalysis]
	explanations *lru.Cache[string, string]
}

// New creates an Assistant. completer and emb may be nil; the matching
// operations then fail with a provider error.
func New(completer Completer, emb embedder.Embedder, cacheSize int, logger *slog.Logger) *Assistant {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	analyses, err := lru.New[string, CodeAnalysis](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	explanations, err := lru.New[string, string](cacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Assistant{
		completer:    completer,
		embedder:     emb,
		logger:       logger,
		analyses:     analyses,
		explanations: explanations,
	}
}

// Available reports whether a completion provider is configured
func (a *Assistant) Available() bool {
	return a.completer != nil
}

// Provider names the completion provider, or "none"
func (a *Assistant) Provider() string {
	if a.completer == nil {
		return ProviderNone
	}
	return a.completer.Provider()
}

// Analyze suggests tags, a description, a framework and a complexity level
func (a *Assistant) Analyze(ctx context.Context, code, language string) (*CodeAnalysis, error) {
	if err := validateCode(code, language); err != nil {
		return nil, err
	}
	if len(code) > MaxAnalyzeCodeLength {
		return nil, types.NewValidationError("code", "code is too long (max %d characters)", MaxAnalyzeCodeLength)
	}
	if a.completer == nil {
		return nil, ErrNotConfigured
	}

	key := cacheKey("analyze", language, code)
	if cached, ok := a.analyses.Get(key); ok {
		return cached.clone(), nil
	}

	raw, err := a.completer.Complete(ctx, Prompt{
		System:      analyzeSystemPrompt,
		User:        fmt.Sprintf("Analyze this %s code and provide tags, description, framework, and complexity:\n\n%s", language, code),
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, err
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		a.logger.WarnContext(ctx, "unparseable analysis", "provider", a.completer.Provider(), "error", err)
		return nil, err
	}

	a.analyses.Add(key, *analysis)
	return analysis.clone(), nil
}

// Explain returns a short plain-language explanation of code
func (a *Assistant) Explain(ctx context.Context, code, language string) (string, error) {
	if err := validateCode(code, language); err != nil {
		return "", err
	}
	if a.completer == nil {
		return "", ErrNotConfigured
	}

	key := cacheKey("explain", language, code)
	if cached, ok := a.explanations.Get(key); ok {
		return cached, nil
	}

	text, err := a.completer.Complete(ctx, Prompt{
		System:      explainSystemPrompt,
		User:        fmt.Sprintf("Explain what this %s code does:\n\n%s", language, code),
		Temperature: 0.5,
		MaxTokens:   200,
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		text = "Unable to explain code."
	}

	a.explanations.Add(key, text)
	return text, nil
}

// Embed returns the embedding of arbitrary text. Results are not cached.
func (a *Assistant) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.NewValidationError("text", "text is required")
	}
	if a.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", types.ErrProvider)
	}
	emb, err := a.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, err
	}
	return emb.Vector, nil
}

func validateCode(code, language string) error {
	var errs types.ValidationErrors
	if strings.TrimSpace(code) == "" {
		errs.Add("code", "code is required")
	}
	if strings.TrimSpace(language) == "" {
		errs.Add("language", "language is required")
	}
	return errs.Err()
}

func cacheKey(kind, language, code string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}

var (
	fencePattern  = regexp.MustCompile("```(?:json)?\\s*")
	tagCleaner    = regexp.MustCompile(`[^\w-]+`)
	dashCollapser = regexp.MustCompile(`-{2,}`)
)

// parseAnalysis decodes the model output, tolerating markdown fences, and
// coerces it to the snippet field rules.
func parseAnalysis(raw string) (*CodeAnalysis, error) {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
	if cleaned == "" {
		cleaned = "{}"
	}

	var out struct {
		Tags        []string `json:"tags"`
		Description string   `json:"description"`
		Framework   *string  `json:"framework"`
		Complexity  string   `json:"complexity"`
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: malformed analysis response: %v", types.ErrProvider, err)
	}

	analysis := &CodeAnalysis{
		Tags:        NormalizeTags(out.Tags),
		Description: truncate(strings.TrimSpace(out.Description), types.MaxDescriptionLength),
		Complexity:  strings.ToLower(strings.TrimSpace(out.Complexity)),
	}
	if !types.IsValidComplexity(analysis.Complexity) {
		analysis.Complexity = types.ComplexityModerate
	}
	if out.Framework != nil {
		fw := strings.TrimSpace(*out.Framework)
		if fw != "" && !strings.EqualFold(fw, "null") && !strings.EqualFold(fw, "none") {
			analysis.Framework = &fw
		}
	}
	return analysis, nil
}

// NormalizeTags lowercases suggested tags, replaces characters outside
// [A-Za-z0-9_-] with hyphens, drops empties and duplicates, and applies the
// tag count and length limits.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		t = tagCleaner.ReplaceAllString(t, "-")
		t = dashCollapser.ReplaceAllString(t, "-")
		t = strings.Trim(t, "-")
		t = truncate(t, types.MaxTagLength)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == types.MaxTags {
			break
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	// don't split a multi-byte rune
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func (c CodeAnalysis) clone() *CodeAnalysis {
	out := c
	out.Tags = make([]string, len(c.Tags))
	copy(out.Tags, c.Tags)
	if c.Framework != nil {
		fw := *c.Framework
		out.Framework = &fw
	}
	return &out
}
