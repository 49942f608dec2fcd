package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/dshills/snipvault/pkg/types"
)

// Completion providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderNone      = "none"

	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// DefaultAnthropicModel is the Claude model used when none is configured
var DefaultAnthropicModel = string(anthropic.ModelClaude3_7SonnetLatest)

// ErrNotConfigured is returned by Analyze and Explain when no completion
// provider is available.
var ErrNotConfigured = fmt.Errorf("%w: completion provider not configured", types.ErrProvider)

// Prompt is a single-turn completion request
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer produces a text completion for a prompt
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Provider() string
}

// OpenAICompleter uses the chat completions API
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a chat completer. baseURL may be empty.
func NewOpenAICompleter(apiKey, model, baseURL string) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key not set")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAICompleter{client: openai.NewClientWithConfig(config), model: model}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return "", providerError(ctx, ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", types.ErrProvider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAICompleter) Provider() string { return ProviderOpenAI }

// AnthropicCompleter uses the Claude messages API
type AnthropicCompleter struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicCompleter creates a Claude completer
func NewAnthropicCompleter(apiKey, model string) (*AnthropicCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic API key not set")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicCompleter{client: &client, model: model}, nil
}

func (c *AnthropicCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	// Instructions travel with the user turn.
	text := p.User
	if p.System != "" {
		text = p.System + "\n\n" + p.User
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(p.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", providerError(ctx, ProviderAnthropic, err)
	}

	var b strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic returned no text", types.ErrProvider)
	}
	return strings.TrimSpace(b.String()), nil
}

func (c *AnthropicCompleter) Provider() string { return ProviderAnthropic }

// GeminiCompleter uses the Gemini generate content API
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a Gemini completer
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key not set")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	content := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: p.User}},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: p.System}}},
		Temperature:       genai.Ptr(p.Temperature),
		MaxOutputTokens:   int32(p.MaxTokens),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{content}, config)
	if err != nil {
		return "", providerError(ctx, ProviderGemini, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", types.ErrProvider)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

func (c *GeminiCompleter) Provider() string { return ProviderGemini }

func providerError(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", types.ErrProviderTimeout, provider, err)
	}
	return fmt.Errorf("%w: %s: %v", types.ErrProvider, provider, err)
}

// CompleterConfig selects and configures a completion provider
type CompleterConfig struct {
	Provider     string // openai, anthropic, gemini, none; empty auto-detects
	Model        string
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
}

// DetectProvider picks the provider NewCompleter would use
func DetectProvider(cfg CompleterConfig) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	switch {
	case cfg.OpenAIKey != "":
		return ProviderOpenAI
	case cfg.AnthropicKey != "":
		return ProviderAnthropic
	case cfg.GeminiKey != "":
		return ProviderGemini
	}
	return ProviderNone
}

// NewCompleter builds the configured completer. It returns nil, nil when no
// provider is configured.
func NewCompleter(ctx context.Context, cfg CompleterConfig) (Completer, error) {
	switch name := DetectProvider(cfg); name {
	case ProviderOpenAI:
		return NewOpenAICompleter(cfg.OpenAIKey, cfg.Model, "")
	case ProviderAnthropic:
		return NewAnthropicCompleter(cfg.AnthropicKey, cfg.Model)
	case ProviderGemini:
		return NewGeminiCompleter(ctx, cfg.GeminiKey, cfg.Model)
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", name)
	}
}
