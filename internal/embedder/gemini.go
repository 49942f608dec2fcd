package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements Embedder using the Gemini embedding API
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini embedder
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s API key not set", ErrNoProviderEnabled, ProviderGemini)
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

	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, g, req)
}

func (g *GeminiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	contents := make([]*genai.Content, len(req.Texts))
	for i, text := range req.Texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	result, err := g.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %v", ErrProviderFailed, err)
	}

	embeddings := make([]*Embedding, len(result.Embeddings))
	for i, e := range result.Embeddings {
		if e == nil {
			continue
		}
		embeddings[i] = &Embedding{
			Vector:    e.Values,
			Dimension: len(e.Values),
			Provider:  ProviderGemini,
			Model:     model,
		}
	}
	if err := checkResponse(embeddings, len(req.Texts)); err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderGemini,
		Model:      model,
	}, nil
}

func (g *GeminiProvider) Dimension() int {
	return GeminiDimension
}

func (g *GeminiProvider) Provider() string {
	return ProviderGemini
}

func (g *GeminiProvider) Model() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	return nil
}
