package embedder

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultGeminiModel = "text-embedding-004"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	GeminiDimension = 768
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// JinaBaseURL is the OpenAI-compatible Jina AI endpoint
	JinaBaseURL = "https://api.jina.ai/v1"
)

// OpenAIProvider implements Embedder against any OpenAI-compatible
// embeddings endpoint. Jina AI is served by the same type with its own base
// URL and model.
type OpenAIProvider struct {
	client     *openai.Client
	httpClient *http.Client
	name       string
	model      string
	dimension  int
}

// NewOpenAIProvider creates an embedder for api.openai.com. baseURL may be
// empty.
func NewOpenAIProvider(apiKey, model, baseURL string) (*OpenAIProvider, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return newOpenAICompatible(ProviderOpenAI, apiKey, model, baseURL, OpenAIDimension)
}

// NewJinaProvider creates an embedder for the Jina AI embeddings API
func NewJinaProvider(apiKey, model, baseURL string) (*OpenAIProvider, error) {
	if model == "" {
		model = DefaultJinaModel
	}
	if baseURL == "" {
		baseURL = JinaBaseURL
	}
	return newOpenAICompatible(ProviderJina, apiKey, model, baseURL, JinaDimension)
}

func newOpenAICompatible(name, apiKey, model, baseURL string, dimension int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s API key not set", ErrNoProviderEnabled, name)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = httpClient
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(config),
		httpClient: httpClient,
		name:       name,
		model:      model,
		dimension:  dimension,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, o, req)
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: req.Texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderFailed, o.name, err)
	}

	// The API documents data in input order but carries an explicit index.
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	embeddings := make([]*Embedding, len(data))
	for i, d := range data {
		embeddings[i] = &Embedding{
			Vector:    d.Embedding,
			Dimension: len(d.Embedding),
			Provider:  o.name,
			Model:     model,
		}
	}
	if err := checkResponse(embeddings, len(req.Texts)); err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   o.name,
		Model:      model,
	}, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimension
}

func (o *OpenAIProvider) Provider() string {
	return o.name
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
