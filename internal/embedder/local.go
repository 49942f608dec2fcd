package embedder

import (
	"context"
	"crypto/sha256"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalProvider produces deterministic embeddings without a network call.
// Tokens and adjacent token pairs are hashed into a fixed number of buckets
// (the hashing trick), so texts sharing vocabulary score as similar. It is
// meant for development and offline use, not for semantic quality.
type LocalProvider struct {
	model string
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{model: "local-hashing"}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, l, req)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = &Embedding{
			Vector:    hashEmbedding(text, LocalDimension),
			Dimension: LocalDimension,
			Provider:  ProviderLocal,
			Model:     l.model,
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

func hashEmbedding(text string, dim int) []float32 {
	vector := make([]float32, dim)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	add := func(feature string, weight float32) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(dim))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		vector[idx] += weight
	}

	for i, tok := range tokens {
		add(tok, 1)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	// Punctuation-only input still gets a usable, non-zero vector.
	if len(tokens) == 0 {
		textHash := sha256.Sum256([]byte(text))
		for i := 0; i < dim && i < len(textHash); i++ {
			vector[i] = float32(textHash[i])/255.0 + 0.01
		}
	}

	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
