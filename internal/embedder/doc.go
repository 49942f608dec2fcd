// Package embedder turns text into embedding vectors.
//
// Providers:
//   - openai: text-embedding-3-small via github.com/sashabaranov/go-openai
//   - jina: jina-embeddings-v3 through the same client and an OpenAI-compatible base URL
//   - gemini: text-embedding-004 via google.golang.org/genai
//   - local: a deterministic hashing embedder that needs no network
//
// # Basic Usage
//
//	emb, err := embedder.New(ctx, embedder.Config{
//	    OpenAIKey: os.Getenv("OPENAI_API_KEY"),
//	    Timeout:   15 * time.Second,
//	    RateLimit: 10,
//	    Burst:     5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "retry with exponential backoff",
//	})
//
// # Guard
//
// New wraps every provider in a Guard. Each call gets its own deadline, waits
// on a token bucket limiter (golang.org/x/time/rate) and is attempted
// MaxAttempts times. The default is one attempt: a failed embedding surfaces
// to the caller immediately.
//
// # Errors
//
// Errors follow the shared taxonomy in pkg/types:
//   - empty or oversized input matches types.ErrValidation
//   - provider failures match types.ErrProvider
//   - deadline overruns match types.ErrProviderTimeout (and types.ErrProvider)
//
// Cancelling the caller's context returns the context error unchanged.
//
// Embeddings are never cached here. Every search embeds its query afresh.
package embedder
