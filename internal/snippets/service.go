// Package snippets owns the snippet write path: validation and keeping each
// snippet's embedding consistent with its text.
package snippets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/internal/storage"
	"github.com/dshills/snipvault/internal/vector"
	"github.com/dshills/snipvault/pkg/types"
)

// Service creates, updates and reads snippets for a single owner per call
type Service struct {
	store    storage.Storage
	embedder embedder.Embedder
	logger   *slog.Logger
}

// NewService returns a Service. emb may be nil, in which case only snippets
// without code can be written.
func NewService(store storage.Storage, emb embedder.Embedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, embedder: emb, logger: logger}
}

// BuildEmbeddingText is the text a snippet's embedding is computed from
func BuildEmbeddingText(title, description, code string) string {
	return title + " " + description + " " + code
}

// MaybeEmbed embeds the snippet text, or returns nil when code is empty.
// Snippets without code are never embedded; whitespace counts as code.
func (s *Service) MaybeEmbed(ctx context.Context, title, description, code string) ([]float32, error) {
	if code == "" {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", types.ErrProvider)
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
		Text: BuildEmbeddingText(title, description, code),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed snippet: %w", err)
	}
	if err := vector.Validate(emb.Vector); err != nil {
		return nil, fmt.Errorf("%w: unusable embedding: %v", types.ErrProvider, err)
	}
	return emb.Vector, nil
}

// Create validates and stores a new snippet owned by userID. If the snippet
// has code and embedding fails, nothing is stored.
func (s *Service) Create(ctx context.Context, userID string, input *types.Snippet) (*types.Snippet, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	snippet := input.Clone()
	snippet.UserID = userID
	snippet.Embedding = nil
	if snippet.Tags == nil {
		snippet.Tags = []string{}
	}
	if err := snippet.Validate(); err != nil {
		return nil, err
	}

	if err := s.embedInto(ctx, snippet); err != nil {
		return nil, err
	}

	if err := s.store.CreateSnippet(ctx, snippet); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "snippet created",
		"snippet_id", snippet.ID,
		"embedded", snippet.HasEmbedding())
	return snippet, nil
}

// Update applies patch to the snippet. The embedding is recomputed from the
// post-update text when the patch touches title, description or code, and
// carried forward otherwise. If recomputation fails, nothing is written.
func (s *Service) Update(ctx context.Context, userID, id string, patch *types.SnippetPatch) (*types.Snippet, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	current, err := s.store.GetSnippet(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch == nil || patch.IsEmpty() {
		return current, nil
	}

	updated := patch.Apply(current)
	if updated.Tags == nil {
		updated.Tags = []string{}
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if patch.TouchesEmbeddingText() {
		if err := s.embedInto(ctx, updated); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateSnippet(ctx, userID, id, updated); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "snippet updated",
		"snippet_id", id,
		"reembedded", patch.TouchesEmbeddingText())
	return updated, nil
}

// embedInto sets snippet.Embedding from its current text. Blank code clears
// the embedding.
func (s *Service) embedInto(ctx context.Context, snippet *types.Snippet) error {
	vec, err := s.MaybeEmbed(ctx, snippet.Title, snippet.DescriptionText(), snippet.Code)
	if err != nil {
		return err
	}
	if vec == nil {
		snippet.Embedding = nil
		return nil
	}
	encoded := vector.Format(vec)
	snippet.Embedding = &encoded
	return nil
}

// Get returns one of the user's snippets
func (s *Service) Get(ctx context.Context, userID, id string) (*types.Snippet, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.GetSnippet(ctx, userID, id)
}

// Delete removes one of the user's snippets
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.store.DeleteSnippet(ctx, userID, id)
}

// List pages through the user's snippets, newest first
func (s *Service) List(ctx context.Context, userID string, opts storage.ListOptions) ([]*types.Snippet, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.ListSnippets(ctx, userID, opts)
}

// RecordUsage counts an explicit use of a snippet (copy, insert). Searches
// never count as usage.
func (s *Service) RecordUsage(ctx context.Context, userID, id string) (*types.Snippet, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.RecordUsage(ctx, userID, id)
}

// Stats summarizes the user's library
func (s *Service) Stats(ctx context.Context, userID string) (*types.SnippetStats, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.Stats(ctx, userID)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return types.NewValidationError("userId", "user id is required")
	}
	return nil
}
