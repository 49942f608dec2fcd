package storage

import (
	"context"
	"errors"

	"github.com/dshills/snipvault/pkg/types"
)

// Page limits for ListSnippets
const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

var (
	// ErrNotFound is returned when a snippet doesn't exist or belongs to
	// another user. The two cases are indistinguishable to callers.
	ErrNotFound = types.ErrNotFound
	// ErrConflict is returned when a conditional write finds the row changed
	ErrConflict = errors.New("snippet changed concurrently")
)

// Storage defines the interface for persisting and querying snippets.
// Every read and write is scoped to a single owner.
type Storage interface {
	// Snippet operations
	CreateSnippet(ctx context.Context, snippet *types.Snippet) error
	GetSnippet(ctx context.Context, userID, id string) (*types.Snippet, error)
	UpdateSnippet(ctx context.Context, userID, id string, snippet *types.Snippet) error
	DeleteSnippet(ctx context.Context, userID, id string) error
	ListSnippets(ctx context.Context, userID string, opts ListOptions) ([]*types.Snippet, error)
	RecordUsage(ctx context.Context, userID, id string) (*types.Snippet, error)

	// Search operations
	FindRecentByOwner(ctx context.Context, userID string, limit int) ([]*types.Snippet, error)
	SearchByOwner(ctx context.Context, userID, query string, limit int) ([]*types.Snippet, error)

	// Embedding maintenance
	ListMissingEmbeddings(ctx context.Context, userID string, limit int) ([]*types.Snippet, error)
	SetEmbedding(ctx context.Context, snippet *types.Snippet, embedding string) error

	// Status operations
	Stats(ctx context.Context, userID string) (*types.SnippetStats, error)

	// Database operations
	Ping(ctx context.Context) error
	Close() error
}

// ListOptions filters and pages ListSnippets
type ListOptions struct {
	Limit         int
	Offset        int
	Language      string
	FavoritesOnly bool
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
