package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/internal/snippets"
	"github.com/dshills/snipvault/internal/storage"
	"github.com/dshills/snipvault/internal/vector"
	"github.com/dshills/snipvault/pkg/types"
)

// ErrIndexingInProgress is returned when a backfill is already running
var ErrIndexingInProgress = errors.New("embedding backfill already in progress")

// Defaults for Config
const (
	DefaultBatchSize = 16
	DefaultLimit     = 1000
)

// Indexer backfills embeddings for snippets that have code but no vector,
// such as rows imported directly or written while no provider was set.
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *slog.Logger
	lock     IndexLock
}

// Config contains configuration for a backfill run
type Config struct {
	Workers   int // Concurrent provider calls (default: runtime.NumCPU())
	BatchSize int // Texts per provider call (default: 16)
	Limit     int // Snippets scanned per run (default: 1000)
}

// Statistics contains statistics about a backfill run
type Statistics struct {
	Scanned       int           `json:"scanned"`
	Embedded      int           `json:"embedded"`
	Skipped       int           `json:"skipped"` // changed concurrently, left for the next run
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"duration"`
	ErrorMessages []string      `json:"errors,omitempty"`
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{storage: store, embedder: emb, logger: logger}
}

// Running reports whether a backfill is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// IndexMissing embeds the user's snippets that lack a vector. Individual
// failures are recorded in the statistics and do not stop the run.
func (idx *Indexer) IndexMissing(ctx context.Context, userID string, config *Config) (*Statistics, error) {
	if userID == "" {
		return nil, types.NewValidationError("userId", "user id is required")
	}
	if idx.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", types.ErrProvider)
	}
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := withDefaults(config)
	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	pending, err := idx.storage.ListMissingEmbeddings(ctx, userID, cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}
	stats.Scanned = len(pending)

	var (
		embedded, skipped, failed int32
		mu                        sync.Mutex // Protect stats.ErrorMessages
	)
	recordErr := func(id string, err error) {
		atomic.AddInt32(&failed, 1)
		mu.Lock()
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", id, err))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := 0; i < len(pending); i += cfg.BatchSize {
		batch := pending[i:min(i+cfg.BatchSize, len(pending))]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			vectors, err := idx.embedBatch(gctx, batch)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				for _, s := range batch {
					recordErr(s.ID, err)
				}
				return nil
			}

			for i, s := range batch {
				if err := vector.Validate(vectors[i]); err != nil {
					recordErr(s.ID, err)
					continue
				}
				err := idx.storage.SetEmbedding(gctx, s, vector.Format(vectors[i]))
				switch {
				case err == nil:
					atomic.AddInt32(&embedded, 1)
				case errors.Is(err, storage.ErrConflict):
					atomic.AddInt32(&skipped, 1)
				default:
					recordErr(s.ID, err)
				}
			}
			return nil
		})
	}

	// Only cancellation aborts the run
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Embedded = int(embedded)
	stats.Skipped = int(skipped)
	stats.Failed = int(failed)
	stats.Duration = time.Since(startTime)

	idx.logger.InfoContext(ctx, "embedding backfill complete",
		"user_id", userID,
		"scanned", stats.Scanned,
		"embedded", stats.Embedded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", stats.Duration)

	return stats, nil
}

func (idx *Indexer) embedBatch(ctx context.Context, batch []*types.Snippet) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, s := range batch {
		texts[i] = snippets.BuildEmbeddingText(s.Title, s.DescriptionText(), s.Code)
	}

	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(batch) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", types.ErrProvider, len(batch), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(batch))
	for i, e := range resp.Embeddings {
		if e != nil {
			vectors[i] = e.Vector
		}
	}
	return vectors, nil
}

func withDefaults(config *Config) Config {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > embedder.MaxBatchSize {
		cfg.BatchSize = embedder.MaxBatchSize
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return cfg
}
