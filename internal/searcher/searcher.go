package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/internal/storage"
	"github.com/dshills/snipvault/internal/vector"
	"github.com/dshills/snipvault/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeKeyword  SearchMode = "keyword"  // Substring match in the store
	SearchModeSemantic SearchMode = "semantic" // Embedding similarity over recent snippets
)

// Ranking constants
const (
	// RelevanceThreshold is the similarity a snippet must strictly exceed
	RelevanceThreshold = 0.7
	// SemanticResultLimit caps semantic results after ranking
	SemanticResultLimit = 50
	// KeywordResultLimit caps keyword results
	KeywordResultLimit = 100
	// CandidateLimit bounds how many recent snippets are scored per query
	CandidateLimit = 1000

	// below this many candidates scoring runs inline
	parallelScoringThreshold = 256
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	UserID string
	Query  string
	Mode   SearchMode
}

// SearchResponse contains search results and metadata. Similarity scores are
// used for ranking only and are not exposed.
type SearchResponse struct {
	Results    []*types.Snippet
	SearchMode SearchMode
	Duration   time.Duration

	// Semantic mode only
	Candidates int // snippets loaded from the store
	Scored     int // candidates with a usable embedding
}

// Options tune a Searcher
type Options struct {
	// Workers bounds parallel scoring. 0 means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// Searcher coordinates keyword and semantic search
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *slog.Logger
	workers  int

	malformed atomic.Int64
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Storage, emb embedder.Embedder, opts Options) *Searcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Searcher{
		storage:  store,
		embedder: emb,
		logger:   logger,
		workers:  workers,
	}
}

// MalformedEmbeddings returns how many stored embeddings were skipped
// because they could not be parsed or compared with the query.
func (s *Searcher) MalformedEmbeddings() int64 {
	return s.malformed.Load()
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	var response *SearchResponse
	var err error

	switch req.Mode {
	case SearchModeKeyword:
		response, err = s.keywordSearch(ctx, req)
	case SearchModeSemantic:
		response, err = s.semanticSearch(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode

	s.logger.DebugContext(ctx, "search complete",
		"mode", req.Mode,
		"results", len(response.Results),
		"candidates", response.Candidates,
		"duration", response.Duration)

	return response, nil
}

func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	results, err := s.storage.SearchByOwner(ctx, req.UserID, req.Query, KeywordResultLimit)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	return &SearchResponse{Results: results}, nil
}

// scored pairs a candidate with its similarity. ok is false when the
// candidate has no usable embedding.
type scored struct {
	snippet    *types.Snippet
	similarity float64
	ok         bool
}

func (s *Searcher) semanticSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", types.ErrProvider)
	}

	// No fallback to keyword search: a provider failure fails the request.
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if err := vector.Validate(emb.Vector); err != nil {
		return nil, fmt.Errorf("%w: unusable query embedding: %v", types.ErrProvider, err)
	}

	candidates, err := s.storage.FindRecentByOwner(ctx, req.UserID, CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	scores, err := s.score(ctx, emb.Vector, candidates)
	if err != nil {
		return nil, err
	}

	response := &SearchResponse{Candidates: len(candidates)}
	matches := make([]scored, 0, len(scores))
	for _, sc := range scores {
		if !sc.ok {
			continue
		}
		response.Scored++
		if relevant(sc.similarity) {
			matches = append(matches, sc)
		}
	}

	// Stable: equal scores keep candidate order, most recent first.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].similarity > matches[j].similarity
	})

	if len(matches) > SemanticResultLimit {
		matches = matches[:SemanticResultLimit]
	}

	response.Results = make([]*types.Snippet, len(matches))
	for i, m := range matches {
		response.Results[i] = m.snippet
	}
	return response, nil
}

// score computes the similarity of every candidate to query. The result is
// index-aligned with candidates regardless of how the work is split.
func (s *Searcher) score(ctx context.Context, query []float32, candidates []*types.Snippet) ([]scored, error) {
	out := make([]scored, len(candidates))

	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = s.scoreOne(ctx, query, candidates[i])
		}
	}

	if len(candidates) < parallelScoringThreshold || s.workers == 1 {
		scoreRange(0, len(candidates))
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	chunk := (len(candidates) + s.workers - 1) / s.workers
	for lo := 0; lo < len(candidates); lo += chunk {
		lo, hi := lo, min(lo+chunk, len(candidates))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scoreRange(lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Searcher) scoreOne(ctx context.Context, query []float32, snippet *types.Snippet) scored {
	if !snippet.HasEmbedding() {
		return scored{snippet: snippet}
	}

	stored, err := vector.Parse(*snippet.Embedding)
	if err == nil {
		var sim float64
		sim, err = vector.Cosine(query, stored)
		if err == nil {
			return scored{snippet: snippet, similarity: sim, ok: true}
		}
	}

	s.malformed.Add(1)
	s.logger.WarnContext(ctx, "skipping malformed embedding",
		"snippet_id", snippet.ID,
		"error", err)
	return scored{snippet: snippet}
}

func relevant(similarity float64) bool {
	return similarity > RelevanceThreshold
}

// validateRequest ensures search request is valid
func validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return types.NewValidationError("query", "query cannot be empty")
	}

	if strings.TrimSpace(req.UserID) == "" {
		return types.NewValidationError("userId", "user id is required")
	}

	if req.Mode == "" {
		req.Mode = SearchModeKeyword
	}

	switch req.Mode {
	case SearchModeKeyword, SearchModeSemantic:
		return nil
	default:
		return types.NewValidationError("mode", "unsupported search mode: %s", req.Mode)
	}
}

// IsEmptyQuery reports whether err is the empty-query rejection
func IsEmptyQuery(err error) bool {
	var ve *types.ValidationError
	return errors.As(err, &ve) && ve.Field == "query"
}
