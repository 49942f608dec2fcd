package snippets

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/internal/storage"
	"github.com/dshills/snipvault/internal/vector"
	"github.com/dshills/snipvault/pkg/types"
)

// recordingEmbedder records every text it is asked to embed
type recordingEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, req.Text)
	if r.err != nil {
		return nil, r.err
	}
	v := []float32{float32(len(req.Text)), 1}
	return &embedder.Embedding{Vector: v, Dimension: 2}, nil
}

func (r *recordingEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingEmbedder) Dimension() int   { return 2 }
func (r *recordingEmbedder) Provider() string { return "recording" }
func (r *recordingEmbedder) Model() string    { return "recording" }
func (r *recordingEmbedder) Close() error     { return nil }

func (r *recordingEmbedder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func setup(t *testing.T) (*Service, *storage.SQLStorage, *recordingEmbedder) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	emb := &recordingEmbedder{}
	return NewService(store, emb, nil), store, emb
}

func strPtr(s string) *string { return &s }

func embeddingOf(t *testing.T, s *types.Snippet) []float32 {
	t.Helper()
	require.NotNil(t, s.Embedding)
	v, err := vector.Parse(*s.Embedding)
	require.NoError(t, err)
	return v
}

func TestBuildEmbeddingText(t *testing.T) {
	assert.Equal(t, "Title desc code", BuildEmbeddingText("Title", "desc", "code"))
	assert.Equal(t, "Title  code", BuildEmbeddingText("Title", "", "code"))
}

func TestMaybeEmbedSkipsEmptyCode(t *testing.T) {
	svc, _, emb := setup(t)

	v, err := svc.MaybeEmbed(context.Background(), "t", "d", "")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Empty(t, emb.calls())
}

func TestMaybeEmbedWhitespaceCode(t *testing.T) {
	svc, _, emb := setup(t)

	v, err := svc.MaybeEmbed(context.Background(), "t", "d", "  \n")
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Equal(t, []string{"t d   \n"}, emb.calls())
}

func TestCreateEmbedsCode(t *testing.T) {
	svc, store, emb := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", &types.Snippet{
		Title:       "Retry",
		Description: strPtr("with backoff"),
		Code:        "for {}",
		Language:    "go",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Retry with backoff for {}"}, emb.calls())
	assert.True(t, created.HasEmbedding())

	stored, err := store.GetSnippet(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, embeddingOf(t, created), embeddingOf(t, stored))
	assert.Equal(t, []string{}, stored.Tags)
}

func TestCreateWithoutDescription(t *testing.T) {
	svc, _, emb := setup(t)

	_, err := svc.Create(context.Background(), "alice", &types.Snippet{Title: "T", Code: "x", Language: "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"T  x"}, emb.calls())
}

func TestCreateWithoutCode(t *testing.T) {
	svc, _, emb := setup(t)

	created, err := svc.Create(context.Background(), "alice", &types.Snippet{Title: "Idea", Language: "text"})
	require.NoError(t, err)
	assert.False(t, created.HasEmbedding())
	assert.Empty(t, emb.calls())
}

func TestCreateIgnoresClientEmbedding(t *testing.T) {
	svc, _, _ := setup(t)

	created, err := svc.Create(context.Background(), "alice", &types.Snippet{
		Title: "Idea", Language: "text", Embedding: strPtr("[9,9]"),
	})
	require.NoError(t, err)
	assert.Nil(t, created.Embedding)
}

func TestCreateProviderFailureStoresNothing(t *testing.T) {
	svc, store, emb := setup(t)
	emb.err = types.ErrProviderTimeout

	_, err := svc.Create(context.Background(), "alice", &types.Snippet{Title: "T", Code: "x", Language: "go"})
	assert.ErrorIs(t, err, types.ErrProviderTimeout)

	list, err := store.ListSnippets(context.Background(), "alice", storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateValidation(t *testing.T) {
	svc, _, emb := setup(t)

	_, err := svc.Create(context.Background(), "alice", &types.Snippet{Title: "", Code: "x", Language: "go"})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.Create(context.Background(), "", &types.Snippet{Title: "T", Language: "go"})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = svc.Create(context.Background(), "alice", &types.Snippet{Title: "T", Language: "go", Tags: []string{"bad tag"}})
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Empty(t, emb.calls(), "invalid input is never embedded")
}

func TestUpdateRecomputesFromMergedState(t *testing.T) {
	svc, _, emb := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", &types.Snippet{
		Title: "Old", Description: strPtr("desc"), Code: "code", Language: "go",
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "alice", created.ID, &types.SnippetPatch{Title: strPtr("Newer")})
	require.NoError(t, err)

	calls := emb.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Newer desc code", calls[1])
	assert.NotEqual(t, embeddingOf(t, created), embeddingOf(t, updated))
}

func TestUpdateNonTextFieldsKeepEmbedding(t *testing.T) {
	svc, store, emb := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", &types.Snippet{Title: "T", Code: "code", Language: "go"})
	require.NoError(t, err)

	fav := true
	tags := []string{"x", "y"}
	_, err = svc.Update(ctx, "alice", created.ID, &types.SnippetPatch{
		IsFavorite: &fav,
		Tags:       &tags,
		Language:   strPtr("golang"),
	})
	require.NoError(t, err)
	assert.Len(t, emb.calls(), 1, "no recompute")

	stored, err := store.GetSnippet(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsFavorite)
	assert.Equal(t, *created.Embedding, *stored.Embedding)
}

func TestUpdateClearingCodeClearsEmbedding(t *testing.T) {
	svc, store, emb := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", &types.Snippet{Title: "T", Code: "code", Language: "go"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "alice", created.ID, &types.SnippetPatch{Code: strPtr("")})
	require.NoError(t, err)
	assert.Len(t, emb.calls(), 1)

	stored, err := store.GetSnippet(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasEmbedding())
}

func TestUpdateProviderFailureIsAtomic(t *testing.T) {
	svc, store, emb := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", &types.Snippet{Title: "T", Code: "code", Language: "go"})
	require.NoError(t, err)

	emb.err = types.ErrProvider
	_, err = svc.Update(ctx, "alice", created.ID, &types.SnippetPatch{Code: strPtr("new code")})
	assert.ErrorIs(t, err, types.ErrProvider)

	stored, err := store.GetSnippet(ctx, "alice", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "code", stored.Code)
	assert.Equal(t, *created.Embedding, *stored.Embedding)
}

func TestUpdateOwnership(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", &types.Snippet{Title: "T", Language: "go"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "bob", created.ID, &types.SnippetPatch{Title: strPtr("hijack")})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = svc.Get(ctx, "bob", created.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "bob", created.ID), types.ErrNotFound)
}

func TestEmptyPatchReturnsCurrent(t *testing.T) {
	svc, _, emb := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "alice", &types.Snippet{Title: "T", Code: "c", Language: "go"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, "alice", created.ID, &types.SnippetPatch{})
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Len(t, emb.calls(), 1)
}

func TestRecordUsageAndStats(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "alice", &types.Snippet{Title: "A", Code: "x", Language: "go", IsFavorite: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", &types.Snippet{Title: "B", Language: "rust"})
	require.NoError(t, err)

	used, err := svc.RecordUsage(ctx, "alice", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, used.UsageCount)

	stats, err := svc.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Favorites)
	assert.Equal(t, 1, stats.WithEmbedded)

	list, err := svc.List(ctx, "alice", storage.ListOptions{Language: "rust"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "B", list[0].Title)
}

func TestServiceWithoutEmbedder(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()
	svc := NewService(store, nil, nil)

	_, err = svc.Create(context.Background(), "alice", &types.Snippet{Title: "T", Language: "go"})
	assert.NoError(t, err)

	_, err = svc.Create(context.Background(), "alice", &types.Snippet{Title: "T", Code: "x", Language: "go"})
	assert.ErrorIs(t, err, types.ErrProvider)
}
