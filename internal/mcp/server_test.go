package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/snipvault/internal/assistant"
	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/internal/indexer"
	"github.com/dshills/snipvault/internal/searcher"
	"github.com/dshills/snipvault/internal/snippets"
	"github.com/dshills/snipvault/internal/storage"
	"github.com/dshills/snipvault/pkg/types"
)

// failingEmbedder fails every call with err
type failingEmbedder struct {
	*embedder.LocalProvider
	err error
}

func (f *failingEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return nil, f.err
}

type stubCompleter struct{ reply string }

func (s *stubCompleter) Complete(ctx context.Context, p assistant.Prompt) (string, error) {
	return s.reply, nil
}

func (s *stubCompleter) Provider() string { return "stub" }

func newTestServer(t *testing.T, emb embedder.Embedder, completer assistant.Completer) *Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	if emb == nil {
		emb = embedder.NewLocalProvider()
	}
	s, err := NewServer(Deps{
		Storage:   store,
		Snippets:  snippets.NewService(store, emb, nil),
		Searcher:  searcher.NewSearcher(store, emb, searcher.Options{}),
		Assistant: assistant.New(completer, emb, 0, nil),
		Indexer:   indexer.New(store, emb, nil),
		Embedder:  emb,
	}, "", nil)
	require.NoError(t, err)
	return s
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &v))
	return v
}

func requireCode(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code, mcpErr.Message)
	return mcpErr
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(Deps{}, "me", nil)
	assert.Error(t, err)

	s := newTestServer(t, nil, nil)
	assert.Equal(t, DefaultUserID, s.userID)
	assert.NotNil(t, s.mcp)
}

func TestSnippetTools(t *testing.T) {
	s := newTestServer(t, nil, nil)
	ctx := context.Background()

	result, err := s.handleCreateSnippet(ctx, call(map[string]interface{}{
		"title":       "Retry",
		"description": "with backoff",
		"code":        "for attempt := 0; attempt < 3; attempt++ {}",
		"language":    "go",
		"tags":        []interface{}{"retry", "loop"},
		"is_favorite": true,
	}))
	require.NoError(t, err)
	created := resultJSON(t, result)
	id := created["id"].(string)
	assert.Equal(t, DefaultUserID, created["userId"])
	assert.Equal(t, true, created["hasEmbedding"])
	assert.Equal(t, []interface{}{"retry", "loop"}, created["tags"])

	result, err = s.handleGetSnippet(ctx, call(map[string]interface{}{"id": id}))
	require.NoError(t, err)
	assert.Equal(t, "Retry", resultJSON(t, result)["title"])

	result, err = s.handleUpdateSnippet(ctx, call(map[string]interface{}{"id": id, "title": "Retry loop"}))
	require.NoError(t, err)
	updated := resultJSON(t, result)
	assert.Equal(t, "Retry loop", updated["title"])
	assert.Equal(t, "with backoff", updated["description"], "untouched fields kept")

	result, err = s.handleListSnippets(ctx, call(map[string]interface{}{"favorites_only": true}))
	require.NoError(t, err)
	assert.Equal(t, float64(1), resultJSON(t, result)["count"])

	result, err = s.handleSearchSnippets(ctx, call(map[string]interface{}{"query": "BACKOFF"}))
	require.NoError(t, err)
	found := resultJSON(t, result)
	assert.Equal(t, "keyword", found["search_mode"])
	assert.Equal(t, float64(1), found["count"])

	result, err = s.handleDeleteSnippet(ctx, call(map[string]interface{}{"id": id}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["deleted"])

	_, err = s.handleGetSnippet(ctx, call(map[string]interface{}{"id": id}))
	requireCode(t, err, ErrorCodeNotFound)
}

func TestSemanticSearchTool(t *testing.T) {
	s := newTestServer(t, nil, nil)
	ctx := context.Background()

	_, err := s.handleCreateSnippet(ctx, call(map[string]interface{}{
		"title": "Quick sort", "code": "func quickSort(a []int)", "language": "go",
	}))
	require.NoError(t, err)

	result, err := s.handleSearchSnippets(ctx, call(map[string]interface{}{
		"query":    "quick sort func quickSort a int",
		"semantic": true,
	}))
	require.NoError(t, err)
	found := resultJSON(t, result)
	assert.Equal(t, "semantic", found["search_mode"])
	assert.Equal(t, float64(1), found["count"])
}

func TestParamErrors(t *testing.T) {
	s := newTestServer(t, nil, nil)
	ctx := context.Background()

	var bad mcp.CallToolRequest
	bad.Params.Arguments = "not an object"
	_, err := s.handleGetSnippet(ctx, bad)
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchSnippets(ctx, call(map[string]interface{}{"query": "   "}))
	requireCode(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleGetSnippet(ctx, call(map[string]interface{}{}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleCreateSnippet(ctx, call(map[string]interface{}{
		"title": "t", "language": "go", "tags": "not-a-list",
	}))
	requireCode(t, err, ErrorCodeInvalidParams)

	_, err = s.handleCreateSnippet(ctx, call(map[string]interface{}{
		"title": "t", "language": "go", "is_favorite": "yes",
	}))
	requireCode(t, err, ErrorCodeInvalidParams)

	mcpErr := requireCode(t, func() error {
		_, err := s.handleCreateSnippet(ctx, call(map[string]interface{}{"language": "go"}))
		return err
	}(), ErrorCodeInvalidParams)
	assert.Contains(t, mcpErr.Message, "title")

	_, err = s.handleListSnippets(ctx, call(map[string]interface{}{"limit": float64(500)}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestProviderFailure(t *testing.T) {
	emb := &failingEmbedder{LocalProvider: embedder.NewLocalProvider(), err: types.ErrProviderTimeout}
	s := newTestServer(t, emb, nil)
	ctx := context.Background()

	_, err := s.handleSearchSnippets(ctx, call(map[string]interface{}{"query": "sort", "semantic": true}))
	mcpErr := requireCode(t, err, ErrorCodeProvider)
	assert.Equal(t, true, mcpErr.Data.(map[string]interface{})["timeout"])

	_, err = s.handleCreateSnippet(ctx, call(map[string]interface{}{"title": "t", "code": "x", "language": "go"}))
	requireCode(t, err, ErrorCodeProvider)

	_, err = s.handleExplainCode(ctx, call(map[string]interface{}{"code": "x", "language": "go"}))
	requireCode(t, err, ErrorCodeProvider)
}

func TestAssistantTools(t *testing.T) {
	completer := &stubCompleter{reply: `{"tags":["http"],"description":"serves","framework":"net/http","complexity":"moderate"}`}
	s := newTestServer(t, nil, completer)
	ctx := context.Background()

	result, err := s.handleAnalyzeCode(ctx, call(map[string]interface{}{"code": "http.ListenAndServe()", "language": "go"}))
	require.NoError(t, err)
	analysis := resultJSON(t, result)
	assert.Equal(t, "moderate", analysis["complexity"])
	assert.Equal(t, "net/http", analysis["framework"])

	completer.reply = "Starts a server."
	result, err = s.handleExplainCode(ctx, call(map[string]interface{}{"code": "http.ListenAndServe()", "language": "go"}))
	require.NoError(t, err)
	assert.Equal(t, "Starts a server.", resultText(t, result))
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t, nil, nil)
	ctx := context.Background()

	_, err := s.handleCreateSnippet(ctx, call(map[string]interface{}{"title": "t", "code": "x", "language": "go"}))
	require.NoError(t, err)

	result, err := s.handleGetStatus(ctx, call(nil))
	require.NoError(t, err)
	status := resultJSON(t, result)
	assert.Equal(t, DefaultUserID, status["user_id"])
	assert.Equal(t, float64(1), status["statistics"].(map[string]interface{})["total"])
	assert.Equal(t, "local", status["providers"].(map[string]interface{})["embedding"])
	assert.Equal(t, "none", status["providers"].(map[string]interface{})["completion"])
	assert.Equal(t, true, status["health"].(map[string]interface{})["database_accessible"])
}

func TestListenStopsOnCancel(t *testing.T) {
	s := newTestServer(t, nil, nil)

	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Listen(ctx, in, io.Discard) }()

	cancel()
	assert.NoError(t, <-done)
}
