package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/snipvault/internal/indexer"
	"github.com/dshills/snipvault/internal/searcher"
	"github.com/dshills/snipvault/internal/storage"
	"github.com/dshills/snipvault/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound           = -32001 // Snippet does not exist or belongs to another user
	ErrorCodeBackfillInProgress = -32002 // Another embedding backfill is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeProvider           = -32005 // Embedding or completion provider failed
)

// handleSearchSnippets handles the search_snippets tool invocation
func (s *Server) handleSearchSnippets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query := getStringDefault(args, "query", "")
	mode := searcher.SearchModeKeyword
	if getBoolDefault(args, "semantic", false) {
		mode = searcher.SearchModeSemantic
	}

	resp, err := s.deps.Searcher.Search(ctx, searcher.SearchRequest{
		UserID: s.userID,
		Query:  query,
		Mode:   mode,
	})
	if err != nil {
		return nil, s.toMCPError(ctx, "search failed", err)
	}

	response := map[string]interface{}{
		"search_mode": resp.SearchMode,
		"count":       len(resp.Results),
		"duration_ms": resp.Duration.Milliseconds(),
		"results":     resp.Results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCreateSnippet handles the create_snippet tool invocation
func (s *Server) handleCreateSnippet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	patch, err := parsePatch(args)
	if err != nil {
		return nil, err
	}
	input := patch.Apply(&types.Snippet{})

	created, err := s.deps.Snippets.Create(ctx, s.userID, input)
	if err != nil {
		return nil, s.toMCPError(ctx, "create failed", err)
	}
	return mcp.NewToolResultText(formatJSON(created)), nil
}

// handleUpdateSnippet handles the update_snippet tool invocation. Only the
// arguments present are changed.
func (s *Server) handleUpdateSnippet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	id, err := requiredString(args, "id")
	if err != nil {
		return nil, err
	}
	patch, err := parsePatch(args)
	if err != nil {
		return nil, err
	}

	updated, err := s.deps.Snippets.Update(ctx, s.userID, id, patch)
	if err != nil {
		return nil, s.toMCPError(ctx, "update failed", err)
	}
	return mcp.NewToolResultText(formatJSON(updated)), nil
}

// handleGetSnippet handles the get_snippet tool invocation
func (s *Server) handleGetSnippet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	id, err := requiredString(args, "id")
	if err != nil {
		return nil, err
	}

	snippet, err := s.deps.Snippets.Get(ctx, s.userID, id)
	if err != nil {
		return nil, s.toMCPError(ctx, "get failed", err)
	}
	return mcp.NewToolResultText(formatJSON(snippet)), nil
}

// handleDeleteSnippet handles the delete_snippet tool invocation
func (s *Server) handleDeleteSnippet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	id, err := requiredString(args, "id")
	if err != nil {
		return nil, err
	}

	if err := s.deps.Snippets.Delete(ctx, s.userID, id); err != nil {
		return nil, s.toMCPError(ctx, "delete failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"deleted": true,
		"id":      id,
	})), nil
}

// handleListSnippets handles the list_snippets tool invocation
func (s *Server) handleListSnippets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "limit", 20)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	offset := getIntDefault(args, "offset", 0)
	if offset < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "offset must not be negative", map[string]interface{}{
			"param": "offset",
			"value": offset,
		})
	}

	list, err := s.deps.Snippets.List(ctx, s.userID, storage.ListOptions{
		Limit:         limit,
		Offset:        offset,
		Language:      getStringDefault(args, "language", ""),
		FavoritesOnly: getBoolDefault(args, "favorites_only", false),
	})
	if err != nil {
		return nil, s.toMCPError(ctx, "list failed", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"count":    len(list),
		"snippets": list,
	})), nil
}

// handleAnalyzeCode handles the analyze_code tool invocation
func (s *Server) handleAnalyzeCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	analysis, err := s.deps.Assistant.Analyze(ctx, getStringDefault(args, "code", ""), getStringDefault(args, "language", ""))
	if err != nil {
		return nil, s.toMCPError(ctx, "analysis failed", err)
	}
	return mcp.NewToolResultText(formatJSON(analysis)), nil
}

// handleExplainCode handles the explain_code tool invocation
func (s *Server) handleExplainCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	explanation, err := s.deps.Assistant.Explain(ctx, getStringDefault(args, "code", ""), getStringDefault(args, "language", ""))
	if err != nil {
		return nil, s.toMCPError(ctx, "explanation failed", err)
	}
	return mcp.NewToolResultText(explanation), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.deps.Snippets.Stats(ctx, s.userID)
	if err != nil {
		return nil, s.toMCPError(ctx, "failed to get status", err)
	}

	embeddingProvider := "none"
	if s.deps.Embedder != nil {
		embeddingProvider = s.deps.Embedder.Provider()
	}

	backfillRunning := false
	if s.deps.Indexer != nil {
		backfillRunning = s.deps.Indexer.Running()
	}

	response := map[string]interface{}{
		"user_id":    s.userID,
		"statistics": stats,
		"providers": map[string]interface{}{
			"embedding":  embeddingProvider,
			"completion": s.deps.Assistant.Provider(),
		},
		"health": map[string]interface{}{
			"database_accessible":  s.deps.Storage.Ping(ctx) == nil,
			"malformed_embeddings": s.deps.Searcher.MalformedEmbeddings(),
			"backfill_running":     backfillRunning,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps a domain error onto an MCP error code. Internal failures
// are logged and reported without their cause.
func (s *Server) toMCPError(ctx context.Context, message string, err error) error {
	switch {
	case searcher.IsEmptyQuery(err):
		return newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	case errors.Is(err, types.ErrValidation):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), validationData(err))
	case errors.Is(err, types.ErrNotFound):
		return newMCPError(ErrorCodeNotFound, "snippet not found", nil)
	case errors.Is(err, indexer.ErrIndexingInProgress):
		return newMCPError(ErrorCodeBackfillInProgress, err.Error(), nil)
	case errors.Is(err, types.ErrProvider):
		s.logger.WarnContext(ctx, message, "error", err)
		return newMCPError(ErrorCodeProvider, message, map[string]interface{}{
			"error":   err.Error(),
			"timeout": errors.Is(err, types.ErrProviderTimeout),
		})
	default:
		s.logger.ErrorContext(ctx, message, "error", err)
		return newMCPError(ErrorCodeInternalError, message, nil)
	}
}

func validationData(err error) interface{} {
	var many types.ValidationErrors
	if errors.As(err, &many) {
		fields := make([]map[string]interface{}, 0, len(many))
		for _, e := range many {
			fields = append(fields, map[string]interface{}{"param": e.Field, "reason": e.Message})
		}
		return map[string]interface{}{"fields": fields}
	}
	var one *types.ValidationError
	if errors.As(err, &one) {
		return map[string]interface{}{"param": one.Field, "reason": one.Message}
	}
	return nil
}

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

func requiredString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// parsePatch reads the snippet fields present in args
func parsePatch(args map[string]interface{}) (*types.SnippetPatch, error) {
	var (
		patch types.SnippetPatch
		err   error
	)
	strFields := []struct {
		key string
		dst **string
	}{
		{"title", &patch.Title},
		{"description", &patch.Description},
		{"code", &patch.Code},
		{"language", &patch.Language},
		{"framework", &patch.Framework},
		{"complexity", &patch.Complexity},
	}
	for _, f := range strFields {
		if *f.dst, err = optionalString(args, f.key); err != nil {
			return nil, err
		}
	}
	if patch.IsFavorite, err = optionalBool(args, "is_favorite"); err != nil {
		return nil, err
	}
	if patch.IsPublic, err = optionalBool(args, "is_public"); err != nil {
		return nil, err
	}

	if raw, ok := args["tags"]; ok && raw != nil {
		items, ok := raw.([]interface{})
		if !ok {
			return nil, invalidParam("tags", "must be an array of strings")
		}
		tags := make([]string, 0, len(items))
		for _, item := range items {
			tag, ok := item.(string)
			if !ok {
				return nil, invalidParam("tags", "must be an array of strings")
			}
			tags = append(tags, tag)
		}
		patch.Tags = &tags
	}
	return &patch, nil
}

func optionalString(args map[string]interface{}, key string) (*string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	val, ok := raw.(string)
	if !ok {
		return nil, invalidParam(key, "must be a string")
	}
	return &val, nil
}

func optionalBool(args map[string]interface{}, key string) (*bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	val, ok := raw.(bool)
	if !ok {
		return nil, invalidParam(key, "must be a boolean")
	}
	return &val, nil
}

func invalidParam(key, reason string) error {
	return newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("invalid %s", key), map[string]interface{}{
		"param":  key,
		"reason": reason,
	})
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
