package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/snipvault/internal/assistant"
	"github.com/dshills/snipvault/internal/embedder"
	"github.com/dshills/snipvault/internal/indexer"
	"github.com/dshills/snipvault/internal/searcher"
	"github.com/dshills/snipvault/internal/snippets"
	"github.com/dshills/snipvault/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "snipvault"
	// DefaultUserID is the identity used when none is configured
	DefaultUserID = "local"
)

// ServerVersion is reported during the MCP handshake. The CLI overrides it
// with the build version.
var ServerVersion = "dev"

// Deps are the components the tools call into
type Deps struct {
	Storage   storage.Storage
	Snippets  *snippets.Service
	Searcher  *searcher.Searcher
	Assistant *assistant.Assistant
	Indexer   *indexer.Indexer
	Embedder  embedder.Embedder // optional
}

// Server wraps the MCP server with application dependencies. Every tool
// acts as a single local user.
type Server struct {
	mcp    *server.MCPServer
	deps   Deps
	userID string
	logger *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps, userID string, logger *slog.Logger) (*Server, error) {
	if deps.Storage == nil || deps.Snippets == nil || deps.Searcher == nil || deps.Assistant == nil {
		return nil, errors.New("mcp: storage, snippets, searcher and assistant are required")
	}
	if strings.TrimSpace(userID) == "" {
		userID = DefaultUserID
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		deps:   deps,
		userID: userID,
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the protocol on stdin/stdout until ctx is cancelled or stdin
// closes.
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen runs the protocol over the given streams
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server ready", "user_id", s.userID)
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchSnippetsTool(), s.handleSearchSnippets)
	s.mcp.AddTool(createSnippetTool(), s.handleCreateSnippet)
	s.mcp.AddTool(updateSnippetTool(), s.handleUpdateSnippet)
	s.mcp.AddTool(getSnippetTool(), s.handleGetSnippet)
	s.mcp.AddTool(deleteSnippetTool(), s.handleDeleteSnippet)
	s.mcp.AddTool(listSnippetsTool(), s.handleListSnippets)
	s.mcp.AddTool(analyzeCodeTool(), s.handleAnalyzeCode)
	s.mcp.AddTool(explainCodeTool(), s.handleExplainCode)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
