package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/snipvault/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout. Every tool acts as the
user given by --user or mcp.user_id. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mcp.ServerVersion = Version
	server, err := mcp.NewServer(mcp.Deps{
		Storage:   a.store,
		Snippets:  a.snippets,
		Searcher:  a.searcher,
		Assistant: a.assistant,
		Indexer:   a.indexer,
		Embedder:  a.embedder,
	}, currentUser(), logger)
	if err != nil {
		return err
	}

	if err := server.Serve(ctx); err != nil {
		return err
	}
	logger.Info("mcp server stopped")
	return nil
}
