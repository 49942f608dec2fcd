package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/snipvault/internal/httpapi"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the JSON HTTP API. Requests are attributed to the user named in the
X-User-ID header, which a trusted upstream authenticator must set.

The server drains in-flight requests on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Storage:   a.store,
		Snippets:  a.snippets,
		Searcher:  a.searcher,
		Assistant: a.assistant,
		Indexer:   a.indexer,
		Embedder:  a.embedder,
	}, httpapi.Options{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	})

	if err := srv.Serve(ctx, addr); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
