package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/snipvault/internal/indexer"
)

var (
	reembedWorkers   int
	reembedBatchSize int
	reembedLimit     int
)

func init() {
	reembedCmd.Flags().IntVar(&reembedWorkers, "workers", 0, "Concurrent provider calls (default: number of CPUs)")
	reembedCmd.Flags().IntVar(&reembedBatchSize, "batch-size", indexer.DefaultBatchSize, "Texts per provider call")
	reembedCmd.Flags().IntVar(&reembedLimit, "limit", indexer.DefaultLimit, "Maximum snippets to process")
	rootCmd.AddCommand(reembedCmd)
}

var reembedCmd = &cobra.Command{
	Use:   "reembed",
	Short: "Compute embeddings for snippets that have none",
	Long: `Find the user's snippets that have code but no stored embedding and embed
them. Snippets edited while the backfill runs are skipped and picked up by
the next run. Prints run statistics as JSON.`,
	Args: cobra.NoArgs,
	RunE: runReembed,
}

func runReembed(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.indexer.IndexMissing(ctx, currentUser(), &indexer.Config{
		Workers:   reembedWorkers,
		BatchSize: reembedBatchSize,
		Limit:     reembedLimit,
	})
	if err != nil {
		return err
	}
	return outputJSON(cmd.OutOrStdout(), stats)
}
