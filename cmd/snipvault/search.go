package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/snipvault/internal/searcher"
)

var searchSemantic bool

func init() {
	searchCmd.Flags().BoolVarP(&searchSemantic, "semantic", "s", false, "Rank by embedding similarity instead of substring match")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search snippets and print them as JSON",
	Long: `Search the user's snippets.

Keyword mode (default) matches the query as a case-insensitive substring of
title, description, code or language and returns up to 100 snippets, newest
first. Semantic mode embeds the query, scores the 1000 most recent snippets
and returns up to 50 with similarity above 0.7, best first.

Examples:
  snipvault search "retry"
  snipvault search --semantic "exponential backoff for http calls"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mode := searcher.SearchModeKeyword
	if searchSemantic {
		mode = searcher.SearchModeSemantic
	}

	resp, err := a.searcher.Search(ctx, searcher.SearchRequest{
		UserID: currentUser(),
		Query:  strings.Join(args, " "),
		Mode:   mode,
	})
	if err != nil {
		return err
	}

	logger.Debug("search complete",
		"mode", resp.SearchMode,
		"results", len(resp.Results),
		"candidates", resp.Candidates,
		"scored", resp.Scored,
		"duration", resp.Duration)
	return outputJSON(cmd.OutOrStdout(), resp.Results)
}
