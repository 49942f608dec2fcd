package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/dshills/snipvault/pkg/types"
)

var (
	explainStyle string
	explainRaw   bool
)

func init() {
	explainCmd.Flags().StringVar(&explainStyle, "style", "dark", "Glamour style (dark, light, notty, auto)")
	explainCmd.Flags().BoolVar(&explainRaw, "raw", false, "Print markdown without rendering")
	rootCmd.AddCommand(explainCmd)
}

var explainCmd = &cobra.Command{
	Use:   "explain <snippet-id>",
	Short: "Explain a stored snippet with the completion provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	snippet, err := a.snippets.Get(ctx, currentUser(), args[0])
	if err != nil {
		return err
	}

	explanation, err := a.assistant.Explain(ctx, snippet.Code, snippet.Language)
	if err != nil {
		return err
	}

	md := explainMarkdown(snippet, explanation)
	if explainRaw {
		_, err = fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}

	rendered, err := glamour.Render(md, explainStyle)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
	return err
}

func explainMarkdown(s *types.Snippet, explanation string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)
	if d := s.DescriptionText(); d != "" {
		fmt.Fprintf(&b, "_%s_\n\n", d)
	}
	fmt.Fprintf(&b, "```%s\n%s\n```\n\n", strings.ToLower(s.Language), strings.TrimRight(s.Code, "\n"))
	fmt.Fprintf(&b, "%s\n", explanation)
	return b.String()
}
