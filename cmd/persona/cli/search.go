package cli

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/persona/internal/prompt"
	"github.com/felixgeelhaar/persona/internal/ui"
	"github.com/spf13/cobra"
)

var (
	searchThreshold float64
	searchTopK      int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "List the imported passages that match a query",
	Long: `Import the --file and --url sources and print the passages scoring at
least the threshold, best first. The threshold and the number of passages
default to retrieval.score_threshold and retrieval.top_k.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, strings.Join(args, " "))
	},
}

func init() {
	searchCmd.Flags().StringArrayVar(&importFiles, "file", nil, "Import a document to search")
	searchCmd.Flags().StringArrayVar(&importURLs, "url", nil, "Import a web page to search")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "Minimum cosine score (default retrieval.score_threshold)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "Maximum passages (default retrieval.top_k)")
	RootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, query string) error {
	if len(importFiles) == 0 && len(importURLs) == 0 {
		return fmt.Errorf("search needs at least one --file or --url")
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	threshold := a.cfg.Retrieval.Threshold()
	if cmd.Flags().Changed("threshold") {
		threshold = searchThreshold
	}
	if threshold < -1 || threshold > 1 {
		return fmt.Errorf("threshold must be in [-1, 1], got %g", threshold)
	}
	k := a.cfg.Retrieval.TopK
	if searchTopK > 0 {
		k = searchTopK
	}

	sess, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	console := ui.NewConsole(cmd.OutOrStdout(), verbose)
	ui.FollowStatus(a.bus, sess.ID(), console)
	if err := preload(ctx, NewRunner(a.obs, sess, console)); err != nil {
		return err
	}

	hits, err := sess.Search(ctx, query, k, threshold)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No passages scored %.2f or higher.\n", threshold)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), prompt.FormatContext(hits))
	return nil
}
