package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/felixgeelhaar/persona/internal/ingest"
	"github.com/felixgeelhaar/persona/internal/session"
	"github.com/felixgeelhaar/persona/internal/ui"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Check and record documents for the knowledge store",
	Long: `Run a document through the import pipeline and record it in the source
ledger. The knowledge store lives only for one chat, so pass --file or --url
to chat and ask to use a document in conversation.`,
}

var ingestFileCmd = &cobra.Command{
	Use:   "file [path]",
	Short: "Import a local document (" + strings.Join(ingest.SupportedExtensions(), ", ") + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, func(ctx context.Context, s *session.Session) (session.ImportResult, error) {
			return s.ImportFile(ctx, args[0])
		})
	},
}

var ingestURLCmd = &cobra.Command{
	Use:   "url [url]",
	Short: "Import a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, func(ctx context.Context, s *session.Session) (session.ImportResult, error) {
			return s.ImportURL(ctx, args[0])
		})
	},
}

var ingestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sources, err := a.db.ListSources(cmd.Context(), "")
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sources recorded.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tKIND\tCHUNKS\tDIGEST\tNAME")
		for _, s := range sources {
			digest := s.Digest
			if len(digest) > 12 {
				digest = digest[:12]
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.CreatedAt.Format("2006-01-02 15:04"), s.Kind, s.Chunks, digest, s.Name)
		}
		return w.Flush()
	},
}

func init() {
	RootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestFileCmd)
	ingestCmd.AddCommand(ingestURLCmd)
	ingestCmd.AddCommand(ingestListCmd)
}

func runIngest(cmd *cobra.Command, run func(context.Context, *session.Session) (session.ImportResult, error)) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)
	ui.FollowStatus(a.bus, sess.ID(), ui.NewConsole(cmd.OutOrStdout(), verbose))

	res, err := run(ctx, sess)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: format=%s chunks=%d sha256=%s\n", res.Name, res.Format, res.Chunks, res.Hash)
	return nil
}
