package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/felixgeelhaar/persona/internal/chat"
	"github.com/felixgeelhaar/persona/internal/ui"
	"github.com/felixgeelhaar/persona/internal/ui/tui"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	verbose      bool
	jsonLogs     bool
	providerName string
	modelName    string
	plain        bool
	importFiles  []string
	importURLs   []string
	showUsage    bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "persona",
	Short: "Chat with a configurable persona grounded in your documents",
	Long: `Persona answers as a configurable character. Imported documents and web
pages are chunked and indexed, and the best matching passages are added to
every prompt.`,
	SilenceUsage: true,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "))
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.persona/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "Write logs as JSON")
	RootCmd.PersistentFlags().StringVarP(&providerName, "provider", "p", "", "Provider (groq, openai, ollama, gemini, anthropic, cli, stub)")
	RootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model name (default depends on provider)")

	for _, c := range []*cobra.Command{chatCmd, askCmd} {
		c.Flags().StringArrayVar(&importFiles, "file", nil, "Import a document before chatting")
		c.Flags().StringArrayVar(&importURLs, "url", nil, "Import a web page before chatting")
	}
	chatCmd.Flags().BoolVar(&plain, "plain", false, "Read messages line by line instead of starting the TUI")
	askCmd.Flags().BoolVar(&showUsage, "usage", false, "Print the token usage line after the reply")

	RootCmd.AddCommand(chatCmd)
	RootCmd.AddCommand(askCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// preload imports the --file and --url sources. Later sources replace
// earlier ones.
func preload(ctx context.Context, r *Runner) error {
	for _, src := range append(append([]string{}, importFiles...), importURLs...) {
		if _, err := r.Import(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

func runAsk(cmd *cobra.Command, question string) error {
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

	console := ui.NewConsole(cmd.OutOrStdout(), verbose)
	ui.FollowStatus(a.bus, sess.ID(), console)
	r := NewRunner(a.obs, sess, console)

	if err := preload(ctx, r); err != nil {
		return err
	}

	res := r.Ask(ctx, question)
	if showUsage && res.State == chat.Completed {
		fmt.Fprintln(cmd.OutOrStdout(), res.Usage.String())
	}
	return nil
}

func runChat(cmd *cobra.Command) error {
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

	if plain {
		console := ui.NewConsole(cmd.OutOrStdout(), verbose)
		ui.FollowStatus(a.bus, sess.ID(), console)
		r := NewRunner(a.obs, sess, console)
		if err := preload(ctx, r); err != nil {
			return err
		}
		return r.Loop(ctx, cmd.InOrStdin())
	}

	r := NewRunner(a.obs, sess, nil)
	if err := preload(ctx, r); err != nil {
		return err
	}

	program := tea.NewProgram(tui.NewModel(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.FollowStatus(a.bus, sess.ID(), tui.NewTUI(program))

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat screen failed: %w", err)
	}
	return nil
}
