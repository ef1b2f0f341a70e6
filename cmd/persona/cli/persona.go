package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/persona/internal/persona"
	"github.com/spf13/cobra"
)

var personaCmd = &cobra.Command{
	Use:   "persona",
	Short: "Show or change the persona",
}

var personaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current persona",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, err := a.personas().Load()
		if err != nil {
			return err
		}
		printPersona(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var personaSetCmd = &cobra.Command{
	Use:   "set key=value [key=value...]",
	Short: "Update persona fields and save",
	Long: `Update persona fields and save the whole record. Known keys: ` + strings.Join(persona.Keys(), ", ") + `.
Unknown keys and empty values are ignored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		updates, err := parseAssignments(args)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		store := a.personas()
		cfg, err := store.Load()
		if err != nil {
			return err
		}
		ignored, err := cfg.Apply(updates)
		if err != nil {
			return err
		}
		if err := store.Save(cfg); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(ignored) > 0 {
			fmt.Fprintf(out, "Ignored: %s\n", strings.Join(ignored, ", "))
		}
		fmt.Fprintln(out, "Persona saved.")
		return nil
	},
}

var personaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default persona",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, err := a.personas().Reset()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Persona reset to %s.\n", cfg.Name)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(personaCmd)
	personaCmd.AddCommand(personaShowCmd)
	personaCmd.AddCommand(personaSetCmd)
	personaCmd.AddCommand(personaResetCmd)
}

func parseAssignments(args []string) (map[string]string, error) {
	updates := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		updates[strings.TrimSpace(key)] = value
	}
	return updates, nil
}

func printPersona(w io.Writer, cfg persona.Config) {
	fmt.Fprintf(w, "name: %s\n", cfg.Name)
	fmt.Fprintf(w, "role: %s\n", cfg.Role)
	fmt.Fprintf(w, "appearance: %s\n", cfg.Appearance)
	fmt.Fprintf(w, "personality: %s\n", cfg.Personality)
	fmt.Fprintf(w, "interests: %s\n", cfg.Interests)
	fmt.Fprintf(w, "abilities: %s\n", cfg.Abilities)
	fmt.Fprintf(w, "additional_info: %s\n", cfg.AdditionalInfo)
	fmt.Fprintf(w, "temperature: %.2f\n", cfg.Temperature)
	fmt.Fprintf(w, "response_length: %d\n", cfg.ResponseLength)
}
