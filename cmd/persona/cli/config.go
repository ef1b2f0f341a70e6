package cli

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/persona/internal/config"
	"github.com/felixgeelhaar/persona/internal/credential"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value such as retrieval.top_k. Keys of the form
<provider>.api_key are encrypted and stored in the local database.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := args[1]

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if p, ok := apiKeyProvider(key); ok {
			if err := a.vault.SetAPIKey(p, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key saved: %s\n", key)
			return nil
		}

		if err := a.cfg.Set(key, value); err != nil {
			return err
		}
		if err := config.Save(a.cfgPath, a.cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", key)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var val string
		if p, ok := apiKeyProvider(key); ok {
			secret, err := a.vault.APIKey(p)
			if err != nil {
				return err
			}
			if secret != "" {
				val = credential.MaskSecret(secret)
			}
		} else {
			val, err = a.cfg.Get(key)
			if err != nil {
				return err
			}
		}

		if val == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "(not set)")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), val)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

// apiKeyProvider reports whether key names a provider secret.
func apiKeyProvider(key string) (string, bool) {
	p, ok := strings.CutSuffix(strings.ToLower(key), ".api_key")
	if !ok || credential.EnvVar(p) == "" {
		return "", false
	}
	return p, true
}
