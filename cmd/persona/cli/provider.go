package cli

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/persona/internal/config"
	"github.com/felixgeelhaar/persona/internal/credential"
	"github.com/felixgeelhaar/persona/internal/provider"
)

// newProvider builds the provider named in cfg. Hosted providers need an
// API key from the environment or the vault.
func newProvider(cfg *config.AppConfig, v *credential.Vault) (provider.Provider, error) {
	name := strings.ToLower(cfg.Provider)

	var key string
	switch name {
	case "groq", "openai", "gemini", "anthropic":
		k, err := v.APIKey(name)
		if err != nil {
			return nil, err
		}
		if k == "" {
			return nil, fmt.Errorf("no API key for %s: set %s or run 'persona config set %s <key>'",
				name, credential.EnvVar(name), credential.KeyName(name))
		}
		key = k
	}

	switch name {
	case "groq":
		p, err := provider.NewGroqProvider(key, cfg.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		p, err := provider.NewOpenAIProvider(key, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		if cfg.EmbeddingModel != "" {
			p.SetEmbeddingModel(cfg.EmbeddingModel)
		}
		return p, nil
	case "gemini":
		p, err := provider.NewGeminiProvider(key, cfg.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "anthropic":
		p, err := provider.NewAnthropicProvider(key, cfg.Model)
		if err != nil {
			return nil, err
		}
		if cfg.BaseURL != "" {
			p.SetBaseURL(cfg.BaseURL)
		}
		return p, nil
	case "ollama":
		p, err := provider.NewOllamaProvider(cfg.Model, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "cli":
		return detectCLIProvider(cfg.CLIPath)
	case "stub":
		return provider.NewStubProvider(), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func detectCLIProvider(cliPath string) (provider.Provider, error) {
	// 1. Check config first
	if cliPath != "" {
		return provider.NewCLIProvider(cliPath, []string{})
	}

	// 2. Auto-detect common tools
	tools := []string{"claude", "codex", "gemini", "llm"}
	for _, t := range tools {
		path, err := exec.LookPath(t)
		if err == nil {
			return provider.NewCLIProvider(path, []string{})
		}
	}

	return nil, fmt.Errorf("no local CLI agents detected (tried %s)", strings.Join(tools, ", "))
}
