package credential

import (
	"fmt"
	"os"
	"strings"
)

// envVars maps provider names to the environment variable holding their key.
var envVars = map[string]string{
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// EnvVar returns the environment variable for a provider's key, or "".
func EnvVar(provider string) string {
	return envVars[strings.ToLower(provider)]
}

// KeyName is the configuration key under which a provider's key is stored.
func KeyName(provider string) string {
	return strings.ToLower(provider) + ".api_key"
}

// KV is the configuration table the vault persists to.
type KV interface {
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
}

// Vault resolves provider API keys.
type Vault struct {
	kv     KV
	cipher *Cipher
	getenv func(string) string
}

func NewVault(kv KV, c *Cipher) *Vault {
	return &Vault{kv: kv, cipher: c, getenv: os.Getenv}
}

// SetAPIKey encrypts and stores key for provider.
func (v *Vault) SetAPIKey(provider, key string) error {
	enc, err := v.cipher.Encrypt(key)
	if err != nil {
		return err
	}
	if err := v.kv.SetConfig(KeyName(provider), enc); err != nil {
		return fmt.Errorf("failed to store %s key: %w", provider, err)
	}
	return nil
}

// APIKey returns the key for provider. The environment wins over the stored
// value; "" means no key is configured.
func (v *Vault) APIKey(provider string) (string, error) {
	if name := EnvVar(provider); name != "" {
		if key := v.getenv(name); key != "" {
			return key, nil
		}
	}
	if v.kv == nil {
		return "", nil
	}
	stored, err := v.kv.GetConfig(KeyName(provider))
	if err != nil {
		return "", fmt.Errorf("failed to read %s key: %w", provider, err)
	}
	return v.cipher.Decrypt(stored)
}
