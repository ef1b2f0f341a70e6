// Package config loads the application configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/persona/internal/chat"
	"github.com/felixgeelhaar/persona/internal/chunk"
	"github.com/felixgeelhaar/persona/internal/fetch"
	"github.com/felixgeelhaar/persona/internal/guard"
	"github.com/felixgeelhaar/persona/internal/history"
	"github.com/felixgeelhaar/persona/internal/knowledge"
	"github.com/felixgeelhaar/persona/internal/persona"
	"github.com/felixgeelhaar/persona/internal/security"
	"github.com/felixgeelhaar/persona/internal/usage"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// ChunkingConfig sizes the sliding window, in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig configures knowledge lookups. TopK drives the chat path;
// ScoreThreshold applies to filtered retrieval only. A nil threshold takes
// the default, so 0 can be set explicitly.
type RetrievalConfig struct {
	TopK           int      `yaml:"top_k"`
	ScoreThreshold *float64 `yaml:"score_threshold"`
}

// Threshold returns the configured minimum score for filtered retrieval.
func (r RetrievalConfig) Threshold() float64 {
	if r.ScoreThreshold == nil {
		return knowledge.DefaultScoreThreshold
	}
	return *r.ScoreThreshold
}

// EmbeddingConfig bounds calls to the embedder.
type EmbeddingConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type HistoryConfig struct {
	BudgetTokens int `yaml:"budget_tokens"`
}

type SanitizeConfig struct {
	MaxLength int `yaml:"max_length"`
}

// FetchConfig configures web imports.
type FetchConfig struct {
	MaxBytes       int64         `yaml:"max_bytes"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MinInterval    time.Duration `yaml:"min_interval"`
	UserAgent      string        `yaml:"user_agent"`
}

type GenerationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ImportConfig restricts file imports.
type ImportConfig struct {
	AllowedGlobs []string `yaml:"allowed_globs"`
	MaxFileBytes int64    `yaml:"max_file_bytes"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	CLIPath        string `yaml:"cli_path"`
	Embedder       string `yaml:"embedder"`
	EmbeddingModel string `yaml:"embedding_model"`
	DataDir        string `yaml:"data_dir"`
	PersonaFile    string `yaml:"persona_file"`
	UsageLog       string `yaml:"usage_log"`

	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	History    HistoryConfig    `yaml:"history"`
	Sanitize   SanitizeConfig   `yaml:"sanitize"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Generation GenerationConfig `yaml:"generation"`
	Import     ImportConfig     `yaml:"import"`
}

// Embedder kinds.
const (
	EmbedderTFIDF    = "tfidf"
	EmbedderProvider = "provider"
)

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) *AppConfig {
	cfg := &AppConfig{DataDir: dataDir}
	applyDefaults(cfg)
	return cfg
}

// Load reads a config from path. If the file does not exist, returns defaults
// rooted next to it.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(filepath.Dir(path)), nil
		}
		return nil, err
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(path)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath is ~/.persona/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".persona", "config.yaml"), nil
}

// Validate checks cross-field constraints after defaults are applied.
func (c *AppConfig) Validate() error {
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunking.overlap must be in [0, size)", ErrInvalid)
	}
	if t := c.Retrieval.Threshold(); t < -1 || t > 1 {
		return fmt.Errorf("%w: retrieval.score_threshold must be in [-1, 1]", ErrInvalid)
	}
	switch c.Embedder {
	case EmbedderTFIDF, EmbedderProvider:
	default:
		return fmt.Errorf("%w: unknown embedder %q", ErrInvalid, c.Embedder)
	}
	return nil
}

// PersonaPath resolves the persona file against the data directory.
func (c *AppConfig) PersonaPath() string {
	return c.resolve(c.PersonaFile)
}

// UsageLogPath resolves the usage log against the data directory.
func (c *AppConfig) UsageLogPath() string {
	return c.resolve(c.UsageLog)
}

// DatabasePath is the SQLite file inside the data directory.
func (c *AppConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "persona.db")
}

func (c *AppConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// FetchOptions converts the fetch section for the fetcher.
func (c *AppConfig) FetchOptions() fetch.Options {
	return fetch.Options{
		MaxBytes:       c.Fetch.MaxBytes,
		ConnectTimeout: c.Fetch.ConnectTimeout,
		ReadTimeout:    c.Fetch.ReadTimeout,
		MinInterval:    c.Fetch.MinInterval,
		UserAgent:      c.Fetch.UserAgent,
	}
}

// ImportPolicy converts the import section for the guard.
func (c *AppConfig) ImportPolicy() guard.Policy {
	return guard.Policy{
		AllowedFileGlobs: c.Import.AllowedGlobs,
		MaxFileBytes:     c.Import.MaxFileBytes,
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Provider == "" {
		cfg.Provider = "groq"
	}
	if cfg.Embedder == "" {
		cfg.Embedder = EmbedderTFIDF
	}
	if cfg.PersonaFile == "" {
		cfg.PersonaFile = persona.DefaultFile
	}
	if cfg.UsageLog == "" {
		cfg.UsageLog = usage.DefaultFile
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = chunk.DefaultSize
		if cfg.Chunking.Overlap == 0 {
			cfg.Chunking.Overlap = chunk.DefaultOverlap
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = knowledge.DefaultTopK
	}
	if cfg.Retrieval.ScoreThreshold == nil {
		t := knowledge.DefaultScoreThreshold
		cfg.Retrieval.ScoreThreshold = &t
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = knowledge.DefaultEmbedTimeout
	}
	if cfg.History.BudgetTokens == 0 {
		cfg.History.BudgetTokens = history.DefaultBudget
	}
	if cfg.Sanitize.MaxLength == 0 {
		cfg.Sanitize.MaxLength = security.DefaultMaxLength
	}
	if cfg.Fetch.MaxBytes == 0 {
		cfg.Fetch.MaxBytes = fetch.DefaultMaxBytes
	}
	if cfg.Fetch.ConnectTimeout == 0 {
		cfg.Fetch.ConnectTimeout = fetch.DefaultConnectTimeout
	}
	if cfg.Fetch.ReadTimeout == 0 {
		cfg.Fetch.ReadTimeout = fetch.DefaultReadTimeout
	}
	if cfg.Fetch.MinInterval == 0 {
		cfg.Fetch.MinInterval = fetch.DefaultMinInterval
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = fetch.DefaultUserAgent
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = chat.DefaultTimeout
	}
	if len(cfg.Import.AllowedGlobs) == 0 {
		cfg.Import.AllowedGlobs = append([]string(nil), guard.DefaultPolicy.AllowedFileGlobs...)
	}
	if cfg.Import.MaxFileBytes == 0 {
		cfg.Import.MaxFileBytes = guard.DefaultPolicy.MaxFileBytes
	}
}
