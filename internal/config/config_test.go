package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != "groq" || cfg.Embedder != EmbedderTFIDF {
		t.Errorf("Unexpected provider defaults: %s/%s", cfg.Provider, cfg.Embedder)
	}
	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 4 {
		t.Errorf("Expected 1000/4 chunking, got %+v", cfg.Chunking)
	}
	if cfg.Embedding.Timeout != 30*time.Second {
		t.Errorf("Expected 30s embedding timeout, got %v", cfg.Embedding.Timeout)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.Threshold() != 0.8 {
		t.Errorf("Unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.History.BudgetTokens != 1500 {
		t.Errorf("Expected 1500 budget, got %d", cfg.History.BudgetTokens)
	}
	if cfg.Fetch.MaxBytes != 10*1024*1024 || cfg.Fetch.ConnectTimeout != 5*time.Second || cfg.Fetch.ReadTimeout != 10*time.Second {
		t.Errorf("Unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.DataDir != dir {
		t.Errorf("Expected data dir %s, got %s", dir, cfg.DataDir)
	}
	if cfg.PersonaPath() != filepath.Join(dir, "chatbot_config.json") {
		t.Errorf("Unexpected persona path %s", cfg.PersonaPath())
	}
	if cfg.UsageLogPath() != filepath.Join(dir, "token_log.txt") {
		t.Errorf("Unexpected usage log path %s", cfg.UsageLogPath())
	}
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("provider: ollama\nmodel: llama3\nfetch:\n  connect_timeout: 2s\nretrieval:\n  top_k: 3\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "ollama" || cfg.Model != "llama3" {
		t.Errorf("Expected explicit provider, got %s/%s", cfg.Provider, cfg.Model)
	}
	if cfg.Fetch.ConnectTimeout != 2*time.Second || cfg.Fetch.ReadTimeout != 10*time.Second {
		t.Errorf("Expected mixed fetch timeouts, got %+v", cfg.Fetch)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Chunking.Size != 1000 {
		t.Errorf("Unexpected merged values: %+v %+v", cfg.Retrieval, cfg.Chunking)
	}
}

func TestLoad_ExplicitZeroThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("retrieval:\n  score_threshold: 0\nembedding:\n  timeout: 5s\n"), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Retrieval.Threshold() != 0 {
		t.Errorf("Expected explicit 0 threshold, got %v", cfg.Retrieval.Threshold())
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("Expected 5s embedding timeout, got %v", cfg.Embedding.Timeout)
	}

	if err := cfg.Set("retrieval.top_k", "7"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if cfg.Retrieval.Threshold() != 0 {
		t.Errorf("Expected 0 threshold to survive Set, got %v", cfg.Retrieval.Threshold())
	}
	if err := cfg.Set("retrieval.score_threshold", "1.5"); !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	t.Run("Syntax", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		os.WriteFile(path, []byte("provider: [unclosed"), 0o644)
		if _, err := Load(path); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid, got %v", err)
		}
	})

	t.Run("Overlap", func(t *testing.T) {
		path := filepath.Join(dir, "overlap.yaml")
		os.WriteFile(path, []byte("chunking:\n  size: 10\n  overlap: 10\n"), 0o644)
		if _, err := Load(path); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid, got %v", err)
		}
	})

	t.Run("Embedder", func(t *testing.T) {
		path := filepath.Join(dir, "embedder.yaml")
		os.WriteFile(path, []byte("embedder: faiss\n"), 0o644)
		if _, err := Load(path); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid, got %v", err)
		}
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default(dir)
	cfg.Provider = "anthropic"
	cfg.Fetch.MinInterval = 3 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Provider != "anthropic" || got.Fetch.MinInterval != 3*time.Second || got.DataDir != dir {
		t.Errorf("Round trip mismatch: %+v", got)
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default(t.TempDir())

	t.Run("Get Scalar", func(t *testing.T) {
		v, err := cfg.Get("retrieval.top_k")
		if err != nil || v != "5" {
			t.Errorf("Expected 5, got %q (%v)", v, err)
		}
	})

	t.Run("Set Int", func(t *testing.T) {
		if err := cfg.Set("history.budget_tokens", "800"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if cfg.History.BudgetTokens != 800 {
			t.Errorf("Expected 800, got %d", cfg.History.BudgetTokens)
		}
	})

	t.Run("Set Duration", func(t *testing.T) {
		if err := cfg.Set("generation.timeout", "90s"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if cfg.Generation.Timeout != 90*time.Second {
			t.Errorf("Expected 90s, got %v", cfg.Generation.Timeout)
		}
	})

	t.Run("Set List", func(t *testing.T) {
		if err := cfg.Set("import.allowed_globs", "[\"*.txt\", \"*.md\"]"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if len(cfg.Import.AllowedGlobs) != 2 || cfg.Import.AllowedGlobs[1] != "*.md" {
			t.Errorf("Unexpected globs %v", cfg.Import.AllowedGlobs)
		}
	})

	t.Run("Unknown Key", func(t *testing.T) {
		if err := cfg.Set("nope", "1"); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("Expected ErrUnknownKey, got %v", err)
		}
		if _, err := cfg.Get("fetch"); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("Expected ErrUnknownKey for a section, got %v", err)
		}
	})

	t.Run("Invalid Value Leaves Config", func(t *testing.T) {
		before := cfg.Chunking
		if err := cfg.Set("chunking.overlap", "5000"); !errors.Is(err, ErrInvalid) {
			t.Errorf("Expected ErrInvalid, got %v", err)
		}
		if cfg.Chunking != before {
			t.Error("Expected config unchanged after failed Set")
		}
	})
}

func TestImportPolicyAndFetchOptions(t *testing.T) {
	cfg := Default(t.TempDir())
	if p := cfg.ImportPolicy(); len(p.AllowedFileGlobs) != 9 || p.MaxFileBytes != 10*1024*1024 {
		t.Errorf("Unexpected policy %+v", p)
	}
	if o := cfg.FetchOptions(); o.ReadTimeout != 10*time.Second || o.UserAgent == "" {
		t.Errorf("Unexpected fetch options %+v", o)
	}
}
