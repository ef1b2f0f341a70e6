package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/persona/internal/chat"
	"github.com/felixgeelhaar/persona/internal/chunk"
	"github.com/felixgeelhaar/persona/internal/config"
	"github.com/felixgeelhaar/persona/internal/credential"
	"github.com/felixgeelhaar/persona/internal/event"
	"github.com/felixgeelhaar/persona/internal/fetch"
	"github.com/felixgeelhaar/persona/internal/guard"
	"github.com/felixgeelhaar/persona/internal/ingest"
	"github.com/felixgeelhaar/persona/internal/knowledge"
	"github.com/felixgeelhaar/persona/internal/observe"
	"github.com/felixgeelhaar/persona/internal/persona"
	"github.com/felixgeelhaar/persona/internal/provider"
	"github.com/felixgeelhaar/persona/internal/session"
	"github.com/felixgeelhaar/persona/internal/store"
	"github.com/felixgeelhaar/persona/internal/usage"
	"github.com/joho/godotenv"
)

// app is the wiring shared by every command: configuration, logging, the
// SQLite ledger and the key vault.
type app struct {
	obs     *observe.Observer
	cfg     *config.AppConfig
	cfgPath string
	db      *store.SQLiteStore
	vault   *credential.Vault
	bus     *event.Bus
	closers []io.Closer
}

func openApp() (*app, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	loadEnv(cfg.DataDir)

	if providerName != "" {
		cfg.Provider = providerName
	}
	if modelName != "" {
		cfg.Model = modelName
	}

	var obs *observe.Observer
	if jsonLogs {
		obs = observe.NewJSON(os.Stderr, verbose)
	} else {
		obs = observe.New(os.Stderr, verbose)
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	cipher, err := credential.NewCipher()
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		obs:     obs,
		cfg:     cfg,
		cfgPath: path,
		db:      db,
		vault:   credential.NewVault(db, cipher),
		bus:     event.NewBus(),
	}, nil
}

// loadEnv reads .env from the working directory, then from the data
// directory. Variables already set are kept.
func loadEnv(dataDir string) {
	for _, p := range []string{".env", filepath.Join(dataDir, ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		c.Close()
	}
	a.db.Close()
	a.obs.Close()
}

// generator builds the configured provider. A provider that cannot be built
// is logged and yields nil; turns then degrade to the apology reply.
func (a *app) generator() (chat.Generator, provider.Provider) {
	p, err := newProvider(a.cfg, a.vault)
	if err != nil {
		a.obs.Log().Warn().Str("provider", a.cfg.Provider).Err(err).Msg("generator unavailable")
		return nil, nil
	}
	if c, ok := p.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	return provider.Generator{Provider: p}, p
}

func (a *app) embedder(p provider.Provider) knowledge.Embedder {
	if a.cfg.Embedder == config.EmbedderProvider {
		if p != nil {
			return knowledge.EmbedderFunc(p.Embed)
		}
		a.obs.Log().Warn().Msg("no provider for embeddings, using tfidf")
	}
	return knowledge.NewTFIDF()
}

func (a *app) personas() *persona.FileStore {
	return persona.NewFileStore(a.cfg.PersonaPath(), a.obs)
}

// newSession wires a session from the configuration.
func (a *app) newSession(ctx context.Context) (*session.Session, error) {
	chunker, err := chunk.New(a.cfg.Chunking.Size, a.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	gen, p := a.generator()
	recorder := usage.Multi{usage.NewFileLog(a.cfg.UsageLogPath()), a.db}

	orch := chat.New(a.obs,
		chat.WithHistoryBudget(a.cfg.History.BudgetTokens),
		chat.WithTopK(a.cfg.Retrieval.TopK),
		chat.WithTimeout(a.cfg.Generation.Timeout),
		chat.WithRecorder(recorder),
		chat.WithBus(a.bus),
	)

	return session.New(ctx, session.Deps{
		Observer:     a.obs,
		Bus:          a.bus,
		Personas:     a.personas(),
		Orchestrator: orch,
		Generator:    gen,
		Knowledge:    knowledge.NewStore(a.embedder(p), a.obs, knowledge.WithTimeout(a.cfg.Embedding.Timeout)),
		Chunker:      chunker,
		Ingestor:     ingest.New(a.obs, a.cfg.Sanitize.MaxLength),
		Fetcher:      fetch.New(a.cfg.FetchOptions(), a.obs),
		Guard:        guard.New(a.cfg.ImportPolicy()),
		Ledger:       a.db,
	})
}
