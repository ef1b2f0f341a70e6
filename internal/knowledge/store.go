// Package knowledge owns the embedded chunks of the current source and
// answers similarity queries against them.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/persona/internal/chunk"
	"github.com/felixgeelhaar/persona/internal/observe"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.8
	DefaultEmbedTimeout   = 30 * time.Second
	defaultConcurrency    = 4
)

var (
	ErrIndexBuild = errors.New("index build failed")
	ErrRetrieval  = errors.New("retrieval failed")
)

// Result is one retrieved passage.
type Result struct {
	Text  string
	Score float64
	Index int
}

// snapshot is an immutable build. Readers hold a pointer to it, so a rebuild
// never exposes partial state.
type snapshot struct {
	chunks   []chunk.Chunk
	embedder Embedder
	index    *flatIndex
	builtAt  time.Time
}

// Store is the knowledge store of a session. Build is the only mutation and
// always replaces the whole store; there is no incremental add.
type Store struct {
	embedder    Embedder
	obs         *observe.Observer
	concurrency int
	timeout     time.Duration

	buildMu sync.Mutex
	mu      sync.RWMutex
	current *snapshot
}

type Option func(*Store)

// WithConcurrency bounds the number of concurrent embedding calls in Build.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTimeout bounds every single embedding call.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewStore(embedder Embedder, obs *observe.Observer, opts ...Option) *Store {
	if obs == nil {
		obs = observe.Nop()
	}
	s := &Store{
		embedder:    embedder,
		obs:         obs,
		concurrency: defaultConcurrency,
		timeout:     DefaultEmbedTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build embeds every chunk and atomically swaps in a fresh index. On failure
// the previous store stays untouched and usable.
func (s *Store) Build(ctx context.Context, chunks []chunk.Chunk) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	ctx, span := s.obs.StartSpan(ctx, "KnowledgeStore.Build")
	defer span.End()

	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks", ErrIndexBuild)
	}
	if s.embedder == nil {
		return fmt.Errorf("%w: no embedder configured", ErrIndexBuild)
	}

	texts := chunk.Texts(chunks)
	emb := s.embedder
	if f, ok := emb.(Fitter); ok {
		fitted, err := f.Fit(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIndexBuild, err)
		}
		emb = fitted
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := s.embed(gctx, emb, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.obs.Log().Error().Err(err).Int("chunks", len(chunks)).Msg("embedding failed, keeping previous store")
		return fmt.Errorf("%w: %v", ErrIndexBuild, err)
	}

	idx, err := newFlatIndex(vectors)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexBuild, err)
	}

	stored := make([]chunk.Chunk, len(chunks))
	copy(stored, chunks)
	next := &snapshot{
		chunks:   stored,
		embedder: emb,
		index:    idx,
		builtAt:  time.Now(),
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.obs.Log().Info().Int("chunks", len(chunks)).Int("dimension", idx.dim).Msg("knowledge store rebuilt")
	return nil
}

// RetrieveTopK returns the k best passages for query, best first, with ties
// in chunk order. An unbuilt store yields no results and no error.
func (s *Store) RetrieveTopK(ctx context.Context, query string, k int) ([]Result, error) {
	return s.search(ctx, query, k, nil)
}

// Retrieve is RetrieveTopK restricted to passages scoring at least threshold.
func (s *Store) Retrieve(ctx context.Context, query string, k int, threshold float64) ([]Result, error) {
	return s.search(ctx, query, k, &threshold)
}

func (s *Store) search(ctx context.Context, query string, k int, threshold *float64) ([]Result, error) {
	snap := s.snapshot()
	if snap == nil || snap.index.Len() == 0 || k <= 0 {
		return nil, nil
	}

	ctx, span := s.obs.StartSpan(ctx, "KnowledgeStore.Retrieve")
	defer span.End()

	qvec, err := s.embed(ctx, snap.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	var results []Result
	for _, hit := range snap.index.Search(qvec) {
		if threshold != nil && hit.Score < *threshold {
			continue
		}
		results = append(results, Result{
			Text:  snap.chunks[hit.ID].Text,
			Score: hit.Score,
			Index: snap.chunks[hit.ID].Index,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

func (s *Store) embed(ctx context.Context, emb Embedder, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return emb.Embed(ctx, text)
}

// Built reports whether a build has succeeded.
func (s *Store) Built() bool {
	return s.snapshot() != nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	snap := s.snapshot()
	if snap == nil {
		return 0
	}
	return len(snap.chunks)
}

func (s *Store) snapshot() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
