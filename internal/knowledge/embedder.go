package knowledge

import "context"

// Embedder turns text into a fixed-length vector. Identical input must give
// identical output within one embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fitter is implemented by embedders that derive their vocabulary from the
// corpus being indexed. Fit must not mutate the receiver: it returns a new
// Embedder bound to corpus, used for both the chunks and later queries.
type Fitter interface {
	Fit(ctx context.Context, corpus []string) (Embedder, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
