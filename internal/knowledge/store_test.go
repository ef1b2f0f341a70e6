package knowledge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/persona/internal/chunk"
)

// keywordEmbedder maps text onto fixed keyword axes.
type keywordEmbedder struct {
	axes []string
	fail string
}

func (k keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if k.fail != "" && strings.Contains(text, k.fail) {
		return nil, errors.New("embedding service unavailable")
	}
	vec := make([]float32, len(k.axes))
	lower := strings.ToLower(text)
	for i, axis := range k.axes {
		vec[i] = float32(strings.Count(lower, axis))
	}
	return vec, nil
}

func chunksOf(texts ...string) []chunk.Chunk {
	out := make([]chunk.Chunk, len(texts))
	for i, t := range texts {
		out[i] = chunk.Chunk{Index: i, Text: t}
	}
	return out
}

func TestStore_Unbuilt(t *testing.T) {
	s := NewStore(keywordEmbedder{axes: []string{"sky"}}, nil)

	res, err := s.RetrieveTopK(context.Background(), "sky", 5)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(res) != 0 {
		t.Errorf("Expected empty result, got %d", len(res))
	}
	res, err = s.Retrieve(context.Background(), "sky", 5, DefaultScoreThreshold)
	if err != nil || len(res) != 0 {
		t.Errorf("Expected empty filtered result, got %v, %v", res, err)
	}
	if s.Built() || s.Len() != 0 {
		t.Error("Expected store to report unbuilt")
	}
}

func TestStore_TopKOrdering(t *testing.T) {
	s := NewStore(keywordEmbedder{axes: []string{"sky", "grass"}}, nil)
	err := s.Build(context.Background(), chunksOf(
		"grass grass",
		"sky and grass",
		"sky sky sky",
		"sky sky sky",
	))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	res, err := s.RetrieveTopK(context.Background(), "sky", 3)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(res))
	}
	if res[0].Index != 2 || res[1].Index != 3 {
		t.Errorf("Expected tied chunks in source order 2,3, got %d,%d", res[0].Index, res[1].Index)
	}
	if res[2].Index != 1 {
		t.Errorf("Expected mixed chunk third, got %d", res[2].Index)
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score > res[i-1].Score {
			t.Errorf("Results not ordered best first: %v", res)
		}
	}
}

func TestStore_ThresholdFilter(t *testing.T) {
	s := NewStore(keywordEmbedder{axes: []string{"sky", "grass"}}, nil)
	s.Build(context.Background(), chunksOf("sky", "sky grass", "grass"))

	res, err := s.Retrieve(context.Background(), "sky", 5, DefaultScoreThreshold)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(res) != 1 || res[0].Text != "sky" {
		t.Errorf("Expected only the exact match above 0.8, got %+v", res)
	}

	all, _ := s.Retrieve(context.Background(), "sky", 5, 0)
	if len(all) != 3 {
		t.Errorf("Expected 3 results at threshold 0, got %d", len(all))
	}
}

func TestStore_FailedBuildKeepsPrevious(t *testing.T) {
	emb := keywordEmbedder{axes: []string{"sky"}, fail: "poison"}
	s := NewStore(emb, nil)

	if err := s.Build(context.Background(), chunksOf("the sky")); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	err := s.Build(context.Background(), chunksOf("new sky", "poison pill"))
	if !errors.Is(err, ErrIndexBuild) {
		t.Fatalf("Expected ErrIndexBuild, got %v", err)
	}

	if s.Len() != 1 {
		t.Errorf("Expected previous store with 1 chunk, got %d", s.Len())
	}
	res, _ := s.RetrieveTopK(context.Background(), "sky", 5)
	if len(res) != 1 || res[0].Text != "the sky" {
		t.Errorf("Expected previous content, got %+v", res)
	}
}

func TestStore_BuildReplacesEntirely(t *testing.T) {
	s := NewStore(keywordEmbedder{axes: []string{"sky", "sea"}}, nil)
	s.Build(context.Background(), chunksOf("sky one", "sky two"))
	s.Build(context.Background(), chunksOf("sea"))

	if s.Len() != 1 {
		t.Fatalf("Expected 1 chunk after rebuild, got %d", s.Len())
	}
	res, _ := s.RetrieveTopK(context.Background(), "sky", 5)
	for _, r := range res {
		if strings.Contains(r.Text, "sky") {
			t.Errorf("Expected old chunks to be discarded, got %q", r.Text)
		}
	}
}

func TestStore_BuildErrors(t *testing.T) {
	s := NewStore(keywordEmbedder{axes: []string{"a"}}, nil)
	if err := s.Build(context.Background(), nil); !errors.Is(err, ErrIndexBuild) {
		t.Errorf("Expected ErrIndexBuild for empty input, got %v", err)
	}

	mismatch := EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		return make([]float32, len(text)), nil
	})
	s = NewStore(mismatch, nil)
	if err := s.Build(context.Background(), chunksOf("ab", "abc")); !errors.Is(err, ErrIndexBuild) {
		t.Errorf("Expected ErrIndexBuild for mixed dimensions, got %v", err)
	}

	s = NewStore(nil, nil)
	if err := s.Build(context.Background(), chunksOf("x")); !errors.Is(err, ErrIndexBuild) {
		t.Errorf("Expected ErrIndexBuild without embedder, got %v", err)
	}
}

func TestStore_RetrievalError(t *testing.T) {
	s := NewStore(keywordEmbedder{axes: []string{"sky"}, fail: "poison"}, nil)
	s.Build(context.Background(), chunksOf("sky"))

	_, err := s.RetrieveTopK(context.Background(), "poison query", 5)
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("Expected ErrRetrieval, got %v", err)
	}
}

func TestStore_TFIDFScenario(t *testing.T) {
	s := NewStore(NewTFIDF(), nil)
	doc := "The sky is blue. The grass is green."
	if err := s.Build(context.Background(), chunk.Default().Split(doc)); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	res, err := s.RetrieveTopK(context.Background(), "What color is the sky?", DefaultTopK)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(res))
	}
	if res[0].Text != doc {
		t.Errorf("Expected the document chunk, got %q", res[0].Text)
	}
	if res[0].Score <= 0 {
		t.Errorf("Expected positive score, got %v", res[0].Score)
	}
}

func TestStore_ConcurrentReadsDuringRebuild(t *testing.T) {
	s := NewStore(keywordEmbedder{axes: []string{"sky", "sea"}}, nil, WithConcurrency(2))
	s.Build(context.Background(), chunksOf("sky", "sea"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Build(context.Background(), chunksOf("sky a", "sea b", "sky c"))
		}()
		go func() {
			defer wg.Done()
			res, err := s.RetrieveTopK(context.Background(), "sky", 5)
			if err != nil {
				t.Errorf("Retrieve failed: %v", err)
			}
			if n := len(res); n != 2 && n != 3 {
				t.Errorf("Expected a complete snapshot of 2 or 3 chunks, got %d", n)
			}
		}()
	}
	wg.Wait()
}

func TestStore_EmbedTimeout(t *testing.T) {
	stall := EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "stall") {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []float32{1, 0}, nil
	})
	s := NewStore(stall, nil, WithTimeout(50*time.Millisecond))

	if err := s.Build(context.Background(), chunksOf("sky")); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	start := time.Now()
	err := s.Build(context.Background(), chunksOf("stall here"))
	if !errors.Is(err, ErrIndexBuild) {
		t.Errorf("Expected ErrIndexBuild, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Expected previous store kept, got %d chunks", s.Len())
	}

	if _, err := s.RetrieveTopK(context.Background(), "stall query", 5); !errors.Is(err, ErrRetrieval) {
		t.Errorf("Expected ErrRetrieval, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Expected embedding calls bounded by the timeout, took %v", elapsed)
	}
}

func TestWithTimeout_IgnoresNonPositive(t *testing.T) {
	s := NewStore(nil, nil, WithTimeout(0))
	if s.timeout != DefaultEmbedTimeout {
		t.Errorf("Expected default timeout %v, got %v", DefaultEmbedTimeout, s.timeout)
	}
}
