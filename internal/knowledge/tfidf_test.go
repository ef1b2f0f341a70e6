package knowledge

import (
	"context"
	"math"
	"testing"
)

func TestTFIDF_Unfitted(t *testing.T) {
	if _, err := NewTFIDF().Embed(context.Background(), "anything"); err == nil {
		t.Error("Expected error from unfitted embedder")
	}
}

func TestTFIDF_FitErrors(t *testing.T) {
	if _, err := NewTFIDF().Fit(context.Background(), nil); err == nil {
		t.Error("Expected error for empty corpus")
	}
	if _, err := NewTFIDF().Fit(context.Background(), []string{"the and of"}); err == nil {
		t.Error("Expected error for stopword-only corpus")
	}
}

func TestTFIDF_Embed(t *testing.T) {
	emb, err := NewTFIDF().Fit(context.Background(), []string{
		"Captain Nemo commands the Nautilus",
		"The Nautilus dives beneath the sea",
	})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	a, _ := emb.Embed(context.Background(), "Nemo Nautilus")
	b, _ := emb.Embed(context.Background(), "Nemo Nautilus")
	if len(a) != len(b) {
		t.Fatalf("Expected equal dimensions, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("Expected deterministic vectors")
		}
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("Expected unit vector, got squared norm %v", norm)
	}

	zero, _ := emb.Embed(context.Background(), "completely unrelated words")
	for _, v := range zero {
		if v != 0 {
			t.Fatal("Expected zero vector for out-of-vocabulary text")
		}
	}
}

func TestTFIDF_FitDoesNotMutate(t *testing.T) {
	base := NewTFIDF()
	first, _ := base.Fit(context.Background(), []string{"alpha beta"})
	base.Fit(context.Background(), []string{"gamma delta epsilon"})

	vec, err := first.Embed(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("Expected first fit to keep its 2-term vocabulary, got %d", len(vec))
	}
}
