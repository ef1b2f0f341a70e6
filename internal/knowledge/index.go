package knowledge

import (
	"fmt"
	"math"
	"sort"
)

// Hit is one scored vector of an index search.
type Hit struct {
	ID    int
	Score float64
}

// flatIndex scores every stored vector against the query. Corpora here are a
// single imported document, so a brute-force scan is enough.
type flatIndex struct {
	dim     int
	vectors [][]float32
}

func newFlatIndex(vectors [][]float32) (*flatIndex, error) {
	if len(vectors) == 0 {
		return &flatIndex{}, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("vector 0 is empty")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return &flatIndex{dim: dim, vectors: vectors}, nil
}

func (x *flatIndex) Len() int { return len(x.vectors) }

// Search returns every vector ordered by descending cosine similarity. Equal
// scores keep insertion order.
func (x *flatIndex) Search(query []float32) []Hit {
	hits := make([]Hit, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = Hit{ID: i, Score: float64(cosineSimilarity(query, v))}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, magA, magB float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}
