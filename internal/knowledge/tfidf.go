package knowledge

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// TFIDF is an offline Fitter. Its vocabulary and IDF weights come from the
// chunks of each build, so retrieval works without any model provider.
type TFIDF struct {
	stopwords map[string]struct{}
}

func NewTFIDF() *TFIDF {
	return &TFIDF{stopwords: defaultStopwords()}
}

// Embed fails: a TFIDF must be fitted to a corpus first.
func (t *TFIDF) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("tfidf embedder not fitted")
}

// Fit builds the vocabulary and smoothed IDF values from corpus.
func (t *TFIDF) Fit(ctx context.Context, corpus []string) (Embedder, error) {
	if len(corpus) == 0 {
		return nil, errors.New("empty corpus for tfidf fit")
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range t.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return nil, errors.New("no indexable terms in corpus")
	}
	sort.Strings(terms)

	f := &fittedTFIDF{
		parent:     t,
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(corpus))
	for i, term := range terms {
		f.vocabulary[term] = i
		f.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return f, nil
}

func (t *TFIDF) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := t.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

type fittedTFIDF struct {
	parent     *TFIDF
	vocabulary map[string]int
	idf        []float64
}

// Embed returns the L2-normalised TF-IDF vector of text. Text without any
// known term maps to the zero vector.
func (f *fittedTFIDF) Embed(ctx context.Context, text string) ([]float32, error) {
	tf := make(map[int]int)
	total := 0
	for _, tok := range f.parent.tokenize(text) {
		if idx, ok := f.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}

	vec := make([]float64, len(f.idf))
	if total > 0 {
		for idx, count := range tf {
			vec[idx] = float64(count) / float64(total) * f.idf[idx]
		}
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(vec))
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out, nil
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
		"very", "can", "will", "just", "don", "should", "now", "what", "which", "who", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
