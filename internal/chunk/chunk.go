package chunk

import (
	"errors"
	"fmt"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 4
)

var ErrInvalidWindow = errors.New("invalid chunk window")

// Chunk is one window of a normalized document. Index is the position in
// source order and Offset the rune offset where the window starts.
type Chunk struct {
	Index  int
	Offset int
	Text   string
}

// Chunker splits documents with a fixed-size sliding window measured in runes.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker. size must be positive and overlap must satisfy
// 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidWindow, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a Chunker with a 1000 rune window and a 4 rune overlap.
func Default() *Chunker {
	return &Chunker{size: DefaultSize, overlap: DefaultOverlap}
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts document into consecutive windows. Every window is Size runes
// long except possibly the last; consecutive windows share Overlap runes.
// An empty document yields no chunks.
func (c *Chunker) Split(document string) []Chunk {
	runes := []rune(document)
	n := len(runes)
	if n == 0 {
		return nil
	}

	step := c.size - c.overlap
	var chunks []Chunk
	for start := 0; ; start += step {
		end := start + c.size
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Offset: start,
			Text:   string(runes[start:end]),
		})
		if end == n {
			break
		}
	}
	return chunks
}

// Join reverses Split by dropping the leading overlap of every chunk after
// the first.
func (c *Chunker) Join(chunks []Chunk) string {
	var out []rune
	for i, ch := range chunks {
		r := []rune(ch.Text)
		if i > 0 {
			r = r[c.overlap:]
		}
		out = append(out, r...)
	}
	return string(out)
}

// Texts returns the text of each chunk in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, ch := range chunks {
		out[i] = ch.Text
	}
	return out
}
