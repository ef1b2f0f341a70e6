// Package tokens estimates model token counts without a vocabulary file.
package tokens

import (
	"strings"
	"unicode/utf8"
)

// RunesPerToken is the average token width assumed by Estimator.
const RunesPerToken = 4

// Counter estimates how many model tokens a text occupies.
type Counter interface {
	Count(text string) int
}

// Estimator counts ceil(runes/RunesPerToken) for every whitespace-separated
// word. It is deterministic and monotonic in the text length.
type Estimator struct{}

func (Estimator) Count(text string) int {
	total := 0
	for _, w := range strings.Fields(text) {
		n := utf8.RuneCountInString(w)
		total += (n + RunesPerToken - 1) / RunesPerToken
	}
	return total
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(string) int

func (f CounterFunc) Count(text string) int { return f(text) }
