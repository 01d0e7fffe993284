// Package tfidf computes inverse-frequency word weights over a corpus.
package tfidf

import (
	"github.com/qqpair/qqpair/qqp-golib/text"
)

const (
	// DefaultSmoothing is added to every word count before inverting it.
	DefaultSmoothing = 10000
	// DefaultMinCount is the minimum count for a word to carry weight.
	DefaultMinCount = 2
)

// Counter accumulates word counts.
type Counter struct {
	counts map[string]int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add counts every token once per occurrence.
func (c *Counter) Add(ts text.Tokens) {
	for _, t := range ts {
		c.counts[t]++
	}
}

// Count returns the number of occurrences of word.
func (c *Counter) Count(word string) int {
	return c.counts[word]
}

// Len returns the vocabulary size.
func (c *Counter) Len() int {
	return len(c.counts)
}

// Weights maps words to their inverse-frequency weight.
type Weights struct {
	weights map[string]float64
}

// Weights converts the counts to weights 1/(count+smoothing); words seen
// fewer than minCount times get zero.
func (c *Counter) Weights(smoothing float64, minCount int) *Weights {
	w := &Weights{weights: make(map[string]float64, len(c.counts))}
	for word, count := range c.counts {
		if count < minCount {
			w.weights[word] = 0
			continue
		}
		w.weights[word] = 1 / (float64(count) + smoothing)
	}
	return w
}

// Weight returns the weight for word, zero when unseen.
func (w *Weights) Weight(word string) float64 {
	return w.weights[word]
}

// Sum totals the weights of the tokens.
func (w *Weights) Sum(ts text.Tokens) float64 {
	var total float64
	for _, t := range ts {
		total += w.weights[t]
	}
	return total
}
