package features

import (
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/text"
	"github.com/qqpair/qqpair/qqp-golib/tfidf"
)

// contentWords are the distinct lowercased whitespace tokens of q that are
// not stop words.
func contentWords(q string) text.Tokens {
	return text.Uniquify(text.ContentProcessor.Apply(text.Fields(q)))
}

// shared returns the words of a that also occur in b.
func shared(a, b text.Tokens) text.Tokens {
	set := b.Set()
	var out text.Tokens
	for _, w := range a {
		if _, ok := set[w]; ok {
			out = append(out, w)
		}
	}
	return out
}

// WordMatchShare is the share of content words that appear on both sides.
type WordMatchShare struct{}

// Name implements Extractor.
func (WordMatchShare) Name() string { return "word_match_share" }

// Fit implements Extractor.
func (WordMatchShare) Fit(*Corpus) error { return nil }

// Extract implements Extractor.
func (e WordMatchShare) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	return column(len(pairs), func(i int) float64 {
		return e.Score(pairs[i].Question1, pairs[i].Question2)
	}), nil
}

// Score is 0 when either side has no content words.
func (WordMatchShare) Score(q1, q2 string) float64 {
	w1, w2 := contentWords(q1), contentWords(q2)
	if len(w1) == 0 || len(w2) == 0 {
		return 0
	}
	return float64(len(shared(w1, w2))+len(shared(w2, w1))) / float64(len(w1)+len(w2))
}

// TFIDFWordMatchShare weighs the word match share by inverse word
// frequency over the train questions.
type TFIDFWordMatchShare struct {
	Smoothing float64
	MinCount  int

	weights *tfidf.Weights
}

// NewTFIDFWordMatchShare uses the default smoothing and minimum count.
func NewTFIDFWordMatchShare() *TFIDFWordMatchShare {
	return &TFIDFWordMatchShare{Smoothing: tfidf.DefaultSmoothing, MinCount: tfidf.DefaultMinCount}
}

// Name implements Extractor.
func (*TFIDFWordMatchShare) Name() string { return "tfidf_word_match_share" }

// Fit counts every lowercased word of both train columns.
func (e *TFIDFWordMatchShare) Fit(c *Corpus) error {
	counter := tfidf.NewCounter()
	for _, p := range c.Train {
		counter.Add(text.Lower(text.Fields(p.Question1)))
		counter.Add(text.Lower(text.Fields(p.Question2)))
	}
	e.weights = counter.Weights(e.Smoothing, e.MinCount)
	return nil
}

// Extract implements Extractor.
func (e *TFIDFWordMatchShare) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	return column(len(pairs), func(i int) float64 {
		return e.Score(pairs[i].Question1, pairs[i].Question2)
	}), nil
}

// Score is 0 when either side has no content words or the words carry
// almost no weight.
func (e *TFIDFWordMatchShare) Score(q1, q2 string) float64 {
	w1, w2 := contentWords(q1), contentWords(q2)
	if len(w1) == 0 || len(w2) == 0 {
		return 0
	}
	total := e.weights.Sum(w1) + e.weights.Sum(w2)
	if total < 1e-6 {
		return 0
	}
	return (e.weights.Sum(shared(w1, w2)) + e.weights.Sum(shared(w2, w1))) / total
}
