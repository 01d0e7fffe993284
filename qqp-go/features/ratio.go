package features

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/dataset"
)

// MatchRatio is the edit ratio of the lowercased questions, 2*M/T where M
// counts matched runes and T both lengths. Substitutions cost an insert and
// a delete. Two empty questions score 0.
type MatchRatio struct{}

// Name implements Extractor.
func (MatchRatio) Name() string { return "match_ratio" }

// Fit implements Extractor.
func (MatchRatio) Fit(*Corpus) error { return nil }

// Extract implements Extractor.
func (MatchRatio) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	return column(len(pairs), func(i int) float64 {
		a := []rune(strings.ToLower(pairs[i].Question1))
		b := []rune(strings.ToLower(pairs[i].Question2))
		return levenshtein.RatioForStrings(a, b, levenshtein.DefaultOptions)
	}), nil
}
