package features

import (
	"math"
	"unicode/utf8"

	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/dataset"
)

// LenDiff is the absolute difference of the question lengths in characters.
type LenDiff struct{}

// Name implements Extractor.
func (LenDiff) Name() string { return "len_diff" }

// Fit implements Extractor.
func (LenDiff) Fit(*Corpus) error { return nil }

// Extract implements Extractor.
func (LenDiff) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	return column(len(pairs), func(i int) float64 {
		l1 := utf8.RuneCountInString(pairs[i].Question1)
		l2 := utf8.RuneCountInString(pairs[i].Question2)
		return math.Abs(float64(l1 - l2))
	}), nil
}

// LenDiffRate is the length of the shorter question over the longer one,
// 0 when both are empty.
type LenDiffRate struct{}

// Name implements Extractor.
func (LenDiffRate) Name() string { return "len_diff_rate" }

// Fit implements Extractor.
func (LenDiffRate) Fit(*Corpus) error { return nil }

// Extract implements Extractor.
func (LenDiffRate) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	return column(len(pairs), func(i int) float64 {
		l1 := float64(utf8.RuneCountInString(pairs[i].Question1))
		l2 := float64(utf8.RuneCountInString(pairs[i].Question2))
		if math.Max(l1, l2) < 1e-6 {
			return 0
		}
		return math.Min(l1, l2) / math.Max(l1, l2)
	}), nil
}
