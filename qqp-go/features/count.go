package features

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// DulNum counts how often each question occurs across the train and online
// tables. A pair asking the same question twice counts it once. Rows are
// [count1, count2, max, min].
type DulNum struct {
	counts map[string]int
}

// Name implements Extractor.
func (*DulNum) Name() string { return "dul_num" }

// Fit implements Extractor.
func (e *DulNum) Fit(c *Corpus) error {
	e.counts = make(map[string]int)
	for _, pairs := range [][]dataset.QuestionPair{c.Train, c.Online} {
		for _, p := range pairs {
			q1, q2 := strings.TrimSpace(p.Question1), strings.TrimSpace(p.Question2)
			e.counts[q1]++
			if q1 != q2 {
				e.counts[q2]++
			}
		}
	}
	return nil
}

// Extract implements Extractor.
func (e *DulNum) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	if e.counts == nil {
		return nil, errors.Kindf(errors.InvariantViolation, "dul_num is not fitted")
	}
	if len(pairs) == 0 {
		return &mat.Dense{}, nil
	}
	m := mat.NewDense(len(pairs), 4, nil)
	for i, p := range pairs {
		n1 := float64(e.counts[strings.TrimSpace(p.Question1)])
		n2 := float64(e.counts[strings.TrimSpace(p.Question2)])
		m.SetRow(i, []float64{n1, n2, math.Max(n1, n2), math.Min(n1, n2)})
	}
	return m, nil
}

// ID numbers questions in order of first appearance over the train table
// then the online table; a pair scores the larger of its two numbers.
type ID struct {
	ids map[string]int
}

// Name implements Extractor.
func (*ID) Name() string { return "id" }

// Fit implements Extractor.
func (e *ID) Fit(c *Corpus) error {
	e.ids = make(map[string]int)
	see := func(q string) {
		if _, ok := e.ids[q]; !ok {
			e.ids[q] = len(e.ids)
		}
	}
	for _, pairs := range [][]dataset.QuestionPair{c.Train, c.Online} {
		for _, p := range pairs {
			see(strings.TrimSpace(p.Question1))
			see(strings.TrimSpace(p.Question2))
		}
	}
	return nil
}

// Extract implements Extractor.
func (e *ID) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	if e.ids == nil {
		return nil, errors.Kindf(errors.InvariantViolation, "id is not fitted")
	}
	for _, p := range pairs {
		for _, q := range []string{p.Question1, p.Question2} {
			if _, ok := e.ids[strings.TrimSpace(q)]; !ok {
				return nil, errors.Kindf(errors.DataIntegrity, "question %q was not seen when fitting", q)
			}
		}
	}
	return column(len(pairs), func(i int) float64 {
		a := e.ids[strings.TrimSpace(pairs[i].Question1)]
		b := e.ids[strings.TrimSpace(pairs[i].Question2)]
		return float64(max(a, b))
	}), nil
}
