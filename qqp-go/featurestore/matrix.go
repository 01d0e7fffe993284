package featurestore

import (
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/mathutil"
)

// Hstack concatenates matrices column-wise. All must have the same rows.
func Hstack(ms ...*mat.Dense) (*mat.Dense, error) {
	if len(ms) == 0 {
		return nil, errors.Kindf(errors.Configuration, "no matrices to stack")
	}
	rows, _ := ms[0].Dims()
	var cols int
	for i, m := range ms {
		r, c := m.Dims()
		if r != rows {
			return nil, errors.Kindf(errors.DataIntegrity,
				"matrix %d has %d rows, expected %d", i, r, rows)
		}
		cols += c
	}

	out := mat.NewDense(rows, cols, nil)
	var offset int
	for _, m := range ms {
		_, c := m.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(m)
		offset += c
	}
	return out, nil
}

// SampleRows gathers the given rows, in order and with repetition.
func SampleRows(m *mat.Dense, indices []int) (*mat.Dense, error) {
	if len(indices) == 0 {
		return nil, errors.Kindf(errors.DataIntegrity, "no rows selected")
	}
	rows, cols := m.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		if idx < 0 || idx >= rows {
			return nil, errors.Kindf(errors.DataIntegrity,
				"row index %d out of range for %d rows", idx, rows)
		}
		out.SetRow(i, m.RawRowView(idx))
	}
	return out, nil
}

// SplitParts cuts m into n consecutive row blocks of near equal size, the
// first blocks taking the remainder.
func SplitParts(m *mat.Dense, n int) ([]*mat.Dense, error) {
	rows, cols := m.Dims()
	if n < 1 || n > rows {
		return nil, errors.Kindf(errors.Configuration, "cannot split %d rows into %d parts", rows, n)
	}
	parts := make([]*mat.Dense, 0, n)
	start := 0
	for p := 0; p < n; p++ {
		size := rows / n
		if p < rows%n {
			size++
		}
		part := mat.NewDense(size, cols, nil)
		part.Copy(m.Slice(start, start+size, 0, cols))
		parts = append(parts, part)
		start += size
	}
	return parts, nil
}

// LogitClip maps every entry x to logit(clip(x, eps, 1-eps)), in place.
func LogitClip(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 {
		return mathutil.Logit(v)
	}, m)
}
