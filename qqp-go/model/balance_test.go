package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqpair/qqpair/qqp-golib/errors"
)

func labelled(pos, neg int) ([]int, []float64) {
	labels := make([]float64, pos+neg)
	indices := make([]int, pos+neg)
	for i := range labels {
		indices[i] = i
		if i < pos {
			labels[i] = 1
		}
	}
	return indices, labels
}

func positiveRate(indices []int, labels []float64) float64 {
	var pos float64
	for _, i := range indices {
		pos += labels[i]
	}
	return pos / float64(len(indices))
}

func TestBalanceInflatesMinority(t *testing.T) {
	indices, labels := labelled(100, 900)
	out, err := Balance(indices, labels, 0.5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, out, 1800)
	assert.InDelta(t, 0.5, positiveRate(out, labels), 1e-9)
}

func TestBalancePartialRound(t *testing.T) {
	indices, labels := labelled(300, 700)
	out, err := Balance(indices, labels, 0.5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, positiveRate(out, labels), 0.01)

	// the sampled round draws without replacement
	counts := make(map[int]int)
	for _, i := range out {
		counts[i]++
	}
	for i := 0; i < 300; i++ {
		assert.True(t, counts[i] == 2 || counts[i] == 3, "row %d appears %d times", i, counts[i])
	}
	for i := 300; i < 1000; i++ {
		assert.Equal(t, 1, counts[i])
	}
}

func TestBalanceDeflatesByInflatingNegatives(t *testing.T) {
	indices, labels := labelled(500, 500)
	out, err := Balance(indices, labels, 0.2, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, positiveRate(out, labels), 0.01)
}

func TestBalanceDeterministic(t *testing.T) {
	indices, labels := labelled(300, 700)
	a, err := Balance(indices, labels, 0.4, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := Balance(indices, labels, 0.4, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBalanceIdentity(t *testing.T) {
	indices := []int{3, 1, 1, 0}
	labels := []float64{1, 0, 1, 0}
	for _, rate := range []float64{AsIs, -0.5, 0, 1e-7, 1, 1 - 1e-7} {
		out, err := Balance(indices, labels, rate, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		assert.Equal(t, indices, out)
	}

	out, err := Balance(nil, labels, AsIs, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBalanceErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	indices, labels := labelled(2, 2)

	for _, rate := range []float64{-2, -1.0001, 1.0001, 1.5} {
		_, err := Balance(indices, labels, rate, rng)
		assert.True(t, errors.Is(err, errors.Configuration), "rate %v", rate)
	}

	_, err := Balance([]int{0, 9}, labels, 0.5, rng)
	assert.True(t, errors.Is(err, errors.DataIntegrity))

	_, err = Balance([]int{0}, []float64{0.5}, AsIs, rng)
	assert.True(t, errors.Is(err, errors.DataIntegrity))

	_, err = Balance(nil, labels, 0.5, rng)
	assert.True(t, errors.Is(err, errors.Configuration))

	allPos, posLabels := labelled(4, 0)
	_, err = Balance(allPos, posLabels, 0.5, rng)
	assert.True(t, errors.Is(err, errors.Configuration))
}
