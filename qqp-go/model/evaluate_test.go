package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/qqpair/qqpair/qqp-golib/errors"
)

func TestCrossEntropy(t *testing.T) {
	loss, err := CrossEntropy([]float64{1, 0, 1, 0}, []float64{0.9, 0.2, 0.1, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 1.0601317681, loss, 1e-9)

	loss, err = CrossEntropy([]float64{1}, []float64{1})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(1-1e-15), loss, 1e-18)

	loss, err = CrossEntropy([]float64{1}, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(1e-15), loss, 1e-9)
}

func TestCrossEntropyEdges(t *testing.T) {
	loss, err := CrossEntropy(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, -1.0, loss)

	_, err = CrossEntropy([]float64{1, 0}, []float64{0.5})
	assert.True(t, errors.Is(err, errors.DataIntegrity))

	_, err = CrossEntropy([]float64{0.5}, []float64{0.5})
	assert.True(t, errors.Is(err, errors.InvariantViolation))
}

func TestSegmentByFeature(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	labels := []float64{1, 0, 1, 1, 0}
	scores := []float64{0.8, 0.3, 0.6, 0.9, 0.5}
	clique := []float64{2, 2, 5, 4, 9}

	buckets, err := SegmentByFeature(labels, scores, clique, 3, zap.New(core))
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	assert.Equal(t, "<", buckets[0].Name)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 0.5, buckets[0].LabelRate)
	assert.InDelta(t, 0.55, buckets[0].MeanScore, 1e-12)

	assert.True(t, buckets[1].Empty)
	assert.Equal(t, 0, buckets[1].Count)
	assert.Equal(t, 1, logs.FilterMessage("no data").Len())

	assert.Equal(t, 3, buckets[2].Count)
	expect, err := CrossEntropy([]float64{1, 1, 0}, []float64{0.6, 0.9, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, expect, buckets[2].Loss, 1e-12)
}

func TestSegmentByFeatureMismatch(t *testing.T) {
	_, err := SegmentByFeature([]float64{1}, []float64{0.5}, nil, 3, zap.NewNop())
	assert.True(t, errors.Is(err, errors.DataIntegrity))
}

func TestAnalyzeUnlabeled(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	clique := []float64{2, 2, 3, 4, 1, 2}
	component := []float64{2, 5, 3, 8, 3, 1}

	shares, err := AnalyzeUnlabeled(scores, clique, component, 3, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, shares, 5)

	counts := make(map[string]int)
	for _, s := range shares {
		counts[s.Name] = s.Count
	}
	assert.Equal(t, map[string]int{
		"clique<":             4,
		"clique==":            1,
		"clique>":             1,
		"clique<,component<":  2,
		"clique<,component>=": 2,
	}, counts)
	assert.InDelta(t, 4.0/6, shares[0].Rate, 1e-12)
	assert.InDelta(t, 0.35, shares[0].MeanPred, 1e-12)
}
