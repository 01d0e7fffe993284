package decisiontree

import (
	"context"
	"math/rand"
	"testing"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// stepData labels rows 1 when the first column is above 0.5; the second
// column is noise.
func stepData(n int, seed int64, flip bool) Dataset {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 2, nil)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		v := rng.Float64()
		x.Set(i, 0, v)
		x.Set(i, 1, rng.Float64())
		if (v > 0.5) != flip {
			labels[i] = 1
		}
	}
	return Dataset{X: x, Labels: labels}
}

func testParams() Params {
	p := DefaultParams()
	p.MaxDepth = 2
	p.NumRound = 20
	p.VerboseEval = 0
	p.NThread = 2
	return p
}

func TestTrainSeparates(t *testing.T) {
	train := stepData(200, 1, false)
	train.Name = "train"
	valid := stepData(100, 2, false)
	valid.Name = "valid"

	e, err := Train(context.Background(), testParams(), train, []Dataset{train, valid}, nil)
	require.NoError(t, err)
	require.Len(t, e.Trees, 20)
	assert.Equal(t, 2, e.FeatureSize)

	assert.True(t, e.Predict([]float64{0.1, 0.5}, e.NTreeLimit()) < 0.2)
	assert.True(t, e.Predict([]float64{0.9, 0.5}, e.NTreeLimit()) > 0.8)
	assert.True(t, e.BestScore < 0.3, "best score %v", e.BestScore)

	// the first split of the first tree must use the informative column
	require.NotEmpty(t, e.Trees[0].Nodes)
	assert.Equal(t, 0, e.Trees[0].Nodes[0].FeatureIndex)
	assert.InDelta(t, 0.5, e.Trees[0].Nodes[0].Threshold, 0.05)
}

func TestTrainEarlyStopping(t *testing.T) {
	train := stepData(200, 1, false)
	train.Name = "train"
	// validation labels disagree with training labels, so every round makes it worse
	valid := stepData(100, 2, true)
	valid.Name = "valid"

	p := testParams()
	p.EarlyStop = 3
	e, err := Train(context.Background(), p, train, []Dataset{train, valid}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, e.BestIteration)
	assert.Len(t, e.Trees, 4)
	assert.Equal(t, 1, e.NTreeLimit())
}

func TestTrainDeterministic(t *testing.T) {
	train := stepData(150, 3, false)
	p := testParams()
	p.Subsample = 0.7
	p.ColsampleByTree = 0.5
	p.Seed = 42

	a, err := Train(context.Background(), p, train, nil, nil)
	require.NoError(t, err)
	b, err := Train(context.Background(), p, train, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, -1, a.BestIteration)
}

func TestTrainRejectsBadInput(t *testing.T) {
	train := stepData(10, 1, false)
	train.Labels[3] = 2
	_, err := Train(context.Background(), testParams(), train, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.DataIntegrity))

	p := testParams()
	p.Eta = 0
	p.MaxDepth = 0
	_, err = Train(context.Background(), p, stepData(10, 1, false), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Configuration))
	assert.Equal(t, 2, err.(errors.Errors).Len())
}

func TestTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, testParams(), stepData(10, 1, false), nil, nil)
	assert.Equal(t, context.Canceled, err)
}
