package linear

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFitLogisticMatchesMLE(t *testing.T) {
	// x=0 has one positive in four, x=1 has three in four
	X := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	y := []float64{1, 0, 0, 0, 1, 1, 1, 0}

	params := DefaultLogisticParams()
	params.C = 1e8
	params.Tol = 1e-10
	c, err := FitLogistic(context.Background(), X, y, params)
	require.NoError(t, err)
	require.Equal(t, LogisticRegressionType, c.ScorerType)

	lr := c.Scorer.(*LogisticRegression)
	assert.InDelta(t, -math.Log(3), lr.Bias, 1e-4)
	assert.InDelta(t, 2*math.Log(3), lr.Coefs[0], 1e-4)
	assert.InDelta(t, 0.75, c.PredictProba([]float64{1}), 1e-4)
}

func TestFitLogisticRegularizationShrinks(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	y := []float64{1, 0, 0, 0, 1, 1, 1, 0}

	loose, err := FitLogistic(context.Background(), X, y, LogisticParams{C: 100, Tol: 1e-8, MaxIter: 50})
	require.NoError(t, err)
	tight, err := FitLogistic(context.Background(), X, y, LogisticParams{C: 0.01, Tol: 1e-8, MaxIter: 50})
	require.NoError(t, err)

	assert.True(t, math.Abs(tight.Scorer.(*LogisticRegression).Coefs[0]) < math.Abs(loose.Scorer.(*LogisticRegression).Coefs[0]))
}

func TestFitLassoRecoversLine(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		0, 1,
		1, 0,
		2, 1,
		3, 0,
		4, 1,
	})
	y := []float64{0.1, 0.3, 0.5, 0.7, 0.9}

	params := DefaultLassoParams()
	params.Alpha = 0
	params.Tol = 1e-12
	c, err := FitLasso(context.Background(), X, y, params)
	require.NoError(t, err)
	l := c.Scorer.(*Lasso)
	assert.InDelta(t, 0.2, l.Coefs[0], 1e-6)
	assert.InDelta(t, 0, l.Coefs[1], 1e-6)
	assert.InDelta(t, 0.1, l.Intercept, 1e-6)

	params.Normalize = true
	c, err = FitLasso(context.Background(), X, y, params)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, c.Scorer.(*Lasso).Coefs[0], 1e-6)
}

func TestFitLassoLargeAlpha(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := []float64{0, 0, 1, 1}
	c, err := FitLasso(context.Background(), X, y, LassoParams{Alpha: 10, Tol: 1e-6, MaxIter: 100})
	require.NoError(t, err)
	l := c.Scorer.(*Lasso)
	assert.Equal(t, 0., l.Coefs[0])
	assert.InDelta(t, 0.5, l.Intercept, 1e-12)
}

func TestLassoClips(t *testing.T) {
	l := &Lasso{Intercept: 0.5, Coefs: []float64{1}}
	assert.Equal(t, 1., l.Evaluate([]float64{3}))
	assert.Equal(t, 0., l.Evaluate([]float64{-3}))
}

func TestFitRejectsBadInput(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	_, err := FitLogistic(context.Background(), X, []float64{1}, DefaultLogisticParams())
	assert.True(t, errors.Is(err, errors.DataIntegrity))

	_, err = FitLasso(context.Background(), X, []float64{0, 1}, LassoParams{Alpha: -1, Tol: 1, MaxIter: 1})
	assert.True(t, errors.Is(err, errors.Configuration))
}

func TestClassifierJSON(t *testing.T) {
	for _, c := range []*BinaryClassifier{
		{ScorerType: LogisticRegressionType, Scorer: &LogisticRegression{Bias: -1, Coefs: []float64{2, 0.5}}},
		{ScorerType: LassoType, Scorer: &Lasso{Intercept: 0.2, Coefs: []float64{0.1, 0}}},
	} {
		var buf bytes.Buffer
		require.NoError(t, c.Save(&buf))
		loaded, err := NewBinaryClassifierFromJSON(&buf)
		require.NoError(t, err)
		assert.Equal(t, c, loaded)

		X := mat.NewDense(1, 2, []float64{1, 1})
		preds, err := loaded.PredictMatrix(X)
		require.NoError(t, err)
		assert.InDelta(t, c.PredictProba([]float64{1, 1}), preds[0], 1e-12)
	}

	_, err := NewBinaryClassifierFromJSON(bytes.NewBufferString(`{"ScorerType":"svm","Scorer":{}}`))
	assert.Error(t, err)
}

func TestPredictMatrixWidth(t *testing.T) {
	c := &BinaryClassifier{ScorerType: LassoType, Scorer: &Lasso{Coefs: []float64{1}}}
	_, err := c.PredictMatrix(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, errors.DataIntegrity))
}
