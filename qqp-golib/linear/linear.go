// Package linear holds the linear learners used as alternatives to the
// boosted trees: an L2 regularized logistic regression and the lasso.
package linear

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/mathutil"
	"gonum.org/v1/gonum/mat"
)

// Scorer maps a feature vector to a probability.
type Scorer interface {
	Evaluate(feats []float64) float64
	Width() int
}

// ScorerType names the supported scorers in serialized classifiers.
const (
	LogisticRegressionType = "logistic_regression"
	LassoType              = "lasso"
)

// BinaryClassifier wraps a scorer together with its type for persistence.
type BinaryClassifier struct {
	ScorerType string
	Scorer     Scorer
}

// PredictProba returns the probability of feat to be classified as class 1 (v.s. 0) given the model.
func (c *BinaryClassifier) PredictProba(feat []float64) float64 {
	return c.Scorer.Evaluate(feat)
}

// PredictMatrix scores every row of X.
func (c *BinaryClassifier) PredictMatrix(X mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	if cols != c.Scorer.Width() {
		return nil, errors.Kindf(errors.DataIntegrity, "design matrix has %d columns, model expects %d", cols, c.Scorer.Width())
	}
	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := range out {
		mat.Row(row, i, X)
		out[i] = c.Scorer.Evaluate(row)
	}
	return out, nil
}

// Save writes the classifier as JSON.
func (c *BinaryClassifier) Save(w io.Writer) error {
	return json.NewEncoder(w).Encode(c)
}

// NewBinaryClassifierFromJSON loads a classifer written by Save.
func NewBinaryClassifierFromJSON(r io.Reader) (*BinaryClassifier, error) {
	var intermediate struct {
		Scorer     json.RawMessage
		ScorerType string
	}

	decoder := json.NewDecoder(r)
	err := decoder.Decode(&intermediate)
	if err != nil {
		return nil, err
	}
	classifier := &BinaryClassifier{
		ScorerType: intermediate.ScorerType,
	}

	switch classifier.ScorerType {
	case LogisticRegressionType:
		var lr LogisticRegression
		if err := json.Unmarshal(intermediate.Scorer, &lr); err != nil {
			return nil, err
		}
		if len(lr.Coefs) == 0 {
			return nil, fmt.Errorf("length of coefficients is 0")
		}
		classifier.Scorer = &lr
	case LassoType:
		var l Lasso
		if err := json.Unmarshal(intermediate.Scorer, &l); err != nil {
			return nil, err
		}
		if len(l.Coefs) == 0 {
			return nil, fmt.Errorf("length of coefficients is 0")
		}
		classifier.Scorer = &l
	default:
		return nil, fmt.Errorf("unknown scorer type %q", classifier.ScorerType)
	}
	return classifier, nil
}

// LogisticRegression represents a binary logistic regression classifier
type LogisticRegression struct {
	Bias  float64
	Coefs []float64
}

// Width is the expected feature vector length.
func (l *LogisticRegression) Width() int { return len(l.Coefs) }

// Evaluate returns the probability of the feature vector to be classified as class 1 (v.s. 0) given
// the model.
func (l *LogisticRegression) Evaluate(feats []float64) float64 {
	if len(feats) != len(l.Coefs) {
		panic(fmt.Sprintf("feature length %d is not equal to length of coefs %d", len(feats), len(l.Coefs)))
	}
	return mathutil.Sigmoid(l.Bias + dot(feats, l.Coefs))
}

// Lasso is an L1 regularized least squares fit of the labels. Its raw
// output is a regression value, so Evaluate clips it to [0,1].
type Lasso struct {
	Intercept float64
	Coefs     []float64
}

// Width is the expected feature vector length.
func (l *Lasso) Width() int { return len(l.Coefs) }

// Evaluate returns the clipped regression output.
func (l *Lasso) Evaluate(feats []float64) float64 {
	if len(feats) != len(l.Coefs) {
		panic(fmt.Sprintf("feature length %d is not equal to length of coefs %d", len(feats), len(l.Coefs)))
	}
	return mathutil.Clip(l.Intercept+dot(feats, l.Coefs), 0, 1)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
