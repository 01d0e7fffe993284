package linear

import (
	"context"
	"math"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/mathutil"
	"gonum.org/v1/gonum/mat"
)

// LogisticParams configure FitLogistic.
type LogisticParams struct {
	// C is the inverse of the L2 regularization strength
	C       float64 `json:"C" mapstructure:"c" yaml:"c"`
	Tol     float64 `json:"tol" mapstructure:"tol" yaml:"tol"`
	MaxIter int     `json:"max_iter" mapstructure:"max_iter" yaml:"max_iter"`
}

// DefaultLogisticParams returns C=1, tol=1e-4, max_iter=100.
func DefaultLogisticParams() LogisticParams {
	return LogisticParams{C: 1, Tol: 1e-4, MaxIter: 100}
}

// LassoParams configure FitLasso.
type LassoParams struct {
	Alpha     float64 `json:"alpha" mapstructure:"alpha" yaml:"alpha"`
	Normalize bool    `json:"normalize" mapstructure:"normalize" yaml:"normalize"`
	Tol       float64 `json:"tol" mapstructure:"tol" yaml:"tol"`
	MaxIter   int     `json:"max_iter" mapstructure:"max_iter" yaml:"max_iter"`
}

// DefaultLassoParams returns alpha=1, tol=1e-4, max_iter=1000.
func DefaultLassoParams() LassoParams {
	return LassoParams{Alpha: 1, Tol: 1e-4, MaxIter: 1000}
}

func checkInput(X *mat.Dense, y []float64) (int, int, error) {
	if X == nil {
		return 0, 0, errors.Kindf(errors.DataIntegrity, "no design matrix")
	}
	n, d := X.Dims()
	if n == 0 {
		return 0, 0, errors.Kindf(errors.DataIntegrity, "empty training set")
	}
	if len(y) != n {
		return 0, 0, errors.Kindf(errors.DataIntegrity, "%d rows but %d labels", n, len(y))
	}
	return n, d, nil
}

// FitLogistic minimizes the summed log loss plus ||w||^2/(2C) with Newton
// steps. The bias is not regularized.
func FitLogistic(ctx context.Context, X *mat.Dense, y []float64, params LogisticParams) (*BinaryClassifier, error) {
	n, d, err := checkInput(X, y)
	if err != nil {
		return nil, err
	}
	if params.C <= 0 || params.MaxIter < 1 || params.Tol <= 0 {
		return nil, errors.Kindf(errors.Configuration, "logistic regression needs C>0, tol>0 and max_iter>0, got %+v", params)
	}

	// column d of the augmented weights is the bias
	w := make([]float64, d+1)
	step := mat.NewVecDense(d+1, nil)

	for iter := 0; iter < params.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		grad := mat.NewVecDense(d+1, nil)
		hess := mat.NewSymDense(d+1, nil)
		for j := 0; j < d; j++ {
			grad.SetVec(j, w[j]/params.C)
			hess.SetSym(j, j, 1/params.C)
		}
		hess.SetSym(d, d, 1e-10)

		for i := 0; i < n; i++ {
			row := X.RawRowView(i)
			p := mathutil.Sigmoid(w[d] + dot(row, w[:d]))
			r := p - y[i]
			s := math.Max(p*(1-p), 1e-12)
			for a := 0; a <= d; a++ {
				xa := 1.0
				if a < d {
					xa = row[a]
				}
				grad.SetVec(a, grad.AtVec(a)+r*xa)
				for b := a; b <= d; b++ {
					xb := 1.0
					if b < d {
						xb = row[b]
					}
					hess.SetSym(a, b, hess.At(a, b)+s*xa*xb)
				}
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(hess); !ok {
			return nil, errors.Kindf(errors.Domain, "hessian is not positive definite at iteration %d", iter)
		}
		if err := chol.SolveVecTo(step, grad); err != nil {
			return nil, errors.WrapKind(errors.Domain, err, "newton step at iteration %d", iter)
		}

		var maxStep float64
		for a := range w {
			w[a] -= step.AtVec(a)
			maxStep = math.Max(maxStep, math.Abs(step.AtVec(a)))
		}
		if maxStep < params.Tol {
			break
		}
	}

	return &BinaryClassifier{
		ScorerType: LogisticRegressionType,
		Scorer:     &LogisticRegression{Bias: w[d], Coefs: w[:d]},
	}, nil
}

// FitLasso minimizes ||y - Xw - b||^2/(2n) + alpha*||w||_1 by cyclic
// coordinate descent on centered (and optionally L2 normalized) columns.
func FitLasso(ctx context.Context, X *mat.Dense, y []float64, params LassoParams) (*BinaryClassifier, error) {
	n, d, err := checkInput(X, y)
	if err != nil {
		return nil, err
	}
	if params.Alpha < 0 || params.MaxIter < 1 || params.Tol <= 0 {
		return nil, errors.Kindf(errors.Configuration, "lasso needs alpha>=0, tol>0 and max_iter>0, got %+v", params)
	}

	var ymean float64
	for _, v := range y {
		ymean += v
	}
	ymean /= float64(n)

	cols := make([][]float64, d)
	means := make([]float64, d)
	scales := make([]float64, d)
	sq := make([]float64, d)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, X)
		for _, v := range col {
			means[j] += v
		}
		means[j] /= float64(n)
		var norm float64
		for i := range col {
			col[i] -= means[j]
			norm += col[i] * col[i]
		}
		scales[j] = 1
		if params.Normalize && norm > 0 {
			scales[j] = math.Sqrt(norm)
			for i := range col {
				col[i] /= scales[j]
			}
			norm = 1
		}
		cols[j] = col
		sq[j] = norm
	}

	resid := make([]float64, n)
	for i := range resid {
		resid[i] = y[i] - ymean
	}

	w := make([]float64, d)
	penalty := params.Alpha * float64(n)
	for iter := 0; iter < params.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var maxDelta float64
		for j := 0; j < d; j++ {
			if sq[j] == 0 {
				continue
			}
			rho := dot(cols[j], resid) + w[j]*sq[j]
			next := softThreshold(rho, penalty) / sq[j]
			if delta := next - w[j]; delta != 0 {
				for i := range resid {
					resid[i] -= cols[j][i] * delta
				}
				maxDelta = math.Max(maxDelta, math.Abs(delta))
				w[j] = next
			}
		}
		if maxDelta < params.Tol {
			break
		}
	}

	intercept := ymean
	for j := range w {
		w[j] /= scales[j]
		intercept -= means[j] * w[j]
	}

	return &BinaryClassifier{
		ScorerType: LassoType,
		Scorer:     &Lasso{Intercept: intercept, Coefs: w},
	}, nil
}

func softThreshold(x, t float64) float64 {
	switch {
	case x > t:
		return x - t
	case x < -t:
		return x + t
	default:
		return 0
	}
}
