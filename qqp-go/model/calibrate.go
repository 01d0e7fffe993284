package model

import (
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/mathutil"
)

// Calibrator shifts probabilities from a training prior TR to a target
// prior TE.
type Calibrator struct {
	TE float64
	TR float64
	a  float64
	b  float64
}

// NewCalibrator requires both priors in (0,1).
func NewCalibrator(te, tr float64) (Calibrator, error) {
	if te <= 0 || te >= 1 || tr <= 0 || tr >= 1 {
		return Calibrator{}, errors.Kindf(errors.Domain, "priors must be in (0,1), got te=%v tr=%v", te, tr)
	}
	return Calibrator{
		TE: te,
		TR: tr,
		a:  te / tr,
		b:  (1 - te) / (1 - tr),
	}, nil
}

// Adjust maps a score under the training prior to the target prior. Inputs
// are clamped to [0,1] so 0 and 1 map to themselves.
func (c Calibrator) Adjust(x float64) float64 {
	x = mathutil.Clip(x, 0, 1)
	return c.a * x / (c.a*x + c.b*(1-x))
}

// InverseAdjust undoes Adjust.
func (c Calibrator) InverseAdjust(y float64) float64 {
	y = mathutil.Clip(y, 0, 1)
	return c.b * y / (c.a + (c.b-c.a)*y)
}

// AdjustAll returns the adjusted scores.
func (c Calibrator) AdjustAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = c.Adjust(x)
	}
	return out
}

// InverseAdjustAll returns the scores with the adjustment undone.
func (c Calibrator) InverseAdjustAll(ys []float64) []float64 {
	out := make([]float64, len(ys))
	for i, y := range ys {
		out[i] = c.InverseAdjust(y)
	}
	return out
}
