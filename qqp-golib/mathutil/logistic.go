// Package mathutil holds the probability helpers shared by the learners and
// the evaluation code.
package mathutil

import "math"

// Epsilon is the clamp applied to probabilities before taking logs.
const Epsilon = 1e-15

// Sigmoid maps a margin to a probability.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// Logit maps a probability to log-odds. p is clipped to [Epsilon, 1-Epsilon].
func Logit(p float64) float64 {
	p = Clip(p, Epsilon, 1-Epsilon)
	return math.Log(p / (1 - p))
}

// Clip bounds x to [lo, hi].
func Clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// LogLoss is the binary cross entropy of one prediction, with p clipped to
// [Epsilon, 1-Epsilon].
func LogLoss(label, p float64) float64 {
	p = Clip(p, Epsilon, 1-Epsilon)
	return -label*math.Log(p) - (1-label)*math.Log(1-p)
}
