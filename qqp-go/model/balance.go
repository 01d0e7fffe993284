package model

import (
	"math/rand"

	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// AsIs is the positive rate that leaves a split unbalanced.
const AsIs = -1.0

const rateTolerance = 1e-6

// Balance resamples indices so that the share of rows labelled 1 is rate.
// The majority class relative to rate is kept whole and the other class is
// repeated in full, then topped up by sampling without replacement, until
// the ratio is met. Rates below 1e-6, AsIs among them, and rates within
// 1e-6 of 1 return indices unchanged.
func Balance(indices []int, labels []float64, rate float64, rng *rand.Rand) ([]int, error) {
	if rate < -1 || rate > 1 {
		return nil, errors.Kindf(errors.Configuration, "positive rate %v is outside [-1,1]", rate)
	}

	var pos, neg []int
	for _, idx := range indices {
		if idx < 0 || idx >= len(labels) {
			return nil, errors.Kindf(errors.DataIntegrity, "index %d out of range for %d labels", idx, len(labels))
		}
		switch labels[idx] {
		case 1:
			pos = append(pos, idx)
		case 0:
			neg = append(neg, idx)
		default:
			return nil, errors.Kindf(errors.DataIntegrity, "label %v at index %d is not 0 or 1", labels[idx], idx)
		}
	}

	if rate < rateTolerance || rate > 1-rateTolerance {
		return append([]int(nil), indices...), nil
	}
	if len(indices) == 0 {
		return nil, errors.Kindf(errors.Configuration, "no rows to balance")
	}

	origin := float64(len(pos)) / float64(len(indices))
	if origin < rate {
		pos, neg = neg, pos
		origin = 1 - origin
		rate = 1 - rate
	}
	if len(neg) == 0 {
		return nil, errors.Kindf(errors.Configuration,
			"cannot reach positive rate: the class to inflate has no rows")
	}

	k := (1 - rate) * origin / rate / (1 - origin)
	out := make([]int, 0, len(pos)+int(k*float64(len(neg)))+1)
	out = append(out, pos...)
	for ; k > rateTolerance; k-- {
		if k > 1-rateTolerance {
			out = append(out, neg...)
			continue
		}
		n := int(k * float64(len(neg)))
		for _, i := range rng.Perm(len(neg))[:n] {
			out = append(out, neg[i])
		}
	}
	return out, nil
}
