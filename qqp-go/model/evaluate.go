package model

import (
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/mathutil"
)

// DefaultThreshold splits the clique-size buckets.
const DefaultThreshold = 3

// CrossEntropy is the mean log loss of scores against labels, with scores
// clamped to [1e-15, 1-1e-15]. It is -1 for empty input.
func CrossEntropy(labels, scores []float64) (float64, error) {
	if len(labels) != len(scores) {
		return 0, errors.Kindf(errors.DataIntegrity, "%d labels but %d scores", len(labels), len(scores))
	}
	if len(labels) == 0 {
		return -1, nil
	}
	losses := make(stats.Float64Data, len(labels))
	for i, l := range labels {
		if l != 0 && l != 1 {
			return 0, errors.Kindf(errors.InvariantViolation, "label %v at %d is not 0 or 1", l, i)
		}
		losses[i] = mathutil.LogLoss(l, scores[i])
	}
	return losses.Mean()
}

// Bucket summarizes the rows of one side of a threshold.
type Bucket struct {
	Name      string
	Count     int
	LabelRate float64
	MeanScore float64
	Loss      float64
	// Empty buckets carry no statistics
	Empty bool
}

// SegmentByFeature splits rows into side < threshold, == threshold and
// > threshold and evaluates each bucket. Empty buckets are logged as a
// warning and reported with Empty set.
func SegmentByFeature(labels, scores, side []float64, threshold float64, log *zap.Logger) ([]Bucket, error) {
	if len(labels) != len(scores) || len(labels) != len(side) {
		return nil, errors.Kindf(errors.DataIntegrity,
			"%d labels, %d scores and %d feature values", len(labels), len(scores), len(side))
	}

	buckets := []Bucket{{Name: "<"}, {Name: "=="}, {Name: ">"}}
	groups := make([][2]stats.Float64Data, 3)
	for i, v := range side {
		b := 2
		switch {
		case v < threshold:
			b = 0
		case v == threshold:
			b = 1
		}
		groups[b][0] = append(groups[b][0], labels[i])
		groups[b][1] = append(groups[b][1], scores[i])
	}

	for i := range buckets {
		ls, ss := groups[i][0], groups[i][1]
		b := &buckets[i]
		b.Count = len(ls)
		if b.Count == 0 {
			b.Empty = true
			log.Warn("no data", zap.String("bucket", b.Name), zap.Float64("threshold", threshold))
			continue
		}
		loss, err := CrossEntropy(ls, ss)
		if err != nil {
			return nil, err
		}
		b.Loss = loss
		b.LabelRate, _ = ls.Mean()
		b.MeanScore, _ = ss.Mean()
		log.Info("bucket score", zap.String("bucket", b.Name), zap.Float64("threshold", threshold),
			zap.Int("count", b.Count), zap.Float64("loss", b.Loss),
			zap.Float64("label_rate", b.LabelRate), zap.Float64("mean_score", b.MeanScore))
	}
	return buckets, nil
}

// Share is the size and expected positive rate of one group of unlabelled rows.
type Share struct {
	Name     string
	Count    int
	Rate     float64
	MeanPred float64
}

// AnalyzeUnlabeled groups unlabelled predictions by max clique size (<, ==,
// > threshold) and, for the clique < threshold group, by component size.
func AnalyzeUnlabeled(scores, clique, component []float64, threshold float64, log *zap.Logger) ([]Share, error) {
	if len(scores) != len(clique) || len(scores) != len(component) {
		return nil, errors.Kindf(errors.DataIntegrity,
			"%d scores, %d clique sizes and %d component sizes", len(scores), len(clique), len(component))
	}
	names := []string{"clique<", "clique==", "clique>", "clique<,component<", "clique<,component>="}
	groups := make([]stats.Float64Data, len(names))
	for i, s := range scores {
		switch {
		case clique[i] > threshold:
			groups[2] = append(groups[2], s)
		case clique[i] == threshold:
			groups[1] = append(groups[1], s)
		default:
			groups[0] = append(groups[0], s)
			if component[i] < threshold {
				groups[3] = append(groups[3], s)
			} else {
				groups[4] = append(groups[4], s)
			}
		}
	}

	shares := make([]Share, len(names))
	for i, g := range groups {
		shares[i] = Share{Name: names[i], Count: len(g)}
		if len(scores) > 0 {
			shares[i].Rate = float64(len(g)) / float64(len(scores))
		}
		if len(g) == 0 {
			log.Warn("no data", zap.String("group", names[i]))
			continue
		}
		shares[i].MeanPred, _ = g.Mean()
		log.Info("prediction share", zap.String("group", names[i]), zap.Int("count", len(g)),
			zap.Float64("rate", shares[i].Rate), zap.Float64("mean_pred", shares[i].MeanPred))
	}
	return shares, nil
}
