package model

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// Segmenter picks a prior shift per row from its max clique size and
// connected component size.
type Segmenter struct {
	Threshold      float64
	CliqueEqual    Calibrator
	CliqueAbove    Calibrator
	SmallComponent Calibrator
	LargeComponent Calibrator
}

// NewSegmenter validates the configured segment priors.
func NewSegmenter(cfg config.RescaleConfig) (*Segmenter, error) {
	s := &Segmenter{Threshold: cfg.Threshold}
	for _, seg := range []struct {
		dst *Calibrator
		src config.Segment
	}{
		{&s.CliqueEqual, cfg.CliqueEqual},
		{&s.CliqueAbove, cfg.CliqueAbove},
		{&s.SmallComponent, cfg.SmallComponent},
		{&s.LargeComponent, cfg.LargeComponent},
	} {
		c, err := NewCalibrator(seg.src.TE, seg.src.TR)
		if err != nil {
			return nil, err
		}
		*seg.dst = c
	}
	return s, nil
}

// Adjust shifts one score according to its segment.
func (s *Segmenter) Adjust(score, clique, component float64) float64 {
	switch {
	case clique == s.Threshold:
		return s.CliqueEqual.Adjust(score)
	case clique > s.Threshold:
		return s.CliqueAbove.Adjust(score)
	case component < s.Threshold:
		return s.SmallComponent.Adjust(score)
	default:
		return s.LargeComponent.Adjust(score)
	}
}

func loadColumn(store *featurestore.Store, name, rawset string) ([]float64, error) {
	m, err := store.Load(name, rawset)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, m), nil
}

// Rescale re-shifts the scores of an online prediction file by clique
// segment and writes them to <predPath>.rescale, returning that path.
// Post-processed scores are first brought back to the training prior.
func Rescale(cfg *config.Config, store *featurestore.Store, predPath string, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	seg, err := NewSegmenter(cfg.Rescale)
	if err != nil {
		return "", err
	}
	calib, err := postprocessor(cfg)
	if err != nil {
		return "", err
	}

	preds, err := ReadPredictions(predPath)
	if err != nil {
		return "", err
	}
	scores := unadjust(calib, preds.Scores)

	rawset := cfg.Model.OnlineRawset
	clique, err := loadColumn(store, cfg.Rescale.CliqueFeature, rawset)
	if err != nil {
		return "", err
	}
	component, err := loadColumn(store, cfg.Rescale.ComponentFeature, rawset)
	if err != nil {
		return "", err
	}
	if len(clique) != len(scores) || len(component) != len(scores) {
		return "", errors.Kindf(errors.DataIntegrity, "%d predictions but %d clique and %d component sizes",
			len(scores), len(clique), len(component))
	}

	for i := range scores {
		scores[i] = seg.Adjust(scores[i], clique[i], component[i])
	}

	out := predPath + ".rescale"
	if err := WritePredictions(out, cfg.Model.Header, preds.IDs, scores); err != nil {
		return "", err
	}
	log.Info("rescaled predictions", zap.String("path", out), zap.Int("rows", len(scores)))

	if _, err := AnalyzeUnlabeled(scores, clique, component, seg.Threshold, log); err != nil {
		return "", err
	}
	return out, nil
}

// SplitIndexPath is the index file of a single split run.
func SplitIndexPath(cfg *config.Config, split string) (string, error) {
	switch split {
	case dataset.Train:
		return cfg.Model.TrainIndices, nil
	case dataset.Valid:
		return cfg.Model.ValidIndices, nil
	case dataset.Test:
		return cfg.Model.TestIndices, nil
	}
	return "", errors.Kindf(errors.Configuration, "unknown split %q", split)
}

// ScoreSegments re-evaluates a labelled prediction file of one split
// against its index file, as a whole and by max clique size bucket.
func ScoreSegments(cfg *config.Config, store *featurestore.Store, split, predPath string, log *zap.Logger) ([]Bucket, error) {
	if log == nil {
		log = zap.NewNop()
	}
	calib, err := postprocessor(cfg)
	if err != nil {
		return nil, err
	}
	scores, err := LoadScores(predPath)
	if err != nil {
		return nil, err
	}
	scores = unadjust(calib, scores)

	indexPath, err := SplitIndexPath(cfg, split)
	if err != nil {
		return nil, err
	}
	indices, err := dataset.LoadIndex(indexPath)
	if err != nil {
		return nil, err
	}
	rawset := cfg.Model.TrainRawset
	labels, err := dataset.LoadLabels(cfg.LabelPath(rawset))
	if err != nil {
		return nil, err
	}
	clique, err := loadColumn(store, cfg.Rescale.CliqueFeature, rawset)
	if err != nil {
		return nil, err
	}
	return scoreByClique(split, scores, labels, clique, indices, cfg.Rescale.Threshold, log)
}

func scoreByClique(split string, scores, labels, clique []float64, indices []int, threshold float64, log *zap.Logger) ([]Bucket, error) {
	if len(indices) != len(scores) {
		return nil, errors.Kindf(errors.DataIntegrity, "%s: %d indices but %d scores", split, len(indices), len(scores))
	}
	ls := make([]float64, len(indices))
	side := make([]float64, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(labels) || idx >= len(clique) {
			return nil, errors.Kindf(errors.DataIntegrity, "%s: index %d out of range", split, idx)
		}
		ls[i] = labels[idx]
		side[i] = clique[idx]
	}

	loss, err := CrossEntropy(ls, scores)
	if err != nil {
		return nil, err
	}
	log.Info("evaluate as a whole", zap.String("split", split), zap.Float64("loss", loss))
	return SegmentByFeature(ls, scores, side, threshold, log.With(zap.String("split", split)))
}
