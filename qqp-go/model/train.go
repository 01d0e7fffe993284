package model

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// TrainResult holds the losses of a single split run.
type TrainResult struct {
	Train float64
	Valid float64
	Test  float64
	// Buckets are the clique-size scores per split
	Buckets map[string][]Bucket
	Online  string
}

type splitData struct {
	features *mat.Dense
	labels   []float64
	clique   []float64
	// external is set when the split comes from another rawset than train
	external bool
}

func (t *Trainer) loadSplit(rawset string, base *splitData) (*splitData, error) {
	if base != nil && rawset == t.cfg.Model.TrainRawset {
		return base, nil
	}
	features, err := t.store.LoadAll(rawset)
	if err != nil {
		return nil, err
	}
	labels, err := dataset.LoadLabels(t.cfg.LabelPath(rawset))
	if err != nil {
		return nil, err
	}
	clique, err := loadColumn(t.store, t.cfg.Rescale.CliqueFeature, rawset)
	if err != nil {
		return nil, err
	}
	return &splitData{features: features, labels: labels, clique: clique, external: base != nil}, nil
}

// Train fits one model on the configured train/valid/test indices, scores
// all three splits, records their losses in score.txt, writes fault reports
// for the test split and optionally scores the online set.
func (t *Trainer) Train(ctx context.Context) (*TrainResult, error) {
	defer t.durations.Flush(t.log)
	cfg := t.cfg
	if err := t.prepareOut(); err != nil {
		return nil, err
	}
	cfg.LogParams(t.log)

	base, err := t.loadSplit(cfg.Model.TrainRawset, nil)
	if err != nil {
		return nil, err
	}

	splits := []struct {
		name   string
		rawset string
		rate   float64
	}{
		{dataset.Train, cfg.Model.TrainRawset, cfg.Model.TrainPosRate},
		{dataset.Valid, cfg.Model.ValidRawset, cfg.Model.ValidPosRate},
		{dataset.Test, cfg.Model.TestRawset, cfg.Model.TestPosRate},
	}
	designs := make(map[string]Design, len(splits))
	data := make(map[string]*splitData, len(splits))
	for _, s := range splits {
		sd, err := t.loadSplit(s.rawset, base)
		if err != nil {
			return nil, err
		}
		rate := s.rate
		if s.name == dataset.Test && sd.external {
			rate = AsIs
		}
		indexPath, err := SplitIndexPath(cfg, s.name)
		if err != nil {
			return nil, err
		}
		indices, err := dataset.LoadIndex(indexPath)
		if err != nil {
			return nil, err
		}
		d, err := t.design(s.name, sd.features, sd.labels, indices, rate)
		if err != nil {
			return nil, err
		}
		designs[s.name] = d
		data[s.name] = sd
	}

	stop := t.durations.Start("train")
	p, err := t.Learner.Fit(ctx, designs[dataset.Train], designs[dataset.Valid])
	if err != nil {
		return nil, errors.Wrapf(err, "error training")
	}
	stop()

	if err := p.Save(fileutil.Join(cfg.ModelDir(), ModelName(cfg.Model.Type, 0, -1))); err != nil {
		return nil, err
	}
	if err := cfg.Snapshot(); err != nil {
		return nil, err
	}

	res := &TrainResult{Buckets: make(map[string][]Bucket)}
	losses := map[string]*float64{dataset.Train: &res.Train, dataset.Valid: &res.Valid, dataset.Test: &res.Test}
	var testScores []float64
	for _, s := range splits {
		d := designs[s.name]
		scores, err := t.predict(p, d)
		if err != nil {
			return nil, err
		}

		ids := RangeIDs(len(scores))
		if data[s.name].external {
			all, err := dataset.LoadStrings(cfg.IDPath(s.rawset))
			if err != nil {
				return nil, err
			}
			if ids, err = pick(all, d.Indices); err != nil {
				return nil, err
			}
		}
		path := fileutil.Join(cfg.PredDir(), fmt.Sprintf("%s.%s.pred", s.name, s.rawset))
		if err := WritePredictions(path, cfg.Model.Header, ids, scores); err != nil {
			return nil, err
		}

		if *losses[s.name], err = t.loss(s.name, d.Labels, scores); err != nil {
			return nil, err
		}
		buckets, err := scoreByClique(s.name, unadjust(t.calib, scores), data[s.name].labels,
			data[s.name].clique, d.Indices, cfg.Rescale.Threshold, t.log)
		if err != nil {
			return nil, err
		}
		res.Buckets[s.name] = buckets
		if s.name == dataset.Test {
			testScores = scores
		}
	}

	if err := t.writeScores("score.txt", []string{
		fmt.Sprintf("score_train\t%v", res.Train),
		fmt.Sprintf("score_valid\t%v", res.Valid),
		fmt.Sprintf("score_test\t%v", res.Test),
	}); err != nil {
		return nil, err
	}
	if data[dataset.Test].external {
		t.log.Info("skipping fault files, test rows are not in the raw train table")
	} else if err := t.writeFaults(testScores, designs[dataset.Test].Indices); err != nil {
		return nil, err
	}

	if cfg.Model.Online {
		if res.Online, _, err = predictOnline(ctx, cfg, t.store, p, onlinePredName(cfg, -1), t.log); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func pick(ids []string, indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(ids) {
			return nil, errors.Kindf(errors.DataIntegrity, "index %d out of range for %d ids", idx, len(ids))
		}
		out[i] = ids[idx]
	}
	return out, nil
}
