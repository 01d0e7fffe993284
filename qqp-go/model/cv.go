package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// FoldScore is the loss of one fold model on its own splits.
type FoldScore struct {
	Fold  int
	Train float64
	Valid float64
	Test  float64
}

// CVResult summarizes a cross validation run.
type CVResult struct {
	Folds []FoldScore
	// Valid and Test are the losses over all folds, post-processed when enabled
	Valid float64
	Test  float64
	// RawValid and RawTest are the same losses with post-processing reversed
	RawValid float64
	RawTest  float64
	// Online is the merged online prediction file, empty when online scoring is off
	Online   string
	Rescaled string
}

type accumulator struct {
	scores  []float64
	labels  []float64
	indices []int
}

func (a *accumulator) add(d Design, scores []float64) {
	a.scores = append(a.scores, scores...)
	a.labels = append(a.labels, d.Labels...)
	a.indices = append(a.indices, d.Indices...)
}

// CrossValidate trains one model per fold of the configured partition,
// evaluates each fold and the concatenation of all folds, writes fault
// reports, and when online scoring is on, scores the online set with every
// fold model and merges the results. The output root must not exist.
func (t *Trainer) CrossValidate(ctx context.Context) (*CVResult, error) {
	defer t.durations.Flush(t.log)
	cfg := t.cfg
	if err := t.prepareOut(); err != nil {
		return nil, err
	}
	t.log.Info("cross validation", zap.String("cv_tag", cfg.Model.CVTag), zap.Int("cv_num", cfg.Model.CVNum))
	cfg.LogParams(t.log)

	rawset := cfg.Model.OfflineRawset
	features, err := t.store.LoadAll(rawset)
	if err != nil {
		return nil, err
	}
	labels, err := dataset.LoadLabels(cfg.LabelPath(rawset))
	if err != nil {
		return nil, err
	}
	if rows, _ := features.Dims(); rows != len(labels) {
		return nil, errors.Kindf(errors.DataIntegrity, "%d feature rows but %d labels for %s", rows, len(labels), rawset)
	}

	var train, valid, test accumulator
	res := &CVResult{}
	predictors := make([]Predictor, 0, cfg.Model.CVNum)
	for fold := 0; fold < cfg.Model.CVNum; fold++ {
		done := t.durations.Start(fmt.Sprintf("fold %d", fold))
		t.log.Info("cross validation fold begin", zap.Int("fold", fold))

		splits := make(map[string]Design, 3)
		for _, s := range []struct {
			name string
			rate float64
		}{
			{dataset.Train, cfg.Model.TrainPosRate},
			{dataset.Valid, cfg.Model.ValidPosRate},
			{dataset.Test, cfg.Model.TestPosRate},
		} {
			indices, err := dataset.LoadIndex(cfg.FoldIndexPath(fold, s.name))
			if err != nil {
				return nil, err
			}
			d, err := t.design(s.name, features, labels, indices, s.rate)
			if err != nil {
				return nil, err
			}
			splits[s.name] = d
		}

		p, err := t.Learner.Fit(ctx, splits[dataset.Train], splits[dataset.Valid])
		if err != nil {
			return nil, errors.Wrapf(err, "error training fold %d", fold)
		}
		rec := p.Record()
		t.log.Info("trained fold", zap.Int("fold", fold), zap.Int("best_iteration", rec.BestIteration))

		modelPath := fileutil.Join(cfg.ModelDir(), ModelName(cfg.Model.Type, cfg.Model.CVNum, fold))
		if err := p.Save(modelPath); err != nil {
			return nil, err
		}
		predictors = append(predictors, p)

		score := FoldScore{Fold: fold}
		scored := make(map[string][]float64, 3)
		for name, d := range splits {
			if scored[name], err = t.predict(p, d); err != nil {
				return nil, err
			}
		}
		if score.Train, err = t.loss(fmt.Sprintf("fold %d train", fold), splits[dataset.Train].Labels, scored[dataset.Train]); err != nil {
			return nil, err
		}
		if score.Valid, err = t.loss(fmt.Sprintf("fold %d valid", fold), splits[dataset.Valid].Labels, scored[dataset.Valid]); err != nil {
			return nil, err
		}
		if score.Test, err = t.loss(fmt.Sprintf("fold %d test", fold), splits[dataset.Test].Labels, scored[dataset.Test]); err != nil {
			return nil, err
		}
		res.Folds = append(res.Folds, score)

		if IsLinear(cfg.Model.Type) {
			train.add(splits[dataset.Train], scored[dataset.Train])
		}
		valid.add(splits[dataset.Valid], scored[dataset.Valid])
		test.add(splits[dataset.Test], scored[dataset.Test])

		t.log.Info("cross validation fold done", zap.Int("fold", fold),
			zap.Float64("valid_score", score.Valid), zap.Float64("test_score", score.Test))
		done()
	}

	if err := cfg.Snapshot(); err != nil {
		return nil, err
	}

	parts := []struct {
		split string
		acc   *accumulator
	}{{dataset.Valid, &valid}, {dataset.Test, &test}}
	if IsLinear(cfg.Model.Type) {
		parts = append([]struct {
			split string
			acc   *accumulator
		}{{dataset.Train, &train}}, parts...)
	}
	for _, part := range parts {
		path := fileutil.Join(cfg.PredDir(), fmt.Sprintf("cv_n%d_%s.%s.pred", cfg.Model.CVNum, part.split, rawset))
		if err := WritePredictions(path, cfg.Model.Header, RangeIDs(len(part.acc.scores)), part.acc.scores); err != nil {
			return nil, err
		}
	}

	if res.Valid, err = t.loss("all valid", valid.labels, valid.scores); err != nil {
		return nil, err
	}
	if res.Test, err = t.loss("all test", test.labels, test.scores); err != nil {
		return nil, err
	}

	if err := t.writeFaults(test.scores, test.indices); err != nil {
		return nil, err
	}

	if res.RawValid, err = CrossEntropy(valid.labels, unadjust(t.calib, valid.scores)); err != nil {
		return nil, err
	}
	if res.RawTest, err = CrossEntropy(test.labels, unadjust(t.calib, test.scores)); err != nil {
		return nil, err
	}
	t.log.Info("evaluate for all (without postprocess)",
		zap.Float64("valid_score_all", res.RawValid), zap.Float64("test_score_all", res.RawTest))

	if err := t.writeScores("cv_score.txt", res.scoreLines()); err != nil {
		return nil, err
	}

	if !cfg.Model.Online {
		return res, nil
	}
	if res.Online, res.Rescaled, err = t.predictOnlineCV(ctx, predictors); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *CVResult) scoreLines() []string {
	var lines []string
	for _, f := range r.Folds {
		lines = append(lines, fmt.Sprintf("fold_%d\t%v\t%v\t%v", f.Fold, f.Train, f.Valid, f.Test))
	}
	return append(lines,
		fmt.Sprintf("score_valid\t%v", r.Valid),
		fmt.Sprintf("score_test\t%v", r.Test),
		fmt.Sprintf("score_valid_raw\t%v", r.RawValid),
		fmt.Sprintf("score_test_raw\t%v", r.RawTest))
}

func (t *Trainer) writeScores(name string, lines []string) error {
	return dataset.SaveStrings(fileutil.Join(t.cfg.ScoreDir(), name), lines)
}

// predictOnlineCV scores every shard of the online set with each fold
// model, writes one prediction file per fold and their logit merge, and
// rescales the merge by clique segment.
func (t *Trainer) predictOnlineCV(ctx context.Context, predictors []Predictor) (string, string, error) {
	cfg := t.cfg
	online := cfg.Model.OnlineRawset
	source := &StoreSource{Store: t.store, Rawset: online, Logit: t.logitFeatures()}

	perFold, err := PredictParts(ctx, predictors, source, cfg.Model.NPart, cfg.Model.Parallel, t.log)
	if err != nil {
		return "", "", err
	}
	ids, err := dataset.LoadStrings(cfg.IDPath(online))
	if err != nil {
		return "", "", err
	}

	var merged [][]float64
	for fold, scores := range perFold {
		scores = adjust(t.calib, scores)
		path := fileutil.Join(cfg.PredDir(), fmt.Sprintf("cv_n%d_f%d_online.%s.pred", cfg.Model.CVNum, fold, online))
		if err := WritePredictions(path, cfg.Model.Header, ids, scores); err != nil {
			return "", "", err
		}
		back, err := ReadPredictions(path)
		if err != nil {
			return "", "", err
		}
		merged = append(merged, back.Scores)
	}

	scores, err := MergeLogit(merged)
	if err != nil {
		return "", "", err
	}
	mergedPath := fileutil.Join(cfg.PredDir(), fmt.Sprintf("cv_n%d_online.%s.pred", cfg.Model.CVNum, online))
	if err := WritePredictions(mergedPath, cfg.Model.Header, ids, scores); err != nil {
		return "", "", err
	}
	t.log.Info("cv merge done", zap.String("path", mergedPath))

	rescaled, err := Rescale(cfg, t.store, mergedPath, t.log)
	if err != nil {
		return "", "", err
	}
	return mergedPath, rescaled, nil
}
