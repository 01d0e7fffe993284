package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// PartSource loads the design matrix of one shard.
type PartSource interface {
	LoadPart(part int) (*mat.Dense, error)
}

// StoreSource reads shards of a rawset from a feature store.
type StoreSource struct {
	Store  *featurestore.Store
	Rawset string
	// Logit maps the features to log-odds, for linear models
	Logit bool
}

// LoadPart implements PartSource. Every row is kept as is.
func (s *StoreSource) LoadPart(part int) (*mat.Dense, error) {
	m, err := s.Store.LoadAllPart(s.Rawset, part)
	if err != nil {
		return nil, err
	}
	if !s.Logit {
		return m, nil
	}
	rows, _ := m.Dims()
	all := make([]int, rows)
	for i := range all {
		all[i] = i
	}
	X, err := featurestore.SampleRows(m, all)
	if err != nil {
		return nil, err
	}
	featurestore.LogitClip(X)
	return X, nil
}

// PredictParts scores shards 0..nParts-1 with every predictor. The result
// has one score sequence per predictor holding the shards in order. Up to
// parallel predictors score a shard at once.
func PredictParts(ctx context.Context, predictors []Predictor, source PartSource, nParts, parallel int, log *zap.Logger) ([][]float64, error) {
	if len(predictors) == 0 {
		return nil, errors.Kindf(errors.Configuration, "no predictors")
	}
	if nParts < 1 {
		return nil, errors.Kindf(errors.Configuration, "n_part must be positive, got %d", nParts)
	}
	if parallel < 1 {
		parallel = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	out := make([][]float64, len(predictors))
	for part := 0; part < nParts; part++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		X, err := source.LoadPart(part)
		if err != nil {
			return nil, errors.Wrapf(err, "error loading part %d", part)
		}
		rows, _ := X.Dims()
		log.Info("online set generation done", zap.Int("part", part), zap.Int("rows", rows))

		scores := make([][]float64, len(predictors))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)
		for i, p := range predictors {
			i, p := i, p
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := p.Predict(X)
				if err != nil {
					return errors.Wrapf(err, "error scoring part %d with model %d", part, i)
				}
				scores[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for i := range predictors {
			out[i] = append(out[i], scores[i]...)
		}
		log.Info("online set predict done", zap.Int("part", part), zap.Int("models", len(predictors)))
	}
	return out, nil
}

// Predict scores the online set with a saved model: the fold model when
// fold is non-negative, the single split model otherwise. It writes the
// post-processed predictions under the prediction dir and their segment
// rescaling, returning both paths.
func Predict(ctx context.Context, cfg *config.Config, store *featurestore.Store, fold int, log *zap.Logger) (string, string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	path := fileutil.Join(cfg.ModelDir(), ModelName(cfg.Model.Type, cfg.Model.CVNum, fold))
	p, err := LoadPredictor(cfg.Model.Type, path)
	if err != nil {
		return "", "", err
	}
	log.Info("loaded model", zap.String("path", path), zap.Int("best_iteration", p.Record().BestIteration))
	return predictOnline(ctx, cfg, store, p, onlinePredName(cfg, fold), log)
}

func onlinePredName(cfg *config.Config, fold int) string {
	if fold < 0 {
		return fmt.Sprintf("online.%s.pred", cfg.Model.OnlineRawset)
	}
	return fmt.Sprintf("cv_n%d_f%d_online.%s.pred", cfg.Model.CVNum, fold, cfg.Model.OnlineRawset)
}

func predictOnline(ctx context.Context, cfg *config.Config, store *featurestore.Store, p Predictor, name string, log *zap.Logger) (string, string, error) {
	calib, err := postprocessor(cfg)
	if err != nil {
		return "", "", err
	}
	online := cfg.Model.OnlineRawset
	source := &StoreSource{Store: store, Rawset: online, Logit: cfg.Model.LogitFeatures && IsLinear(cfg.Model.Type)}
	scores, err := PredictParts(ctx, []Predictor{p}, source, cfg.Model.NPart, 1, log)
	if err != nil {
		return "", "", err
	}
	ids, err := dataset.LoadStrings(cfg.IDPath(online))
	if err != nil {
		return "", "", err
	}

	path := fileutil.Join(cfg.PredDir(), name)
	if err := WritePredictions(path, cfg.Model.Header, ids, adjust(calib, scores[0])); err != nil {
		return "", "", err
	}
	log.Info("saved online prediction", zap.String("path", path))

	rescaled, err := Rescale(cfg, store, path, log)
	if err != nil {
		return "", "", err
	}
	return path, rescaled, nil
}

// SaveAllFeatures assembles the train rawset and every online shard so the
// merged matrices land in the store's cache.
func SaveAllFeatures(cfg *config.Config, store *featurestore.Store) error {
	if _, err := store.LoadAll(cfg.Model.TrainRawset); err != nil {
		return err
	}
	for part := 0; part < cfg.Model.NPart; part++ {
		if _, err := store.LoadAllPart(cfg.Model.OnlineRawset, part); err != nil {
			return err
		}
	}
	return nil
}
