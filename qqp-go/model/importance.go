package model

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-golib/decisiontree"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
	"github.com/qqpair/qqpair/qqp-golib/linear"
)

// FeatureScore is the importance of one merged column.
type FeatureScore struct {
	Name  string
	Score float64
}

// Importance implements Importancer with the absolute coefficients.
func (p *linearPredictor) Importance() decisiontree.Importance {
	imp := make(decisiontree.Importance)
	var coefs []float64
	switch s := p.clf.Scorer.(type) {
	case *linear.LogisticRegression:
		coefs = s.Coefs
	case *linear.Lasso:
		coefs = s.Coefs
	}
	for i, c := range coefs {
		if c != 0 {
			imp[i] = math.Abs(c)
		}
	}
	return imp
}

// SortFeatures ranks the merged columns of the train rawset by their
// importance in a saved model, highest first. Columns are named
// <feature>_<i>; unused columns score zero.
func SortFeatures(cfg *config.Config, store *featurestore.Store, fold int) ([]FeatureScore, error) {
	path := fileutil.Join(cfg.ModelDir(), ModelName(cfg.Model.Type, cfg.Model.CVNum, fold))
	p, err := LoadPredictor(cfg.Model.Type, path)
	if err != nil {
		return nil, err
	}
	imp, ok := p.(Importancer)
	if !ok {
		return nil, errors.Kindf(errors.Configuration, "%s models have no feature importance", cfg.Model.Type)
	}

	ranges, err := store.Ranges(cfg.Model.TrainRawset)
	if err != nil {
		return nil, err
	}
	return rankColumns(featurestore.ColumnNames(ranges), imp.Importance()), nil
}

func rankColumns(names []string, imp decisiontree.Importance) []FeatureScore {
	scores := make([]FeatureScore, len(names))
	for i, name := range names {
		scores[i] = FeatureScore{Name: name, Score: imp[i]}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}

// FeatureIndex logs and returns the column span of every feature block.
func FeatureIndex(cfg *config.Config, store *featurestore.Store, log *zap.Logger) ([]featurestore.Range, error) {
	ranges, err := store.Ranges(cfg.Model.TrainRawset)
	if err != nil {
		return nil, err
	}
	for _, r := range ranges {
		log.Info("feature columns", zap.String("name", r.Name), zap.Int("start", r.Start), zap.Int("end", r.End))
	}
	return ranges, nil
}
