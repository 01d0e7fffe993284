package model

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-golib/decisiontree"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
	"github.com/qqpair/qqpair/qqp-golib/linear"
	"github.com/qqpair/qqpair/qqp-golib/serialization"
)

// Design is a balanced, labelled design matrix together with the raw rows
// it was sampled from.
type Design struct {
	Name    string
	X       *mat.Dense
	Labels  []float64
	Indices []int
}

// Predictor scores design matrices with a trained model.
type Predictor interface {
	// Predict scores every row, stopping tree ensembles at their best iteration
	Predict(X *mat.Dense) ([]float64, error)
	// Save writes the model and its parameter record next to it
	Save(path string) error
	Record() Record
}

// Importancer is implemented by predictors that rank their input columns.
type Importancer interface {
	Importance() decisiontree.Importance
}

// Learner fits predictors.
type Learner interface {
	Type() string
	Fit(ctx context.Context, train, valid Design) (Predictor, error)
}

// Record is the parameter record saved with every model.
type Record struct {
	Type          string      `json:"type"`
	Params        interface{} `json:"params"`
	BestIteration int         `json:"best_iteration"`
	BestScore     float64     `json:"best_score,omitempty"`
	FeatureSize   int         `json:"feature_size"`
}

// RecordPath is where the parameter record of the model at path lives.
func RecordPath(path string) string {
	return path + ".params.json"
}

// NewLearner builds the learner configured in cfg.
func NewLearner(cfg *config.Config, log *zap.Logger) (Learner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Model.Type {
	case config.XGBoost:
		return &treeLearner{params: cfg.XGBoost, log: log}, nil
	case config.LR:
		return &lrLearner{params: cfg.LR}, nil
	case config.Lasso:
		return &lassoLearner{params: cfg.Lasso}, nil
	}
	return nil, errors.Kindf(errors.Configuration, "unknown model type %q", cfg.Model.Type)
}

// IsLinear reports whether learners of this type take logit transformed features.
func IsLinear(modelType string) bool {
	return modelType == config.LR || modelType == config.Lasso
}

type treeLearner struct {
	params decisiontree.Params
	log    *zap.Logger
}

func (l *treeLearner) Type() string { return config.XGBoost }

func (l *treeLearner) Fit(ctx context.Context, train, valid Design) (Predictor, error) {
	ens, err := decisiontree.Train(ctx, l.params,
		decisiontree.Dataset{Name: "train", X: train.X, Labels: train.Labels},
		[]decisiontree.Dataset{
			{Name: "train", X: train.X, Labels: train.Labels},
			{Name: "valid", X: valid.X, Labels: valid.Labels},
		}, l.log)
	if err != nil {
		return nil, err
	}
	l.log.Info("trained ensemble", zap.Int("trees", len(ens.Trees)),
		zap.Int("best_iteration", ens.BestIteration), zap.Int("ntree_limit", ens.NTreeLimit()))
	return &treePredictor{ens: ens, params: l.params}, nil
}

type treePredictor struct {
	ens    *decisiontree.Ensemble
	params interface{}
}

func (p *treePredictor) Predict(X *mat.Dense) ([]float64, error) {
	if _, cols := X.Dims(); p.ens.FeatureSize > 0 && cols != p.ens.FeatureSize {
		return nil, errors.Kindf(errors.DataIntegrity,
			"design matrix has %d columns, model expects %d", cols, p.ens.FeatureSize)
	}
	return p.ens.PredictMatrix(X, p.ens.NTreeLimit()), nil
}

func (p *treePredictor) Record() Record {
	return Record{
		Type:          config.XGBoost,
		Params:        p.params,
		BestIteration: p.ens.BestIteration,
		BestScore:     p.ens.BestScore,
		FeatureSize:   p.ens.FeatureSize,
	}
}

func (p *treePredictor) Importance() decisiontree.Importance {
	return p.ens.FScore(p.ens.NTreeLimit())
}

func (p *treePredictor) Save(path string) error {
	if err := saveWith(path, p.ens.Save); err != nil {
		return err
	}
	return serialization.Encode(RecordPath(path), p.Record())
}

type lrLearner struct {
	params linear.LogisticParams
}

func (l *lrLearner) Type() string { return config.LR }

func (l *lrLearner) Fit(ctx context.Context, train, _ Design) (Predictor, error) {
	c, err := linear.FitLogistic(ctx, train.X, train.Labels, l.params)
	if err != nil {
		return nil, err
	}
	return &linearPredictor{typ: config.LR, clf: c, params: l.params}, nil
}

type lassoLearner struct {
	params linear.LassoParams
}

func (l *lassoLearner) Type() string { return config.Lasso }

func (l *lassoLearner) Fit(ctx context.Context, train, _ Design) (Predictor, error) {
	c, err := linear.FitLasso(ctx, train.X, train.Labels, l.params)
	if err != nil {
		return nil, err
	}
	return &linearPredictor{typ: config.Lasso, clf: c, params: l.params}, nil
}

type linearPredictor struct {
	typ    string
	clf    *linear.BinaryClassifier
	params interface{}
}

func (p *linearPredictor) Predict(X *mat.Dense) ([]float64, error) {
	return p.clf.PredictMatrix(X)
}

func (p *linearPredictor) Record() Record {
	return Record{
		Type:          p.typ,
		Params:        p.params,
		BestIteration: -1,
		FeatureSize:   p.clf.Scorer.Width(),
	}
}

func (p *linearPredictor) Save(path string) error {
	if err := saveWith(path, p.clf.Save); err != nil {
		return err
	}
	return serialization.Encode(RecordPath(path), p.Record())
}

func saveWith(path string, save func(w io.Writer) error) (err error) {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return errors.Wrapf(err, "error creating model file %s", path)
	}
	defer errors.Defer(&err, w.Close)
	return save(w)
}

// LoadPredictor reads a model saved by Predictor.Save.
func LoadPredictor(modelType, path string) (Predictor, error) {
	var rec Record
	if err := serialization.Decode(RecordPath(path), &rec); err != nil {
		return nil, err
	}
	if rec.Type != modelType {
		return nil, errors.Kindf(errors.Configuration, "%s holds a %s model, expected %s", path, rec.Type, modelType)
	}

	r, err := fileutil.NewReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening model %s", path)
	}
	defer r.Close()

	switch modelType {
	case config.XGBoost:
		ens, err := decisiontree.Load(r)
		if err != nil {
			return nil, errors.WrapKind(errors.DataIntegrity, err, "error loading %s", path)
		}
		return &treePredictor{ens: ens, params: rec.Params}, nil
	case config.LR, config.Lasso:
		clf, err := linear.NewBinaryClassifierFromJSON(r)
		if err != nil {
			return nil, errors.WrapKind(errors.DataIntegrity, err, "error loading %s", path)
		}
		return &linearPredictor{typ: modelType, clf: clf, params: rec.Params}, nil
	}
	return nil, errors.Kindf(errors.Configuration, "unknown model type %q", modelType)
}

// ModelName is the file name of a fold model, or of the single split model
// when fold is negative.
func ModelName(modelType string, cvNum, fold int) string {
	if fold < 0 {
		return modelType + ".model"
	}
	return fmt.Sprintf("cv_n%d_f%d.%s.model", cvNum, fold, modelType)
}

// LockedLearner trains one model at a time across processes.
type LockedLearner struct {
	Learner
	Lock *Lock
}

// Fit holds the lock for the duration of the wrapped Fit.
func (l *LockedLearner) Fit(ctx context.Context, train, valid Design) (Predictor, error) {
	var p Predictor
	err := l.Lock.Do(ctx, func(ctx context.Context) error {
		var err error
		p, err = l.Learner.Fit(ctx, train, valid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
