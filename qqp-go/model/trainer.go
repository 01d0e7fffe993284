// Package model trains, evaluates and applies the duplicate question
// classifiers.
package model

import (
	"math/rand"
	"os"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-golib/awsutil"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
	"github.com/qqpair/qqpair/qqp-golib/qqplog"
)

// Trainer runs training and cross validation for one configuration.
type Trainer struct {
	cfg   *config.Config
	store *featurestore.Store
	log   *zap.Logger
	rng   *rand.Rand
	calib *Calibrator

	// Learner is wrapped with Lock
	Learner Learner
	Lock    *Lock

	durations qqplog.Durations
}

// NewTrainer builds the configured learner behind the training lock.
func NewTrainer(cfg *config.Config, store *featurestore.Store, log *zap.Logger) (*Trainer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	learner, err := NewLearner(cfg, log)
	if err != nil {
		return nil, err
	}
	calib, err := postprocessor(cfg)
	if err != nil {
		return nil, err
	}
	lock := NewLock(cfg.LockPath(), cfg.Lock.PollInterval, log)
	return &Trainer{
		cfg:     cfg,
		store:   store,
		log:     log,
		rng:     rand.New(rand.NewSource(cfg.Model.Seed)),
		calib:   calib,
		Learner: &LockedLearner{Learner: learner, Lock: lock},
		Lock:    lock,
	}, nil
}

func postprocessor(cfg *config.Config) (*Calibrator, error) {
	if !cfg.Model.HasPostprocess {
		return nil, nil
	}
	c, err := NewCalibrator(cfg.Model.TE, cfg.Model.TR)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// adjust applies the prior shift when post-processing is on.
func adjust(c *Calibrator, scores []float64) []float64 {
	if c == nil {
		return scores
	}
	return c.AdjustAll(scores)
}

// unadjust reverses adjust.
func unadjust(c *Calibrator, scores []float64) []float64 {
	if c == nil {
		return scores
	}
	return c.InverseAdjustAll(scores)
}

// prepareOut creates the output tree, refusing to reuse an existing root.
func (t *Trainer) prepareOut() error {
	exists, err := fileutil.Exists(t.cfg.Paths.Out)
	if err != nil {
		return err
	}
	if exists {
		return errors.Kindf(errors.Configuration, "out path (%s) already exists", t.cfg.Paths.Out)
	}
	if !awsutil.IsS3URI(t.cfg.Paths.Out) {
		for _, dir := range t.cfg.OutDirs() {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return errors.Wrapf(err, "error creating %s", dir)
			}
		}
	}
	t.log.Info("out path created", zap.String("path", t.cfg.Paths.Out))
	return nil
}

// design balances indices to rate and gathers the matching rows.
func (t *Trainer) design(name string, features *mat.Dense, labels []float64, indices []int, rate float64) (Design, error) {
	balanced, err := Balance(indices, labels, rate, t.rng)
	if err != nil {
		return Design{}, errors.Wrapf(err, "error balancing %s", name)
	}
	X, err := featurestore.SampleRows(features, balanced)
	if err != nil {
		return Design{}, errors.Wrapf(err, "error sampling %s", name)
	}
	ls := make([]float64, len(balanced))
	for i, idx := range balanced {
		ls[i] = labels[idx]
	}
	if t.logitFeatures() {
		featurestore.LogitClip(X)
	}

	pos, _ := rateOf(ls)
	t.log.Info("design generated", zap.String("split", name), zap.Int("rows", len(balanced)),
		zap.Int("raw_rows", len(indices)), zap.Float64("pos_rate", pos))
	return Design{Name: name, X: X, Labels: ls, Indices: balanced}, nil
}

func (t *Trainer) logitFeatures() bool {
	return t.cfg.Model.LogitFeatures && IsLinear(t.cfg.Model.Type)
}

func rateOf(labels []float64) (float64, bool) {
	if len(labels) == 0 {
		return 0, false
	}
	var sum float64
	for _, l := range labels {
		sum += l
	}
	return sum / float64(len(labels)), true
}

// loadTable reads the raw table the fault reports quote from.
func (t *Trainer) loadTable() ([]*dataset.Pair, error) {
	return dataset.LoadPairs(t.cfg.RawTablePath())
}

func (t *Trainer) writeFaults(scores []float64, indices []int) error {
	table, err := t.loadTable()
	if err != nil {
		return err
	}
	posPath, negPath := t.cfg.FaultPaths()
	if err := WriteFaults(scores, indices, table, posPath, negPath); err != nil {
		return err
	}
	t.log.Info("saved fault files", zap.String("pos", posPath), zap.String("neg", negPath))
	return nil
}

func (t *Trainer) predict(p Predictor, d Design) ([]float64, error) {
	scores, err := p.Predict(d.X)
	if err != nil {
		return nil, errors.Wrapf(err, "error scoring %s", d.Name)
	}
	return adjust(t.calib, scores), nil
}

func (t *Trainer) loss(name string, labels, scores []float64) (float64, error) {
	loss, err := CrossEntropy(labels, scores)
	if err != nil {
		return 0, errors.Wrapf(err, "error evaluating %s", name)
	}
	t.log.Info("entropy loss", zap.String("split", name), zap.Float64("loss", loss))
	return loss, nil
}
