// Package features computes the per-pair feature blocks the model is
// trained on. Every extractor is fitted on the whole corpus first, then
// applied to each rawset, so all of its state lives on the extractor value.
package features

import (
	"context"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// Corpus is every question pair the extractors see.
type Corpus struct {
	Train []dataset.QuestionPair
	// TrainLabels are used for logging only
	TrainLabels []float64
	Online      []dataset.QuestionPair
}

// Extractor computes one feature block.
type Extractor interface {
	Name() string
	// Fit builds the extractor's state from the corpus.
	Fit(c *Corpus) error
	// Extract returns one row per pair.
	Extract(pairs []dataset.QuestionPair) (*mat.Dense, error)
}

var registry = map[string]func() Extractor{
	"word_match_share":           func() Extractor { return &WordMatchShare{} },
	"tfidf_word_match_share":     func() Extractor { return NewTFIDFWordMatchShare() },
	"len_diff":                   func() Extractor { return &LenDiff{} },
	"len_diff_rate":              func() Extractor { return &LenDiffRate{} },
	"match_ratio":                func() Extractor { return &MatchRatio{} },
	"dul_num":                    func() Extractor { return &DulNum{} },
	"id":                         func() Extractor { return &ID{} },
	"graph_edge_cc_size":         func() Extractor { return &ComponentSize{} },
	"graph_edge_max_clique_size": func() Extractor { return &MaxCliqueSize{} },
}

// Names lists the registered extractors.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a fresh extractor by name.
func New(name string) (Extractor, error) {
	f, ok := registry[name]
	if !ok {
		return nil, errors.Kindf(errors.Configuration, "unknown feature %q", name)
	}
	return f(), nil
}

// column builds an n x 1 matrix from f.
func column(n int, f func(i int) float64) *mat.Dense {
	if n == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, f(i))
	}
	return m
}

// LoadCorpus reads the raw train and online tables named in cfg.
func LoadCorpus(cfg *config.Config) (*Corpus, error) {
	pairs, err := dataset.LoadPairs(cfg.RawPath(cfg.Model.TrainRawset))
	if err != nil {
		return nil, err
	}
	c := &Corpus{
		Train:       make([]dataset.QuestionPair, len(pairs)),
		TrainLabels: make([]float64, len(pairs)),
	}
	for i, p := range pairs {
		c.Train[i] = dataset.QuestionPair{Question1: p.Question1, Question2: p.Question2}
		c.TrainLabels[i] = float64(p.IsDuplicate)
	}
	if c.Online, err = dataset.LoadQuestionPairs(cfg.RawPath(cfg.Model.OnlineRawset), false); err != nil {
		return nil, err
	}
	return c, nil
}

// Run fits and applies the named extractors, up to cfg.Model.Parallel at a
// time. Each block is saved for the train rawset, and for the online rawset
// both whole and cut into cfg.Model.NPart shards.
func Run(ctx context.Context, cfg *config.Config, store *featurestore.Store, c *Corpus, names []string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	extractors := make([]Extractor, len(names))
	for i, name := range names {
		ex, err := New(name)
		if err != nil {
			return err
		}
		extractors[i] = ex
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Model.Parallel > 0 {
		g.SetLimit(cfg.Model.Parallel)
	}
	for _, ex := range extractors {
		ex := ex
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return extract(cfg, store, c, ex, log.With(zap.String("feature", ex.Name())))
		})
	}
	return g.Wait()
}

func extract(cfg *config.Config, store *featurestore.Store, c *Corpus, ex Extractor, log *zap.Logger) error {
	name := ex.Name()
	if err := ex.Fit(c); err != nil {
		return errors.Wrapf(err, "error fitting %s", name)
	}

	train, err := ex.Extract(c.Train)
	if err != nil {
		return errors.Wrapf(err, "error extracting %s", name)
	}
	log.Info("extract train features done")
	logByLabel(log, train, c.TrainLabels)
	if err := store.Save(train, name, cfg.Model.TrainRawset); err != nil {
		return err
	}

	online, err := ex.Extract(c.Online)
	if err != nil {
		return errors.Wrapf(err, "error extracting %s", name)
	}
	log.Info("extract online features done")
	if err := store.Save(online, name, cfg.Model.OnlineRawset); err != nil {
		return err
	}
	return store.SaveParts(online, name, cfg.Model.OnlineRawset, cfg.Model.NPart)
}

// logByLabel summarizes the first column of m separately for each label.
func logByLabel(log *zap.Logger, m *mat.Dense, labels []float64) {
	rows, _ := m.Dims()
	if rows == 0 || rows != len(labels) {
		return
	}
	var neg, pos stats.Float64Data
	for i, l := range labels {
		if l == 1 {
			pos = append(pos, m.At(i, 0))
		} else {
			neg = append(neg, m.At(i, 0))
		}
	}
	for _, g := range []struct {
		name string
		data stats.Float64Data
	}{{"neg", neg}, {"pos", pos}} {
		if len(g.data) == 0 {
			continue
		}
		mean, _ := g.data.Mean()
		std, _ := g.data.StandardDeviation()
		hi, _ := g.data.Max()
		lo, _ := g.data.Min()
		log.Info("feature distribution", zap.String("label", g.name), zap.Float64("mean", mean),
			zap.Float64("std", std), zap.Float64("max", hi), zap.Float64("min", lo))
	}
}
