package model

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

const (
	fixtureRows   = 45
	fixtureOnline = 10
)

func column(n int, f func(i int) float64) *mat.Dense {
	m := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		m.Set(i, 0, f(i))
	}
	return m
}

func signal(i int) float64 {
	if i%2 == 0 {
		return 0.8 + 0.01*float64(i%7)
	}
	return 0.2 - 0.01*float64(i%5)
}

// newFixture lays out a labelled rawset with three folds and a two part
// online rawset under a temp dir.
func newFixture(t *testing.T, modelType string) (*config.Config, *featurestore.Store) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		Data:     dir,
		Origin:   filepath.Join(dir, "origin"),
		Features: filepath.Join(dir, "feature"),
		Index:    filepath.Join(dir, "index"),
		Labels:   filepath.Join(dir, "label"),
		IDs:      filepath.Join(dir, "id"),
		Out:      filepath.Join(dir, "out", "run"),
	}
	cfg.Feature.Names = []string{"signal", cfg.Rescale.CliqueFeature, cfg.Rescale.ComponentFeature}
	cfg.Model.Type = modelType
	cfg.Model.CVNum = 3
	cfg.Model.NPart = 2
	cfg.Model.Online = true
	cfg.Model.HasPostprocess = true
	cfg.XGBoost.NumRound = 5
	cfg.Lock.PollInterval = time.Second
	require.NoError(t, cfg.Validate())

	store, err := featurestore.New(cfg.Paths.Features, cfg.Feature.Names, featurestore.Options{CacheSize: 2})
	require.NoError(t, err)

	blocks := map[string]func(i int) float64{
		"signal":                     signal,
		cfg.Rescale.CliqueFeature:    func(i int) float64 { return float64(i%5 + 1) },
		cfg.Rescale.ComponentFeature: func(i int) float64 { return float64(i%4 + 1) },
	}
	for name, f := range blocks {
		require.NoError(t, store.Save(column(fixtureRows, f), name, "train"))
		online := column(fixtureOnline, f)
		require.NoError(t, store.Save(online, name, "test"))
		require.NoError(t, store.SaveParts(online, name, "test", 2))
	}

	labels := make([]float64, fixtureRows)
	pairs := make([]*dataset.Pair, fixtureRows)
	for i := range labels {
		if i%2 == 0 {
			labels[i] = 1
		}
		pairs[i] = &dataset.Pair{ID: i, QID1: 2 * i, QID2: 2*i + 1,
			Question1: "q" + strconv.Itoa(i), Question2: "p" + strconv.Itoa(i), IsDuplicate: int(labels[i])}
	}
	require.NoError(t, dataset.SaveFloats(cfg.LabelPath("train"), labels))
	require.NoError(t, dataset.SavePairs(cfg.RawTablePath(), pairs))

	ids := make([]string, fixtureOnline)
	for i := range ids {
		ids[i] = strconv.Itoa(1000 + i)
	}
	require.NoError(t, dataset.SaveStrings(cfg.IDPath("test"), ids))

	folds, err := dataset.GenerateFolds(fixtureRows, cfg.Model.CVNum, 1)
	require.NoError(t, err)
	require.NoError(t, dataset.SaveFolds(cfg.Paths.Index, cfg.Model.CVTag, "train", folds))
	cfg.Model.TrainIndices = cfg.FoldIndexPath(0, dataset.Train)
	cfg.Model.ValidIndices = cfg.FoldIndexPath(0, dataset.Valid)
	cfg.Model.TestIndices = cfg.FoldIndexPath(0, dataset.Test)
	return &cfg, store
}

func assertExists(t *testing.T, path string) {
	_, err := os.Stat(path)
	assert.NoError(t, err, path)
}

func TestCrossValidate(t *testing.T) {
	cfg, store := newFixture(t, config.LR)
	tr, err := NewTrainer(cfg, store, nil)
	require.NoError(t, err)

	res, err := tr.CrossValidate(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Folds, 3)
	assert.Greater(t, res.Valid, 0.0)
	assert.Less(t, res.RawValid, 0.69)
	assert.Less(t, res.RawTest, 0.69)

	for f := 0; f < 3; f++ {
		model := filepath.Join(cfg.ModelDir(), ModelName(config.LR, 3, f))
		assertExists(t, model)
		assertExists(t, RecordPath(model))
		assertExists(t, filepath.Join(cfg.PredDir(), "cv_n3_f"+strconv.Itoa(f)+"_online.test.pred"))
	}
	assertExists(t, filepath.Join(cfg.ScoreDir(), "cv_score.txt"))
	assertExists(t, cfg.SnapshotPath())

	// with three folds every row lands in each split exactly once
	for _, split := range []string{dataset.Train, dataset.Valid, dataset.Test} {
		p, err := ReadPredictions(filepath.Join(cfg.PredDir(), "cv_n3_"+split+".train.pred"))
		require.NoError(t, err)
		assert.Len(t, p.Scores, fixtureRows, split)
	}

	pos, neg := cfg.FaultPaths()
	assert.Len(t, append(readLines(t, pos), readLines(t, neg)...), fixtureRows)

	require.NotEmpty(t, res.Online)
	merged, err := ReadPredictions(res.Online)
	require.NoError(t, err)
	assert.Equal(t, "1000", merged.IDs[0])
	assert.Len(t, merged.Scores, fixtureOnline)
	assert.Equal(t, res.Online+".rescale", res.Rescaled)
	rescaled, err := ReadPredictions(res.Rescaled)
	require.NoError(t, err)
	assert.Equal(t, merged.IDs, rescaled.IDs)

	_, err = os.Stat(cfg.LockPath())
	assert.True(t, os.IsNotExist(err))

	_, err = tr.CrossValidate(context.Background())
	assert.True(t, errors.Is(err, errors.Configuration))

	scores, err := SortFeatures(cfg, store, 0)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, "signal_0", scores[0].Name)

	path, rescaledPath, err := Predict(context.Background(), cfg, store, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.PredDir(), "cv_n3_f1_online.test.pred"), path)
	assertExists(t, rescaledPath)
}

func TestCrossValidateFoldFailure(t *testing.T) {
	cfg, store := newFixture(t, config.LR)
	require.NoError(t, os.Remove(cfg.FoldIndexPath(1, dataset.Valid)))
	tr, err := NewTrainer(cfg, store, nil)
	require.NoError(t, err)

	_, err = tr.CrossValidate(context.Background())
	require.Error(t, err)

	// fold 0 finished, nothing after it and no aggregate was written
	assertExists(t, filepath.Join(cfg.ModelDir(), ModelName(config.LR, 3, 0)))
	for _, path := range []string{
		filepath.Join(cfg.ModelDir(), ModelName(config.LR, 3, 1)),
		filepath.Join(cfg.PredDir(), "cv_n3_valid.train.pred"),
		filepath.Join(cfg.PredDir(), "cv_n3_test.train.pred"),
		filepath.Join(cfg.PredDir(), "cv_n3_online.test.pred"),
		filepath.Join(cfg.ScoreDir(), "cv_score.txt"),
	} {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), path)
	}

	_, err = os.Stat(cfg.LockPath())
	assert.True(t, os.IsNotExist(err))
}

func TestTrain(t *testing.T) {
	cfg, store := newFixture(t, config.XGBoost)
	tr, err := NewTrainer(cfg, store, nil)
	require.NoError(t, err)

	res, err := tr.Train(context.Background())
	require.NoError(t, err)
	assert.Greater(t, res.Train, 0.0)
	for _, split := range []string{dataset.Train, dataset.Valid, dataset.Test} {
		assert.Len(t, res.Buckets[split], 3, split)
		assertExists(t, filepath.Join(cfg.PredDir(), split+".train.pred"))
	}
	assertExists(t, filepath.Join(cfg.ModelDir(), "xgboost.model"))
	assertExists(t, filepath.Join(cfg.PredDir(), "online.test.pred.rescale"))

	lines := readLines(t, filepath.Join(cfg.ScoreDir(), "score.txt"))
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "score_train\t"))

	buckets, err := ScoreSegments(cfg, store, dataset.Test, filepath.Join(cfg.PredDir(), "test.train.pred"), nil)
	require.NoError(t, err)
	assert.Len(t, buckets, 3)

	ranges, err := FeatureIndex(cfg, store, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, featurestore.Range{Name: "signal", Start: 0, End: 1}, ranges[0])
}
