package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqpair/qqpair/qqp-golib/errors"
)

func TestVectors(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, SaveInts(filepath.Join(dir, "a.index"), []int{3, 0, 2}))
	idx, err := LoadIndex(filepath.Join(dir, "a.index"))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0, 2}, idx)

	require.NoError(t, SaveFloats(filepath.Join(dir, "a.label"), []float64{1, 0, 0.25}))
	labels, err := LoadLabels(filepath.Join(dir, "a.label"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0.25}, labels)

	require.NoError(t, SaveStrings(filepath.Join(dir, "a.id"), []string{"7", "x"}))
	ids, err := LoadStrings(filepath.Join(dir, "a.id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "x"}, ids)
}

func TestLoadIndexErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.index")

	require.NoError(t, os.WriteFile(path, []byte("1\nx\n"), 0644))
	_, err := LoadIndex(path)
	assert.True(t, errors.Is(err, errors.DataIntegrity))

	require.NoError(t, os.WriteFile(path, []byte("1\n-2\n"), 0644))
	_, err = LoadIndex(path)
	assert.True(t, errors.Is(err, errors.DataIntegrity))

	_, err = LoadIndex(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.csv")
	body := "\"id\",\"qid1\",\"qid2\",\"question1\",\"question2\",\"is_duplicate\"\n" +
		"\"0\",\"1\",\"2\",\"How do I learn Go?\",\"What is the best way to learn Go?\",\"1\"\n" +
		"\"1\",\"3\",\"4\",\"Why is the sky blue?\",\"How tall is Everest, really?\",\"0\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	pairs, err := LoadPairs(path)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "How tall is Everest, really?", pairs[1].Question2)
	assert.Equal(t, 1, pairs[0].IsDuplicate)
	assert.Equal(t, 3, pairs[1].QID1)

	qs, err := LoadQuestionPairs(path, true)
	require.NoError(t, err)
	assert.Equal(t, "How do I learn Go?", qs[0].Question1)

	out := filepath.Join(t.TempDir(), "copy.csv")
	require.NoError(t, SavePairs(out, pairs))
	back, err := LoadPairs(out)
	require.NoError(t, err)
	assert.Equal(t, pairs, back)
}

func TestGenerateFolds(t *testing.T) {
	folds, err := GenerateFolds(10, 5, 3)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seenTest := make(map[int]int)
	for f, fold := range folds {
		assert.Len(t, fold.Test, 2)
		assert.Len(t, fold.Valid, 2)
		assert.Len(t, fold.Train, 6)
		assert.True(t, sort.IntsAreSorted(fold.Train))
		for _, row := range fold.Test {
			seenTest[row]++
		}
		assert.Equal(t, folds[(f+1)%5].Test, fold.Valid)
	}
	assert.Len(t, seenTest, 10)

	again, err := GenerateFolds(10, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, folds, again)

	_, err = GenerateFolds(3, 5, 1)
	assert.True(t, errors.Is(err, errors.Configuration))
}

func TestSaveFolds(t *testing.T) {
	dir := t.TempDir()
	folds, err := GenerateFolds(6, 3, 1)
	require.NoError(t, err)
	require.NoError(t, SaveFolds(dir, "7", "train", folds))

	rows, err := LoadIndex(filepath.Join(dir, "cv_tag7_n3_f2_valid.train.index"))
	require.NoError(t, err)
	assert.Equal(t, folds[2].Valid, rows)
}
