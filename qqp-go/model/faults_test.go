package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

func readLines(t *testing.T, path string) []string {
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
}

func TestWriteFaults(t *testing.T) {
	table := []*dataset.Pair{
		{ID: 0, Question1: "a", Question2: "b", IsDuplicate: 1},
		{ID: 1, Question1: "c", Question2: "d", IsDuplicate: 0},
		{ID: 2, Question1: "e", Question2: "f", IsDuplicate: 1},
		{ID: 3, Question1: "g", Question2: "h", IsDuplicate: 0},
	}
	dir := t.TempDir()
	pos, neg := filepath.Join(dir, "test.pos.fault"), filepath.Join(dir, "test.neg.fault")

	err := WriteFaults(
		[]float64{0.9, 0.3, 0.2, 0.7, 0.99},
		[]int{0, 1, 2, 3, 0},
		table, pos, neg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"0.20000\te\t||\tf\t2\t1",
		"0.90000\ta\t||\tb\t0\t1",
	}, readLines(t, pos))
	assert.Equal(t, []string{
		"0.70000\tg\t||\th\t3\t0",
		"0.30000\tc\t||\td\t1\t0",
	}, readLines(t, neg))
}

func TestWriteFaultsErrors(t *testing.T) {
	dir := t.TempDir()
	table := []*dataset.Pair{{ID: 0}}
	pos, neg := filepath.Join(dir, "p"), filepath.Join(dir, "n")

	err := WriteFaults([]float64{0.1}, []int{0, 0}, table, pos, neg)
	assert.True(t, errors.Is(err, errors.DataIntegrity))

	err = WriteFaults([]float64{0.1}, []int{4}, table, pos, neg)
	assert.True(t, errors.Is(err, errors.DataIntegrity))
}
