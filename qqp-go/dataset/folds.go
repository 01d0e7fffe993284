package dataset

import (
	"fmt"
	"math/rand"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// Split names.
const (
	Train  = "train"
	Valid  = "valid"
	Test   = "test"
	Online = "online"
)

// Fold is one train/valid/test triple of a k-fold partition.
type Fold struct {
	ID    int
	Train []int
	Valid []int
	Test  []int
}

// GenerateFolds shuffles rows 0..n-1 with the seed and cuts them into k
// parts. Fold f tests on part f, validates on part (f+1)%k and trains on
// the rest. Indices within each split are ascending.
func GenerateFolds(n, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, errors.Kindf(errors.Configuration, "need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, errors.Kindf(errors.Configuration, "cannot cut %d rows into %d folds", n, k)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	part := make([]int, n)
	for pos, row := range perm {
		part[row] = pos * k / n
	}

	folds := make([]Fold, k)
	for f := range folds {
		folds[f].ID = f
		valid := (f + 1) % k
		for row := 0; row < n; row++ {
			switch part[row] {
			case f:
				folds[f].Test = append(folds[f].Test, row)
			case valid:
				folds[f].Valid = append(folds[f].Valid, row)
			default:
				folds[f].Train = append(folds[f].Train, row)
			}
		}
	}
	return folds, nil
}

// FoldIndexName is the file name of one split of one fold.
func FoldIndexName(cvTag string, cvNum, fold int, split, rawset string) string {
	return fmt.Sprintf("cv_tag%s_n%d_f%d_%s.%s.index", cvTag, cvNum, fold, split, rawset)
}

// SaveFolds writes the train, valid and test index files of every fold.
func SaveFolds(dir, cvTag, rawset string, folds []Fold) error {
	for _, f := range folds {
		for split, rows := range map[string][]int{Train: f.Train, Valid: f.Valid, Test: f.Test} {
			path := fileutil.Join(dir, FoldIndexName(cvTag, len(folds), f.ID, split, rawset))
			if err := SaveInts(path, rows); err != nil {
				return err
			}
		}
	}
	return nil
}
