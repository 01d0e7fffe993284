package model

import (
	"bufio"
	"fmt"
	"sort"

	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

type fault struct {
	score float64
	pair  *dataset.Pair
}

// WriteFaults lists the scored rows for manual inspection. Only the first
// score of a repeated index is kept. Rows labelled 1 go to posPath lowest
// score first; rows labelled 0 go to negPath highest score first.
func WriteFaults(scores []float64, indices []int, table []*dataset.Pair, posPath, negPath string) error {
	if len(scores) != len(indices) {
		return errors.Kindf(errors.DataIntegrity, "%d scores but %d indices", len(scores), len(indices))
	}

	seen := make(map[int]bool, len(indices))
	var pos, neg []fault
	for i, idx := range indices {
		if idx < 0 || idx >= len(table) {
			return errors.Kindf(errors.DataIntegrity, "index %d out of range for %d rows", idx, len(table))
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		f := fault{score: scores[i], pair: table[idx]}
		if f.pair.IsDuplicate == 0 {
			neg = append(neg, f)
		} else {
			pos = append(pos, f)
		}
	}

	sort.SliceStable(pos, func(i, j int) bool { return pos[i].score < pos[j].score })
	sort.SliceStable(neg, func(i, j int) bool { return neg[i].score > neg[j].score })

	if err := writeFaultFile(posPath, pos); err != nil {
		return err
	}
	return writeFaultFile(negPath, neg)
}

func writeFaultFile(path string, faults []fault) (err error) {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer errors.Defer(&err, w.Close)

	bw := bufio.NewWriter(w)
	for _, f := range faults {
		fmt.Fprintf(bw, "%.5f\t%s\t||\t%s\t%d\t%d\n",
			f.score, f.pair.Question1, f.pair.Question2, f.pair.ID, f.pair.IsDuplicate)
	}
	return bw.Flush()
}
