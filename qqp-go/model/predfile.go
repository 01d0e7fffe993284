package model

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
	"github.com/qqpair/qqpair/qqp-golib/mathutil"
)

// DefaultHeader is the first line of a prediction file.
const DefaultHeader = `"id","label_probability"`

// Predictions are the rows of a prediction file.
type Predictions struct {
	IDs    []string
	Scores []float64
}

// RangeIDs numbers n rows from 0.
func RangeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	return ids
}

// WritePredictions writes a header line followed by one id,score line per row.
func WritePredictions(path, header string, ids []string, scores []float64) (err error) {
	if len(ids) != len(scores) {
		return errors.Kindf(errors.DataIntegrity, "%d ids but %d scores for %s", len(ids), len(scores), path)
	}
	if header == "" {
		header = DefaultHeader
	}

	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer errors.Defer(&err, w.Close)

	bw := bufio.NewWriter(w)
	bw.WriteString(header + "\n")
	for i, s := range scores {
		bw.WriteString(ids[i])
		bw.WriteByte(',')
		bw.WriteString(strconv.FormatFloat(s, 'g', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadPredictions reads a file written by WritePredictions. The first line
// is skipped when it is not an id,score row.
func ReadPredictions(path string) (*Predictions, error) {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", path)
	}
	defer r.Close()

	p, err := decodePredictions(r)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", path)
	}
	return p, nil
}

func decodePredictions(r io.Reader) (*Predictions, error) {
	p := &Predictions{}
	s := bufio.NewScanner(r)
	var lineno int
	for s.Scan() {
		lineno++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		sep := strings.LastIndexByte(line, ',')
		var score float64
		var err error
		if sep >= 0 {
			score, err = strconv.ParseFloat(line[sep+1:], 64)
		}
		if sep < 0 || err != nil {
			if lineno == 1 {
				continue
			}
			return nil, errors.Kindf(errors.DataIntegrity, "line %d: bad prediction %q", lineno, line)
		}
		p.IDs = append(p.IDs, line[:sep])
		p.Scores = append(p.Scores, score)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadScores reads the scores of a prediction file clamped to
// [1e-15, 1-1e-15].
func LoadScores(path string) ([]float64, error) {
	p, err := ReadPredictions(path)
	if err != nil {
		return nil, err
	}
	for i, s := range p.Scores {
		p.Scores[i] = mathutil.Clip(s, mathutil.Epsilon, 1-mathutil.Epsilon)
	}
	return p.Scores, nil
}

// MergeLogit averages several score sequences in log-odds space.
func MergeLogit(preds [][]float64) ([]float64, error) {
	if len(preds) == 0 {
		return nil, errors.Kindf(errors.Configuration, "nothing to merge")
	}
	n := len(preds[0])
	for i, p := range preds {
		if len(p) != n {
			return nil, errors.Kindf(errors.DataIntegrity, "prediction %d has %d rows, expected %d", i, len(p), n)
		}
	}
	out := make([]float64, n)
	for i := range out {
		var sum float64
		for _, p := range preds {
			sum += mathutil.Logit(p[i])
		}
		out[i] = mathutil.Sigmoid(sum / float64(len(preds)))
	}
	return out, nil
}
