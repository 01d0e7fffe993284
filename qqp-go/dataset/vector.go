// Package dataset reads and writes the raw question-pair tables and the
// one-value-per-line vectors (labels, indices, ids) the pipeline exchanges.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

func scanLines(path string, fn func(lineno int, line string) error) error {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return errors.Wrapf(err, "error opening %s", path)
	}
	defer r.Close()

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 1<<16), 1<<24)
	var lineno int
	for s.Scan() {
		lineno++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if err := fn(lineno, line); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return errors.Wrapf(err, "error reading %s", path)
	}
	return nil
}

// LoadStrings reads one string per non-empty line.
func LoadStrings(path string) ([]string, error) {
	var xs []string
	err := scanLines(path, func(_ int, line string) error {
		xs = append(xs, line)
		return nil
	})
	return xs, err
}

// LoadFloats reads one float per non-empty line.
func LoadFloats(path string) ([]float64, error) {
	var xs []float64
	err := scanLines(path, func(lineno int, line string) error {
		x, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return errors.WrapKind(errors.DataIntegrity, err, "%s:%d", path, lineno)
		}
		xs = append(xs, x)
		return nil
	})
	return xs, err
}

// LoadInts reads one integer per non-empty line.
func LoadInts(path string) ([]int, error) {
	var xs []int
	err := scanLines(path, func(lineno int, line string) error {
		x, err := strconv.Atoi(line)
		if err != nil {
			return errors.WrapKind(errors.DataIntegrity, err, "%s:%d", path, lineno)
		}
		xs = append(xs, x)
		return nil
	})
	return xs, err
}

// LoadIndex reads a row index file. Indices must be non-negative.
func LoadIndex(path string) ([]int, error) {
	xs, err := LoadInts(path)
	if err != nil {
		return nil, err
	}
	for i, x := range xs {
		if x < 0 {
			return nil, errors.Kindf(errors.DataIntegrity, "%s:%d: negative index %d", path, i+1, x)
		}
	}
	return xs, nil
}

// LoadLabels reads a label vector. Values are kept as read; the consumers
// decide what a label outside {0,1} means.
func LoadLabels(path string) ([]float64, error) {
	return LoadFloats(path)
}

func saveLines(path string, n int, line func(w io.Writer, i int) error) (err error) {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer errors.Defer(&err, w.Close)

	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		if err := line(bw, i); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveInts writes one integer per line.
func SaveInts(path string, xs []int) error {
	return saveLines(path, len(xs), func(w io.Writer, i int) error {
		_, err := fmt.Fprintf(w, "%d\n", xs[i])
		return err
	})
}

// SaveFloats writes one float per line in the shortest exact form.
func SaveFloats(path string, xs []float64) error {
	return saveLines(path, len(xs), func(w io.Writer, i int) error {
		_, err := io.WriteString(w, strconv.FormatFloat(xs[i], 'g', -1, 64)+"\n")
		return err
	})
}

// SaveStrings writes one string per line.
func SaveStrings(path string, xs []string) error {
	return saveLines(path, len(xs), func(w io.Writer, i int) error {
		_, err := io.WriteString(w, xs[i]+"\n")
		return err
	})
}
