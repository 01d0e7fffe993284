package featurestore

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// Decode reads a matrix in smat form: a "rows cols" header followed by one
// line per row of space separated "col:value" pairs. Absent columns are zero.
func Decode(r io.Reader) (*mat.Dense, error) {
	br := bufio.NewReaderSize(r, 1<<16)

	header, err := readLine(br)
	if err != nil {
		return nil, errors.WrapKind(errors.DataIntegrity, err, "missing smat header")
	}
	rows, cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	data := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		line, err := readLine(br)
		if err != nil {
			return nil, errors.WrapKind(errors.DataIntegrity, err, "smat row %d of %d", i, rows)
		}
		for _, field := range strings.Fields(line) {
			sep := strings.IndexByte(field, ':')
			if sep < 0 {
				return nil, errors.Kindf(errors.DataIntegrity, "smat row %d: bad entry %q", i, field)
			}
			col, err := strconv.Atoi(field[:sep])
			if err != nil || col < 0 || col >= cols {
				return nil, errors.Kindf(errors.DataIntegrity, "smat row %d: bad column in %q", i, field)
			}
			val, err := strconv.ParseFloat(field[sep+1:], 64)
			if err != nil {
				return nil, errors.WrapKind(errors.DataIntegrity, err, "smat row %d", i)
			}
			data[i*cols+col] = val
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

// DecodeShape reads only the header.
func DecodeShape(r io.Reader) (int, int, error) {
	line, err := readLine(bufio.NewReader(r))
	if err != nil {
		return 0, 0, errors.WrapKind(errors.DataIntegrity, err, "missing smat header")
	}
	return parseHeader(line)
}

func parseHeader(line string) (int, int, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, errors.Kindf(errors.DataIntegrity, "bad smat header %q", line)
	}
	rows, err1 := strconv.Atoi(fields[0])
	cols, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || rows < 1 || cols < 1 {
		return 0, 0, errors.Kindf(errors.DataIntegrity, "bad smat header %q", line)
	}
	return rows, cols, nil
}

// readLine returns the next line without its terminator. A final line
// without a newline is returned as is; io.EOF is returned only when
// nothing is left.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Encode writes m in smat form, skipping zero entries.
func Encode(w io.Writer, m mat.Matrix) error {
	bw := bufio.NewWriterSize(w, 1<<16)
	rows, cols := m.Dims()
	fmt.Fprintf(bw, "%d %d\n", rows, cols)
	for i := 0; i < rows; i++ {
		first := true
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if v == 0 {
				continue
			}
			if !first {
				bw.WriteByte(' ')
			}
			first = false
			bw.WriteString(strconv.Itoa(j))
			bw.WriteByte(':')
			bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Load reads an smat file from a local or s3 path.
func Load(path string) (*mat.Dense, error) {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening feature file %s", path)
	}
	defer r.Close()
	m, err := Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading %s", path)
	}
	return m, nil
}

// Save writes m to an smat file, replacing it.
func Save(m mat.Matrix, path string) (err error) {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return errors.Wrapf(err, "error creating feature file %s", path)
	}
	defer errors.Defer(&err, w.Close)
	return Encode(w, m)
}

// LoadShape reads the dimensions of an smat file without loading it.
func LoadShape(path string) (int, int, error) {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "error opening feature file %s", path)
	}
	defer r.Close()
	rows, cols, err := DecodeShape(r)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "error loading %s", path)
	}
	return rows, cols, nil
}
