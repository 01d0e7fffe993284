// Package serialization reads and writes objects in a format chosen by the
// file extension.
package serialization

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"io"
	"strings"

	"github.com/golang/snappy"
	"gopkg.in/yaml.v2"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// Encode writes the object to the path, using the format specified by the file
// extension, which can be .json, .gob, .yml or .yaml. The path may additionally
// have a .gz or .snappy suffix, in which case the stream will be compressed.
func Encode(path string, obj interface{}) (err error) {
	enc, err := NewEncoder(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, enc.Close)
	return enc.Encode(obj)
}

// Encoder is an interface that matches gob.Encoder, json.Encoder, and yaml.Encoder
type Encoder interface {
	Encode(interface{}) error
}

// EncodeCloser is an encoder that can also close its underlying stream
type EncodeCloser struct {
	encoder Encoder
	closers []io.Closer
}

// Encode writes an object to the underlying stream
func (e *EncodeCloser) Encode(x interface{}) error {
	return e.encoder.Encode(x)
}

// Close closes the underlying stream
func (e *EncodeCloser) Close() error {
	var closeErr error
	// close in reverse order so compressors flush before the file is closed
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}

// NewEncoder opens the specified path, which may be local or on s3, and returns
// an encoder that writes in the format given by the file extension.
func NewEncoder(path string) (*EncodeCloser, error) {
	inpath := path
	compression, path := splitCompression(path)
	encoding := encodingOf(path)
	if encoding == "" {
		return nil, errors.Kindf(errors.Configuration, "could not find encoder for %s", inpath)
	}

	f, err := fileutil.NewBufferedWriter(inpath)
	if err != nil {
		return nil, err
	}
	closers := []io.Closer{f}

	var w io.Writer = f
	switch compression {
	case ".gz":
		gz := gzip.NewWriter(w)
		closers = append(closers, gz)
		w = gz
	case ".snappy":
		sn := snappy.NewBufferedWriter(w)
		closers = append(closers, sn)
		w = sn
	}

	var e Encoder
	switch encoding {
	case ".json":
		e = json.NewEncoder(w)
	case ".gob":
		e = gob.NewEncoder(w)
	case ".yaml":
		ye := yaml.NewEncoder(w)
		closers = append(closers, ye)
		e = ye
	}

	return &EncodeCloser{
		encoder: e,
		closers: closers,
	}, nil
}

func splitCompression(path string) (string, string) {
	for _, ext := range []string{".gz", ".snappy"} {
		if strings.HasSuffix(path, ext) {
			return ext, strings.TrimSuffix(path, ext)
		}
	}
	return "", path
}

func encodingOf(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return ".json"
	case strings.HasSuffix(path, ".gob"):
		return ".gob"
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return ".yaml"
	}
	return ""
}
