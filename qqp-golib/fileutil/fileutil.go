// Package fileutil opens pipeline inputs and outputs that may live on local
// disk or on S3.
package fileutil

import (
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/qqpair/qqpair/qqp-golib/awsutil"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// NewReader opens a local or remote path for reading. If the path looks like
// "s3://bucket/path/to/object" then this will read an object from S3. Otherwise, this
// will read a path from the local filesystem.
func NewReader(path string) (io.ReadCloser, error) {
	if awsutil.IsS3URI(path) {
		return awsutil.NewS3Reader(path)
	}
	return os.Open(path)
}

// NamedWriteCloser is a file-like object extending io.WriteCloser with a string Name() similar to os.File.Name()
type NamedWriteCloser = awsutil.NamedWriteCloser

// NewBufferedWriter opens a local or remote path for writing. If the path starts with
// "s3://", then this will write to a local buffer, copying to s3 on close. Otherwise,
// this will create parent directories and write to the local FS.
func NewBufferedWriter(path string) (NamedWriteCloser, error) {
	if awsutil.IsS3URI(path) {
		return awsutil.NewBufferedS3Writer(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// ReadFile reads the contents of a local or remote path.
func ReadFile(path string) ([]byte, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteFile writes data to a local or remote path, replacing its contents.
func WriteFile(path string, data []byte) (err error) {
	w, err := NewBufferedWriter(path)
	if err != nil {
		return err
	}
	defer errors.Defer(&err, w.Close)

	_, err = w.Write(data)
	return err
}

// Exists reports whether a local or remote path exists.
func Exists(path string) (bool, error) {
	if awsutil.IsS3URI(path) {
		return awsutil.Exists(path)
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}

// Join is a url.URL scheme-safe join method. This allows for joining of local
// files as well as URI's.
func Join(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}

	u, err := url.Parse(parts[0])
	if err != nil || u.Scheme == "" {
		return filepath.Join(parts...)
	}

	elems := append([]string{u.Path}, parts[1:]...)
	u.Path = path.Join(elems...)
	return u.String()
}
