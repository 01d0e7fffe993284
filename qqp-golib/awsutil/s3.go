// Package awsutil reads and writes pipeline artifacts stored on S3.
package awsutil

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// probeRegion is used to discover the region a bucket lives in.
var probeRegion = "us-east-1"

// IsS3URI returns true if the path is an s3 uri.
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ValidateURI checks whether the given uri points to S3.
func ValidateURI(uri string) (*url.URL, error) {
	s3url, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if s3url.Scheme != "s3" {
		return nil, errors.Errorf("%s: url is not a s3 path", s3url.String())
	}
	if s3url.Host == "" {
		return nil, errors.Errorf("%s: missing bucket", s3url.String())
	}
	return s3url, nil
}

// Key returns the object key of a validated s3 url.
func Key(s3url *url.URL) string {
	return strings.TrimPrefix(s3url.Path, "/")
}

func clientFor(s3url *url.URL) (*s3.S3, error) {
	region, err := objectRegion(s3url)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to determine region of %s", s3url.Host)
	}

	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}
	return s3.New(sess, aws.NewConfig().WithRegion(region)), nil
}

func objectRegion(s3url *url.URL) (string, error) {
	sess, err := session.NewSession()
	if err != nil {
		return "", err
	}

	client := s3.New(sess, aws.NewConfig().WithRegion(probeRegion))
	out, err := client.GetBucketLocation(&s3.GetBucketLocationInput{
		Bucket: aws.String(s3url.Host),
	})
	if err != nil {
		return "", err
	}

	if out.LocationConstraint == nil || *out.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return *out.LocationConstraint, nil
}

// NewS3Reader returns a io.ReadCloser that will read the contents
// of the object at s3://bucket-name/path/to/file.
func NewS3Reader(uri string) (io.ReadCloser, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := clientFor(s3url)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s3url.Host),
		Key:    aws.String(Key(s3url)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting %s", uri)
	}
	return out.Body, nil
}

// Exists returns whether an object exists at the provided URI
func Exists(uri string) (bool, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return false, err
	}
	client, err := clientFor(s3url)
	if err != nil {
		return false, err
	}
	_, err = client.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s3url.Host),
		Key:    aws.String(Key(s3url)),
	})
	return err == nil, nil
}

// NamedWriteCloser is a file-like object extending io.WriteCloser with a string Name() similar to os.File.Name()
type NamedWriteCloser interface {
	io.WriteCloser
	Name() string
}

type bufferedS3Writer struct {
	f     *os.File
	s3uri *url.URL
}

func (w bufferedS3Writer) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Close uploads the buffered file to s3 and removes it from disk.
func (w bufferedS3Writer) Close() error {
	defer os.Remove(w.f.Name())
	defer w.f.Close()

	if err := w.f.Sync(); err != nil {
		return err
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	client, err := clientFor(w.s3uri)
	if err != nil {
		return err
	}

	_, err = client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(w.s3uri.Host),
		Key:    aws.String(Key(w.s3uri)),
		Body:   w.f,
	})
	if err != nil {
		return fmt.Errorf("error uploading %s: %v", w.s3uri, err)
	}
	return nil
}

func (w bufferedS3Writer) Name() string {
	return w.s3uri.String()
}

// NewBufferedS3Writer returns a writer that buffers to a temp file and
// uploads to S3 on Close.
func NewBufferedS3Writer(uri string) (NamedWriteCloser, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "s3buffer")
	if err != nil {
		return nil, err
	}
	return bufferedS3Writer{f: f, s3uri: s3url}, nil
}
