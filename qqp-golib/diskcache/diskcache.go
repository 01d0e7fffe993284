// Package diskcache is a size-bounded cache of byte blobs kept as files in a
// directory, evicting the least recently written entries first.
package diskcache

import (
	"encoding/binary"
	"encoding/hex"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	spooky "github.com/dgryski/go-spooky"
	"go.uber.org/zap"

	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// ErrNoSuchKey is returned by Cache.Get when a key does not exist in the cache
var ErrNoSuchKey = stderrors.New("key does not exist in cache")

// Options represents options for a cache
type Options struct {
	MaxSize         int64 // MaxSize is the maximum total size of the cache in bytes, 0 means unbounded
	BytesUntilFlush int64
	Logger          *zap.Logger
}

// Cache represents a disk-based cache
type Cache struct {
	Path            string
	opts            Options
	bytesSinceFlush int64
}

// Open creates a cache with contents stored as files in the given directory.
// It creates the directory if it does not already exist.
func Open(path string, opts Options) (*Cache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.Wrapf(err, "error creating cache dir %s", path)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		Path: path,
		opts: opts,
	}, nil
}

// Key returns the file name an entry is stored under.
func Key(key []byte) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], spooky.Hash64(key))
	return hex.EncodeToString(buf[:])
}

func (c *Cache) path(key []byte) string {
	return filepath.Join(c.Path, Key(key))
}

// Get looks up the value for the given key and returns it. If the key does not
// exist then ErrNoSuchKey is returned.
func (c *Cache) Get(key []byte) ([]byte, error) {
	r, err := c.GetReader(key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// GetReader looks up the value for the given key and returns a reader to it.
func (c *Cache) GetReader(key []byte) (io.ReadCloser, error) {
	r, err := os.Open(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSuchKey
		}
		return nil, err
	}
	return r, nil
}

// Exists reports whether the key exists.
func (c *Cache) Exists(key []byte) bool {
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Put adds a key/value pair to the cache.
func (c *Cache) Put(key []byte, val []byte) error {
	if err := c.reserve(int64(len(val))); err != nil {
		return err
	}
	return os.WriteFile(c.path(key), val, 0644)
}

// PutWriter adds a key/value pair to the cache via a io.WriteCloser. The entry
// becomes visible only once the writer is closed without error.
func (c *Cache) PutWriter(key []byte) (io.WriteCloser, error) {
	f, err := os.CreateTemp(c.Path, ".partial-")
	if err != nil {
		return nil, err
	}
	return &putWriter{f: f, c: c, dest: c.path(key)}, nil
}

type putWriter struct {
	f       *os.File
	c       *Cache
	dest    string
	written int64
	failed  bool
}

func (p *putWriter) Write(buf []byte) (int, error) {
	n, err := p.f.Write(buf)
	p.written += int64(n)
	if err != nil {
		p.failed = true
	}
	return n, err
}

func (p *putWriter) Close() error {
	if err := p.f.Close(); err != nil || p.failed {
		os.Remove(p.f.Name())
		if err == nil {
			err = errors.New("cache entry write failed")
		}
		return err
	}
	if err := p.c.reserve(p.written); err != nil {
		p.c.opts.Logger.Warn("error cleaning up cache", zap.Error(err))
	}
	return os.Rename(p.f.Name(), p.dest)
}

func (c *Cache) reserve(n int64) error {
	if c.opts.MaxSize <= 0 {
		return nil
	}
	c.bytesSinceFlush += n
	if c.bytesSinceFlush <= c.opts.BytesUntilFlush {
		return nil
	}
	if err := c.flushCapacity(n); err != nil {
		return errors.Wrapf(err, "error cleaning up cache")
	}
	c.bytesSinceFlush = 0
	return nil
}

// flushCapacity deletes old entries until there are at least n bytes left
// in the cache budget.
func (c *Cache) flushCapacity(n int64) error {
	entries, err := os.ReadDir(c.Path)
	if err != nil {
		return err
	}

	var files []os.FileInfo
	var sum int64
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, info)
		sum += info.Size()
	}

	if sum+n <= c.opts.MaxSize {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ModTime().Before(files[j].ModTime()) })

	for _, f := range files {
		if err := os.Remove(filepath.Join(c.Path, f.Name())); err != nil {
			return err
		}
		c.opts.Logger.Debug("evicted cache entry", zap.String("name", f.Name()), zap.Int64("size", f.Size()))
		sum -= f.Size()
		if sum+n <= c.opts.MaxSize {
			break
		}
	}
	return nil
}
