// Package featurestore loads and saves per-feature matrices and assembles
// them into design matrices.
package featurestore

import (
	"bytes"
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/golang/snappy"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-golib/diskcache"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// Options configure a Store.
type Options struct {
	// WillSave keeps merged matrices on disk under <dir>/merged
	WillSave bool
	// CacheSize is the number of merged matrices kept in memory, 0 disables it
	CacheSize int
	Logger    *zap.Logger
}

// Store reads the feature blocks named in Names from Dir. Block files are
// named <name>.<rawset>.smat, parted blocks <name>.<rawset>.smat.<%02d>.
type Store struct {
	Dir   string
	Names []string

	log    *zap.Logger
	memory *lru.Cache
	disk   *diskcache.Cache
}

// Range is the column span of one feature block in the merged matrix.
type Range struct {
	Name  string
	Start int
	End   int
}

// New opens a store.
func New(dir string, names []string, opts Options) (*Store, error) {
	if len(names) == 0 {
		return nil, errors.Kindf(errors.Configuration, "no feature names")
	}
	s := &Store{
		Dir:   dir,
		Names: append([]string(nil), names...),
		log:   opts.Logger,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if opts.CacheSize > 0 {
		c, err := lru.New(opts.CacheSize)
		if err != nil {
			return nil, errors.WrapKind(errors.Configuration, err, "error creating feature cache")
		}
		s.memory = c
	}
	if opts.WillSave {
		c, err := diskcache.Open(fileutil.Join(dir, "merged"), diskcache.Options{Logger: s.log})
		if err != nil {
			return nil, err
		}
		s.disk = c
	}
	return s, nil
}

// Path is the file of one feature block.
func (s *Store) Path(name, rawset string) string {
	return fileutil.Join(s.Dir, fmt.Sprintf("%s.%s.smat", name, rawset))
}

// PartPath is the file of one shard of a parted feature block.
func (s *Store) PartPath(name, rawset string, part int) string {
	return fmt.Sprintf("%s.%02d", s.Path(name, rawset), part)
}

// Load reads one feature block.
func (s *Store) Load(name, rawset string) (*mat.Dense, error) {
	return Load(s.Path(name, rawset))
}

// Save writes one feature block.
func (s *Store) Save(m mat.Matrix, name, rawset string) error {
	if err := Save(m, s.Path(name, rawset)); err != nil {
		return err
	}
	rows, cols := m.Dims()
	s.log.Info("saved feature", zap.String("name", name), zap.String("rawset", rawset),
		zap.Int("rows", rows), zap.Int("cols", cols))
	return nil
}

// SaveParts cuts a feature block into n shards and writes each one.
func (s *Store) SaveParts(m *mat.Dense, name, rawset string, n int) error {
	parts, err := SplitParts(m, n)
	if err != nil {
		return err
	}
	for i, p := range parts {
		if err := Save(p, s.PartPath(name, rawset, i)); err != nil {
			return err
		}
	}
	s.log.Info("saved feature parts", zap.String("name", name), zap.String("rawset", rawset), zap.Int("parts", n))
	return nil
}

// LoadAll assembles every named block of a rawset into one matrix.
func (s *Store) LoadAll(rawset string) (*mat.Dense, error) {
	return s.loadMerged(rawset, -1, func(name string) string { return s.Path(name, rawset) })
}

// LoadAllPart assembles every named block of one shard of a rawset.
func (s *Store) LoadAllPart(rawset string, part int) (*mat.Dense, error) {
	return s.loadMerged(rawset, part, func(name string) string { return s.PartPath(name, rawset, part) })
}

func (s *Store) cacheKey(rawset string, part int) string {
	return fmt.Sprintf("%s|%s|%d|%s", s.Dir, rawset, part, strings.Join(s.Names, ","))
}

func (s *Store) loadMerged(rawset string, part int, path func(string) string) (*mat.Dense, error) {
	key := s.cacheKey(rawset, part)
	if s.memory != nil {
		if m, ok := s.memory.Get(key); ok {
			return m.(*mat.Dense), nil
		}
	}

	m, err := s.readMerged(key)
	if err != nil {
		return nil, err
	}
	if m == nil {
		blocks := make([]*mat.Dense, 0, len(s.Names))
		for _, name := range s.Names {
			b, err := Load(path(name))
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
		}
		if m, err = Hstack(blocks...); err != nil {
			return nil, errors.Wrapf(err, "error merging features of %s", rawset)
		}
		if err := s.writeMerged(key, m); err != nil {
			return nil, err
		}
	}

	rows, cols := m.Dims()
	s.log.Info("loaded features", zap.String("rawset", rawset), zap.Int("part", part),
		zap.Int("rows", rows), zap.Int("cols", cols),
		zap.String("size", humanize.Bytes(uint64(rows*cols*8))))

	if s.memory != nil {
		s.memory.Add(key, m)
	}
	return m, nil
}

func (s *Store) readMerged(key string) (*mat.Dense, error) {
	if s.disk == nil {
		return nil, nil
	}
	buf, err := s.disk.Get([]byte(key))
	if err == diskcache.ErrNoSuchKey {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error reading merged features")
	}
	m, err := Decode(snappy.NewReader(bytes.NewReader(buf)))
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding merged features")
	}
	return m, nil
}

func (s *Store) writeMerged(key string, m *mat.Dense) (err error) {
	if s.disk == nil {
		return nil
	}
	w, err := s.disk.PutWriter([]byte(key))
	if err != nil {
		return errors.Wrapf(err, "error caching merged features")
	}
	defer errors.Defer(&err, w.Close)

	sw := snappy.NewBufferedWriter(w)
	if err := Encode(sw, m); err != nil {
		return err
	}
	return sw.Close()
}

// Ranges reports the column span of every named block in the merged
// matrix, reading only the headers of the rawset's files.
func (s *Store) Ranges(rawset string) ([]Range, error) {
	var ranges []Range
	var start int
	for _, name := range s.Names {
		_, cols, err := LoadShape(s.Path(name, rawset))
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, Range{Name: name, Start: start, End: start + cols})
		start += cols
	}
	return ranges, nil
}

// ColumnNames names every merged column <block>_<i>.
func ColumnNames(ranges []Range) []string {
	var names []string
	for _, r := range ranges {
		for i := 0; i < r.End-r.Start; i++ {
			names = append(names, fmt.Sprintf("%s_%d", r.Name, i))
		}
	}
	return names
}
