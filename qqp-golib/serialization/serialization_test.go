package serialization

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqpair/qqpair/qqp-golib/errors"
)

type record struct {
	Name  string  `json:"name" yaml:"name"`
	Score float64 `json:"score" yaml:"score"`
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"r.json", "r.json.gz", "r.gob.snappy", "r.yaml", "r.yml.gz"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Encode(path, record{Name: "fold", Score: 0.25}), name)

		var got record
		require.NoError(t, Decode(path, &got), name)
		assert.Equal(t, record{Name: "fold", Score: 0.25}, got, name)
	}
}

func TestDecodeStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.json")
	enc, err := NewEncoder(path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, enc.Encode(record{Score: float64(i)}))
	}
	require.NoError(t, enc.Close())

	var scores []float64
	err = Decode(path, func(r *record) error {
		scores = append(scores, r.Score)
		if len(scores) == 2 {
			return ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, scores)
}

func TestUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.txt")
	err := Encode(path, record{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.Configuration))
}
