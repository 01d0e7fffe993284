package fileutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "pred", "cv_n5_test.train.pred")

	ok, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, WriteFile(path, []byte("\"id\",\"label_probability\"\n0,0.5\n")))

	ok, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\"id\",\"label_probability\"\n0,0.5\n", string(data))
}

func TestReadMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "s3://bucket/features/len_diff.train.smat", Join("s3://bucket/features", "len_diff.train.smat"))
	assert.Equal(t, "s3://bucket/a/c", Join("s3://bucket/a/b", "..", "c"))
	assert.Equal(t, filepath.Join("/data", "features", "x.smat"), Join("/data", "features", "x.smat"))
	assert.Equal(t, "", Join())
}
