package qqplog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsSplitAcrossWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	log, err := NewWithWriters(&out, &errOut, "info")
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("model is running, waiting")
	log.Error("fold failed")
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "model is running, waiting", entry["msg"])
	assert.Contains(t, entry, "caller")

	assert.Contains(t, errOut.String(), "fold failed")
	assert.NotContains(t, errOut.String(), "waiting")
}

func TestUnknownLevel(t *testing.T) {
	_, err := NewWithWriters(&bytes.Buffer{}, &bytes.Buffer{}, "loud")
	require.Error(t, err)
}

func TestDurations(t *testing.T) {
	var d Durations
	d.Record("load features", 2*time.Second)
	d.Record("fold 0", 3*time.Millisecond)

	table := d.String()
	assert.Contains(t, table, "load features")
	assert.Contains(t, table, "2s")
	assert.Contains(t, table, "3ms")

	var out bytes.Buffer
	log, err := NewWithWriters(&out, &bytes.Buffer{}, "")
	require.NoError(t, err)
	d.Flush(log)
	assert.Contains(t, out.String(), "fold 0")
	assert.Empty(t, d)
}
