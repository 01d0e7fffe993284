package tfidf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qqpair/qqpair/qqp-golib/text"
)

func TestWeights(t *testing.T) {
	c := NewCounter()
	c.Add(text.Tokens{"go", "is", "fun", "go"})
	c.Add(text.Tokens{"go", "is"})
	require.Equal(t, 3, c.Count("go"))
	require.Equal(t, 3, c.Len())

	w := c.Weights(DefaultSmoothing, DefaultMinCount)
	assert.InDelta(t, 1/10003.0, w.Weight("go"), 1e-12)
	assert.InDelta(t, 1/10002.0, w.Weight("is"), 1e-12)
	assert.Equal(t, 0.0, w.Weight("fun"))
	assert.Equal(t, 0.0, w.Weight("unseen"))
	assert.InDelta(t, 2/10003.0+1/10002.0, w.Sum(text.Tokens{"go", "go", "is", "fun"}), 1e-12)
}
