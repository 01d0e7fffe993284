package decisiontree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	e := Ensemble{
		Trees:         []DecisionTree{depthTwoTree()},
		BaseScore:     0.5,
		BestIteration: 0,
		BestScore:     0.41,
		FeatureSize:   2,
	}

	var buf bytes.Buffer
	require.NoError(t, e.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, e, *loaded)

	inputs := [][]float64{{0., 0.}, {0., 1.}, {5., 0.}, {10., 20}}
	for i, input := range inputs {
		assert.Equal(t, e.Evaluate(input), loaded.Evaluate(input), "at i=%d", i)
	}
}

func TestLoadGarbage(t *testing.T) {
	_, err := Load(bytes.NewBufferString("{not json"))
	assert.Error(t, err)
}
