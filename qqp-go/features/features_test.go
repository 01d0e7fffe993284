package features

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

func pair(q1, q2 string) dataset.QuestionPair {
	return dataset.QuestionPair{Question1: q1, Question2: q2}
}

func col(t *testing.T, ex Extractor, pairs ...dataset.QuestionPair) []float64 {
	m, err := ex.Extract(pairs)
	require.NoError(t, err)
	return mat.Col(nil, 0, m)
}

func TestWordMatchShare(t *testing.T) {
	ex := WordMatchShare{}
	got := col(t, ex,
		pair("How do I learn Go", "how to learn go fast"),
		pair("What is the", "who is it"),
		pair("red apple", "green pear"),
		pair("apple apple", "Apple"),
	)
	// {learn go} vs {learn go fast}
	assert.InDelta(t, 4.0/5, got[0], 1e-12)
	assert.Equal(t, 0.0, got[1])
	assert.Equal(t, 0.0, got[2])
	assert.Equal(t, 1.0, got[3])
}

func TestTFIDFWordMatchShare(t *testing.T) {
	ex := NewTFIDFWordMatchShare()
	ex.Smoothing = 0
	ex.MinCount = 1
	c := &Corpus{Train: []dataset.QuestionPair{
		pair("go go go", "rust"),
		pair("go", "java java"),
	}}
	require.NoError(t, ex.Fit(c))

	// counts: go=4 rust=1 java=2
	got := col(t, ex, pair("go rust", "go java"))
	shared := 2 * (1.0 / 4)
	total := 1.0/4 + 1 + 1.0/4 + 1.0/2
	assert.InDelta(t, shared/total, got[0], 1e-12)

	ex = NewTFIDFWordMatchShare()
	require.NoError(t, ex.Fit(c))
	// rust is below the default min count and unseen words weigh nothing
	got = col(t, ex, pair("rust", "rust"), pair("kotlin", "kotlin"), pair("the", "go"))
	assert.Equal(t, []float64{0, 0, 0}, got)
}

func TestLength(t *testing.T) {
	pairs := []dataset.QuestionPair{pair("abcd", "ab"), pair("", ""), pair("héllo", "hello")}
	assert.Equal(t, []float64{2, 0, 0}, col(t, LenDiff{}, pairs...))
	assert.Equal(t, []float64{0.5, 0, 1}, col(t, LenDiffRate{}, pairs...))
}

func TestMatchRatio(t *testing.T) {
	got := col(t, MatchRatio{}, pair("abc", "abd"), pair("", ""), pair("Go", "go"), pair("ab", ""))
	assert.InDelta(t, 4.0/6, got[0], 1e-12)
	assert.Equal(t, []float64{0, 1, 0}, got[1:])
}

func TestDulNum(t *testing.T) {
	c := &Corpus{
		Train:  []dataset.QuestionPair{pair("a", "b"), pair("a ", "c"), pair("d", "d")},
		Online: []dataset.QuestionPair{pair("b", "a")},
	}
	ex := &DulNum{}
	_, err := ex.Extract(c.Train)
	assert.True(t, errors.Is(err, errors.InvariantViolation))

	require.NoError(t, ex.Fit(c))
	m, err := ex.Extract(c.Train)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 2, 3, 2}, m.RawRowView(0))
	assert.Equal(t, []float64{3, 1, 3, 1}, m.RawRowView(1))
	assert.Equal(t, []float64{1, 1, 1, 1}, m.RawRowView(2))
}

func TestID(t *testing.T) {
	c := &Corpus{
		Train:  []dataset.QuestionPair{pair("a", "b"), pair("c", "a")},
		Online: []dataset.QuestionPair{pair("a", "d")},
	}
	ex := &ID{}
	require.NoError(t, ex.Fit(c))
	assert.Equal(t, []float64{1, 2}, col(t, ex, c.Train...))
	assert.Equal(t, []float64{3}, col(t, ex, c.Online...))

	_, err := ex.Extract([]dataset.QuestionPair{pair("a", "zzz")})
	assert.True(t, errors.Is(err, errors.DataIntegrity))
}

// graphCorpus is a triangle a-b-c with a tail c-d, a separate edge e-f and
// a lone self pair g-g.
func graphCorpus() *Corpus {
	return &Corpus{
		Train:  []dataset.QuestionPair{pair("a", "b"), pair("b", "c"), pair("c", "a"), pair("c", "d")},
		Online: []dataset.QuestionPair{pair("e", "f"), pair("g", "g")},
	}
}

func TestComponentSize(t *testing.T) {
	c := graphCorpus()
	ex := &ComponentSize{}
	require.NoError(t, ex.Fit(c))
	assert.Equal(t, []float64{4, 4, 4, 4}, col(t, ex, c.Train...))
	assert.Equal(t, []float64{2, 1}, col(t, ex, c.Online...))
}

func TestMaxCliqueSize(t *testing.T) {
	c := graphCorpus()
	ex := &MaxCliqueSize{}
	require.NoError(t, ex.Fit(c))
	assert.Equal(t, []float64{3, 3, 3, 2}, col(t, ex, c.Train...))
	assert.Equal(t, []float64{2, 1}, col(t, ex, c.Online...))
}

func TestMaxCliqueLarger(t *testing.T) {
	// K5 over 0..4 plus a K4 over 4..7 sharing node 4
	var pairs []dataset.QuestionPair
	link := func(nodes []int) {
		for i := range nodes {
			for j := i + 1; j < len(nodes); j++ {
				pairs = append(pairs, pair(strconv.Itoa(nodes[i]), strconv.Itoa(nodes[j])))
			}
		}
	}
	link([]int{0, 1, 2, 3, 4})
	link([]int{4, 5, 6, 7})
	ex := &MaxCliqueSize{}
	require.NoError(t, ex.Fit(&Corpus{Train: pairs}))

	got := col(t, ex, pair("0", "4"), pair("4", "7"), pair("5", "6"))
	assert.Equal(t, []float64{5, 4, 4}, got)
}

func TestGraphNeighborhoods(t *testing.T) {
	// x is joined to every corner of the triangle a-b-c, y hangs off x and
	// z is isolated apart from its self pair
	c := &Corpus{Train: []dataset.QuestionPair{
		pair("a", "b"), pair("b", "c"), pair("c", "a"),
		pair("x", "a"), pair("x", "b"), pair("x", "c"), pair("x", "y"),
		pair("z", "z"),
	}}
	g := newQuestionGraph(c)
	sizes := g.components()
	assert.Len(t, sizes, 6)
	assert.Equal(t, 5, sizes[g.ids["y"]])
	assert.Equal(t, 1, sizes[g.ids["z"]])

	x, y, z := g.ids["x"], g.ids["y"], g.ids["z"]
	assert.Equal(t, 4, g.maxCliqueWith(x, x))
	assert.Equal(t, 4, g.maxCliqueWith(x, g.ids["a"]))
	assert.Equal(t, 2, g.maxCliqueWith(x, y))
	assert.Equal(t, 1, g.maxCliqueWith(z, z))
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		ex, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, ex.Name())
	}
	_, err := New("postag_cnt")
	assert.True(t, errors.Is(err, errors.Configuration))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Features = filepath.Join(dir, "feature")
	cfg.Model.NPart = 2
	names := []string{"word_match_share", "dul_num", "graph_edge_cc_size"}
	store, err := featurestore.New(cfg.Paths.Features, names, featurestore.Options{})
	require.NoError(t, err)

	c := graphCorpus()
	c.TrainLabels = []float64{1, 0, 1, 0}
	c.Online = append(c.Online, pair("h", "a"))
	require.NoError(t, Run(context.Background(), &cfg, store, c, names, nil))

	train, err := store.LoadAll("train")
	require.NoError(t, err)
	rows, cols := train.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 6, cols)

	online, err := store.LoadAll("test")
	require.NoError(t, err)
	rows, _ = online.Dims()
	assert.Equal(t, 3, rows)

	part, err := store.LoadAllPart("test", 1)
	require.NoError(t, err)
	rows, _ = part.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, mat.Row(nil, 2, online), mat.Row(nil, 0, part))

	err = Run(context.Background(), &cfg, store, c, []string{"nope"}, nil)
	assert.True(t, errors.Is(err, errors.Configuration))
}
