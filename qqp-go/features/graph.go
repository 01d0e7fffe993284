package features

import (
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"

	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// questionGraph has one node per distinct trimmed question and one edge
// per pair, over the train and online tables together.
type questionGraph struct {
	ids   map[string]int64
	graph *simple.UndirectedGraph
}

func newQuestionGraph(c *Corpus) *questionGraph {
	g := &questionGraph{ids: make(map[string]int64), graph: simple.NewUndirectedGraph()}
	for _, pairs := range [][]dataset.QuestionPair{c.Train, c.Online} {
		for _, p := range pairs {
			a, b := g.node(p.Question1), g.node(p.Question2)
			if a != b {
				g.graph.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
			}
		}
	}
	return g
}

func (g *questionGraph) node(q string) int64 {
	q = strings.TrimSpace(q)
	id, ok := g.ids[q]
	if !ok {
		id = int64(len(g.ids))
		g.ids[q] = id
		g.graph.AddNode(simple.Node(id))
	}
	return id
}

func (g *questionGraph) edge(p dataset.QuestionPair) (int64, int64, error) {
	a, ok := g.ids[strings.TrimSpace(p.Question1)]
	if !ok {
		return 0, 0, errors.Kindf(errors.DataIntegrity, "question %q is not in the graph", p.Question1)
	}
	b, ok := g.ids[strings.TrimSpace(p.Question2)]
	if !ok {
		return 0, 0, errors.Kindf(errors.DataIntegrity, "question %q is not in the graph", p.Question2)
	}
	return a, b, nil
}

// components maps every node to the size of its connected component.
func (g *questionGraph) components() map[int64]int {
	sizes := make(map[int64]int, len(g.ids))
	for _, cc := range topo.ConnectedComponents(g.graph) {
		for _, n := range cc {
			sizes[n.ID()] = len(cc)
		}
	}
	return sizes
}

// maxCliqueWith is the size of the largest clique containing both a and b:
// the pair itself plus the largest clique among their common neighbors.
// Cliques are enumerated on that neighborhood only, never on the whole graph.
func (g *questionGraph) maxCliqueWith(a, b int64) int {
	base := 2
	var cands []graph.Node
	nbrs := graph.NodesOf(g.graph.From(a))
	if a == b {
		base = 1
		cands = nbrs
	} else {
		for _, v := range nbrs {
			if v.ID() != b && g.graph.HasEdgeBetween(b, v.ID()) {
				cands = append(cands, v)
			}
		}
	}
	if len(cands) == 0 {
		return base
	}

	sub := simple.NewUndirectedGraph()
	for i, u := range cands {
		sub.AddNode(simple.Node(u.ID()))
		for _, v := range cands[:i] {
			if g.graph.HasEdgeBetween(u.ID(), v.ID()) {
				sub.SetEdge(simple.Edge{F: simple.Node(u.ID()), T: simple.Node(v.ID())})
			}
		}
	}
	best := 0
	for _, clique := range topo.BronKerbosch(sub) {
		best = max(best, len(clique))
	}
	return base + best
}

// ComponentSize is the number of questions in the connected component of
// the question graph that holds the pair.
type ComponentSize struct {
	graph *questionGraph
	sizes map[int64]int
}

// Name implements Extractor.
func (*ComponentSize) Name() string { return "graph_edge_cc_size" }

// Fit implements Extractor.
func (e *ComponentSize) Fit(c *Corpus) error {
	e.graph = newQuestionGraph(c)
	e.sizes = e.graph.components()
	return nil
}

// Extract implements Extractor.
func (e *ComponentSize) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	if e.graph == nil {
		return nil, errors.Kindf(errors.InvariantViolation, "graph_edge_cc_size is not fitted")
	}
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		a, _, err := e.graph.edge(p)
		if err != nil {
			return nil, err
		}
		out[i] = float64(e.sizes[a])
	}
	return column(len(pairs), func(i int) float64 { return out[i] }), nil
}

// MaxCliqueSize is the size of the largest clique of the question graph
// that contains the pair's edge.
type MaxCliqueSize struct {
	graph *questionGraph
}

// Name implements Extractor.
func (*MaxCliqueSize) Name() string { return "graph_edge_max_clique_size" }

// Fit implements Extractor.
func (e *MaxCliqueSize) Fit(c *Corpus) error {
	e.graph = newQuestionGraph(c)
	return nil
}

// Extract implements Extractor.
func (e *MaxCliqueSize) Extract(pairs []dataset.QuestionPair) (*mat.Dense, error) {
	if e.graph == nil {
		return nil, errors.Kindf(errors.InvariantViolation, "graph_edge_max_clique_size is not fitted")
	}
	type key struct{ a, b int64 }
	memo := make(map[key]int)
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		a, b, err := e.graph.edge(p)
		if err != nil {
			return nil, err
		}
		if a > b {
			a, b = b, a
		}
		k := key{a, b}
		size, ok := memo[k]
		if !ok {
			size = e.graph.maxCliqueWith(a, b)
			memo[k] = size
		}
		out[i] = float64(size)
	}
	return column(len(pairs), func(i int) float64 { return out[i] }), nil
}
