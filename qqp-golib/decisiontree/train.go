package decisiontree

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/mathutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Dataset is a labeled design matrix.
type Dataset struct {
	Name   string
	X      *mat.Dense
	Labels []float64
}

// Rows in the dataset
func (d Dataset) Rows() int {
	if d.X == nil {
		return 0
	}
	r, _ := d.X.Dims()
	return r
}

func (d Dataset) check(cols int) error {
	if d.X == nil {
		return errors.Kindf(errors.DataIntegrity, "%s: no design matrix", d.Name)
	}
	r, c := d.X.Dims()
	if c != cols {
		return errors.Kindf(errors.DataIntegrity, "%s: %d columns, expected %d", d.Name, c, cols)
	}
	if len(d.Labels) != r {
		return errors.Kindf(errors.DataIntegrity, "%s: %d rows but %d labels", d.Name, r, len(d.Labels))
	}
	for i, l := range d.Labels {
		if l != 0 && l != 1 {
			return errors.Kindf(errors.DataIntegrity, "%s: label %v at row %d is not 0 or 1", d.Name, l, i)
		}
	}
	return nil
}

// Train fits a boosted ensemble on train with the logistic loss. Every
// watch set is evaluated after each round; early stopping follows the
// last one, and the ensemble keeps all trained trees with BestIteration
// marking where predictions should stop.
func Train(ctx context.Context, params Params, train Dataset, watches []Dataset, log *zap.Logger) (*Ensemble, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if train.Rows() == 0 {
		return nil, errors.Kindf(errors.DataIntegrity, "empty training set")
	}
	_, cols := train.X.Dims()
	if err := train.check(cols); err != nil {
		return nil, err
	}
	for _, w := range watches {
		if err := w.check(cols); err != nil {
			return nil, err
		}
	}

	b := newBuilder(params, train)
	ens := &Ensemble{
		BaseScore:     params.BaseScore,
		BestIteration: -1,
		FeatureSize:   cols,
	}
	base := mathutil.Logit(ens.baseScore())

	margins := filled(train.Rows(), base)
	watchMargins := make([][]float64, len(watches))
	for i, w := range watches {
		watchMargins[i] = filled(w.Rows(), base)
	}

	rng := rand.New(rand.NewSource(params.Seed))
	grad := make([]float64, train.Rows())
	hess := make([]float64, train.Rows())
	bestScore := math.Inf(1)

	for round := 0; round < params.NumRound; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b.gradients(margins, grad, hess)
		tree, err := b.grow(ctx, grad, hess, rng)
		if err != nil {
			return nil, err
		}
		ens.Trees = append(ens.Trees, tree)

		addTree(&tree, train.X, margins)
		fields := []zap.Field{zap.Int("round", round)}
		var last float64
		for i, w := range watches {
			addTree(&tree, w.X, watchMargins[i])
			last = marginLogLoss(w.Labels, watchMargins[i])
			fields = append(fields, zap.Float64(w.Name+"-logloss", last))
		}
		if params.VerboseEval > 0 && round%params.VerboseEval == 0 {
			log.Info("boosting", fields...)
		}

		if len(watches) == 0 {
			continue
		}
		if last < bestScore {
			bestScore = last
			ens.BestIteration = round
		} else if params.EarlyStop > 0 && round-ens.BestIteration >= params.EarlyStop {
			log.Info("early stopping",
				zap.Int("round", round),
				zap.Int("best_iteration", ens.BestIteration),
				zap.Float64("best_score", bestScore))
			break
		}
	}

	if ens.BestIteration >= 0 {
		ens.BestScore = bestScore
	}
	return ens, nil
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func addTree(t *DecisionTree, x *mat.Dense, margins []float64) {
	for i := range margins {
		margins[i] += t.Evaluate(x.RawRowView(i))
	}
}

func marginLogLoss(labels, margins []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	var sum float64
	for i, l := range labels {
		sum += mathutil.LogLoss(l, mathutil.Sigmoid(margins[i]))
	}
	return sum / float64(len(labels))
}

// builder grows trees with the exact greedy algorithm over presorted columns.
type builder struct {
	params Params
	labels []float64
	cols   [][]float64
	order  [][]int
	rows   int
}

func newBuilder(params Params, train Dataset) *builder {
	rows, ncols := train.X.Dims()
	b := &builder{
		params: params,
		labels: train.Labels,
		cols:   make([][]float64, ncols),
		order:  make([][]int, ncols),
		rows:   rows,
	}
	for f := 0; f < ncols; f++ {
		col := mat.Col(nil, f, train.X)
		idx := make([]int, rows)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, c int) bool { return col[idx[a]] < col[idx[c]] })
		b.cols[f] = col
		b.order[f] = idx
	}
	return b
}

func (b *builder) gradients(margins, grad, hess []float64) {
	for i, m := range margins {
		p := mathutil.Sigmoid(m)
		w := 1.0
		if b.labels[i] == 1 {
			w = b.params.ScalePosWeight
		}
		grad[i] = (p - b.labels[i]) * w
		hess[i] = math.Max(p*(1-p), 1e-16) * w
	}
}

type growNode struct {
	g, h      float64
	depth     int
	feature   int
	threshold float64
	gain      float64
	left      int
	right     int
}

type split struct {
	valid     bool
	gain      float64
	feature   int
	threshold float64
	gl, hl    float64
	gr, hr    float64
}

func (b *builder) grow(ctx context.Context, grad, hess []float64, rng *rand.Rand) (DecisionTree, error) {
	rowNode := make([]int, b.rows)
	root := growNode{left: -1, right: -1}
	for i := range rowNode {
		if b.params.Subsample < 1 && rng.Float64() >= b.params.Subsample {
			rowNode[i] = -1
			continue
		}
		root.g += grad[i]
		root.h += hess[i]
	}
	nodes := []growNode{root}
	features := b.sampleFeatures(rng)

	frontier := []int{0}
	for depth := 0; depth < b.params.MaxDepth && len(frontier) > 0; depth++ {
		best, err := b.findSplits(ctx, frontier, nodes, rowNode, grad, hess, features)
		if err != nil {
			return DecisionTree{}, err
		}

		var next []int
		for k, id := range frontier {
			s := best[k]
			if !s.valid {
				continue
			}
			left := len(nodes)
			nodes = append(nodes,
				growNode{g: s.gl, h: s.hl, depth: depth + 1, left: -1, right: -1},
				growNode{g: s.gr, h: s.hr, depth: depth + 1, left: -1, right: -1})
			nodes[id].feature = s.feature
			nodes[id].threshold = s.threshold
			nodes[id].gain = s.gain
			nodes[id].left = left
			nodes[id].right = left + 1
			next = append(next, left, left+1)
		}
		if len(next) == 0 {
			break
		}

		for i, id := range rowNode {
			if id < 0 || nodes[id].left < 0 {
				continue
			}
			n := nodes[id]
			if b.cols[n.feature][i] < n.threshold {
				rowNode[i] = n.left
			} else {
				rowNode[i] = n.right
			}
		}
		frontier = next
	}

	return b.toTree(nodes), nil
}

func (b *builder) sampleFeatures(rng *rand.Rand) []int {
	d := len(b.cols)
	if b.params.ColsampleByTree >= 1 {
		all := make([]int, d)
		for i := range all {
			all[i] = i
		}
		return all
	}
	k := int(b.params.ColsampleByTree * float64(d))
	if k < 1 {
		k = 1
	}
	picked := rng.Perm(d)[:k]
	sort.Ints(picked)
	return picked
}

func (b *builder) findSplits(ctx context.Context, frontier []int, nodes []growNode, rowNode []int, grad, hess []float64, features []int) ([]split, error) {
	slotOf := make([]int, len(nodes))
	for i := range slotOf {
		slotOf[i] = -1
	}
	for k, id := range frontier {
		slotOf[id] = k
	}

	perFeature := make([][]split, len(features))
	g, ctx := errgroup.WithContext(ctx)
	threads := b.params.NThread
	if threads < 1 {
		threads = 1
	}
	g.SetLimit(threads)
	for fi, f := range features {
		fi, f := fi, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perFeature[fi] = b.scanFeature(f, frontier, nodes, slotOf, rowNode, grad, hess)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := make([]split, len(frontier))
	for fi := range features {
		for k, s := range perFeature[fi] {
			if s.valid && (!best[k].valid || s.gain > best[k].gain) {
				best[k] = s
			}
		}
	}
	return best, nil
}

// scanFeature walks the rows in increasing order of feature f once, keeping
// running left-hand sums for every frontier node at the same time.
func (b *builder) scanFeature(f int, frontier []int, nodes []growNode, slotOf, rowNode []int, grad, hess []float64) []split {
	k := len(frontier)
	gl := make([]float64, k)
	hl := make([]float64, k)
	last := make([]float64, k)
	seen := make([]bool, k)
	best := make([]split, k)

	col := b.cols[f]
	minChild := b.params.MinChildWeight
	for _, i := range b.order[f] {
		id := rowNode[i]
		if id < 0 {
			continue
		}
		s := slotOf[id]
		if s < 0 {
			continue
		}

		v := col[i]
		if seen[s] && v != last[s] {
			n := nodes[frontier[s]]
			gr, hr := n.g-gl[s], n.h-hl[s]
			if hl[s] >= minChild && hr >= minChild {
				gain := b.splitGain(gl[s], hl[s], gr, hr, n.g, n.h)
				if gain > 1e-9 && (!best[s].valid || gain > best[s].gain) {
					threshold := (last[s] + v) / 2
					if threshold <= last[s] {
						threshold = v
					}
					best[s] = split{
						valid:     true,
						gain:      gain,
						feature:   f,
						threshold: threshold,
						gl:        gl[s],
						hl:        hl[s],
						gr:        gr,
						hr:        hr,
					}
				}
			}
		}
		gl[s] += grad[i]
		hl[s] += hess[i]
		last[s] = v
		seen[s] = true
	}
	return best
}

func (b *builder) thresholdL1(g float64) float64 {
	switch {
	case g > b.params.Alpha:
		return g - b.params.Alpha
	case g < -b.params.Alpha:
		return g + b.params.Alpha
	default:
		return 0
	}
}

func (b *builder) score(g, h float64) float64 {
	t := b.thresholdL1(g)
	return t * t / (h + b.params.Lambda)
}

func (b *builder) splitGain(gl, hl, gr, hr, g, h float64) float64 {
	return 0.5*(b.score(gl, hl)+b.score(gr, hr)-b.score(g, h)) - b.params.Gamma
}

func (b *builder) leafWeight(g, h float64) float64 {
	if h+b.params.Lambda == 0 {
		return 0
	}
	return -b.thresholdL1(g) / (h + b.params.Lambda) * b.params.Eta
}

// toTree flattens the grown nodes into the Node/Outputs layout.
func (b *builder) toTree(nodes []growNode) DecisionTree {
	index := make([]int, len(nodes))
	t := DecisionTree{FeatureSize: len(b.cols)}
	for id, n := range nodes {
		if n.left >= 0 {
			index[id] = len(t.Nodes)
			t.Nodes = append(t.Nodes, Node{})
			continue
		}
		index[id] = len(t.Outputs)
		t.Outputs = append(t.Outputs, b.leafWeight(n.g, n.h))
		if n.depth > t.Depth {
			t.Depth = n.depth
		}
	}
	for id, n := range nodes {
		if n.left < 0 {
			continue
		}
		t.Nodes[index[id]] = Node{
			FeatureIndex: n.feature,
			Threshold:    n.threshold,
			LeftChild:    index[n.left],
			LeftIsLeaf:   nodes[n.left].left < 0,
			RightChild:   index[n.right],
			RightIsLeaf:  nodes[n.right].left < 0,
			Gain:         n.gain,
		}
	}
	return t
}
