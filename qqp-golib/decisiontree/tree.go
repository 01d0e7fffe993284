package decisiontree

import (
	"fmt"

	"github.com/qqpair/qqpair/qqp-golib/mathutil"
	"gonum.org/v1/gonum/mat"
)

// A Node represents a splitting decision of the form "x[FeatureIndex] < Threshold ?" in a decision tree
type Node struct {
	// FeatureIndex indicates which feature is used in this splitting decision
	FeatureIndex int `json:"feature_index"`
	// Threshold indicates the cutoff value between the left and right subtrees
	Threshold float64 `json:"threshold"`
	// LeftChild is the index of the node representing the left subtree
	LeftChild int `json:"left_child"`
	// LeftIsLeaf indicates whether the left subtree is a leaf node
	LeftIsLeaf bool `json:"left_is_leaf"`
	// RightChild is the index of the node representing the right subtree
	RightChild int `json:"right_child"`
	// RightIsLeaf indicates whether the right subtree is a leaf node
	RightIsLeaf bool `json:"right_is_leaf"`
	// Gain is the loss reduction achieved by the split when it was trained
	Gain float64 `json:"gain,omitempty"`
}

// A DecisionTree is a mapping from a feature space to real numbers implemented with a decision tree.
// A tree with no nodes is a single leaf.
type DecisionTree struct {
	// Nodes is a flat list of all nodes in the tree
	Nodes []Node `json:"nodes"`
	// Outputs is an array containing the outputs for each bin
	Outputs []float64 `json:"outputs"`
	// FeatureSize is the length of feature vectors processed by this tree
	FeatureSize int `json:"feature_size"`
	// Depth is the maximum depth of any leaf in the tree
	Depth int `json:"depth"`
}

// Bin drops a feature vector down a decision tree and returns the index of the bin that it ends up in
func (t *DecisionTree) Bin(x []float64) int {
	if len(x) != t.FeatureSize {
		panic(fmt.Sprintf("feature vector had length %d, expected %d", len(x), t.FeatureSize))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	cur := t.Nodes[0]
	for i := 0; i < t.Depth; i++ {
		if x[cur.FeatureIndex] < cur.Threshold {
			if cur.LeftIsLeaf {
				return cur.LeftChild
			}
			cur = t.Nodes[cur.LeftChild]
		} else {
			if cur.RightIsLeaf {
				return cur.RightChild
			}
			cur = t.Nodes[cur.RightChild]
		}
	}
	panic("tree traversal did not terminate")
}

// Evaluate drops a feature vector down a decision tree and returns the output associated with the bin
// it ends up in.
func (t *DecisionTree) Evaluate(x []float64) float64 {
	return t.Outputs[t.Bin(x)]
}

// An Ensemble is a boosted sum of decision trees with a logistic link.
type Ensemble struct {
	Trees []DecisionTree `json:"trees"`
	// BaseScore is the prior probability the boosting started from
	BaseScore float64 `json:"base_score"`
	// BestIteration is the round with the best validation loss, -1 if there was no validation set
	BestIteration int `json:"best_iteration"`
	// BestScore is the validation loss at BestIteration
	BestScore float64 `json:"best_score"`
	// FeatureSize is the width of the design matrix the ensemble was trained on
	FeatureSize int `json:"feature_size"`
}

// NTreeLimit is the number of trees to evaluate for predictions that stop at the best iteration.
func (e *Ensemble) NTreeLimit() int {
	if e.BestIteration < 0 {
		return len(e.Trees)
	}
	return e.BestIteration + 1
}

func (e *Ensemble) treeCount(ntree int) int {
	if ntree <= 0 || ntree > len(e.Trees) {
		return len(e.Trees)
	}
	return ntree
}

// Evaluate computes the sum of the outputs of all component decision trees
func (e *Ensemble) Evaluate(x []float64) float64 {
	return e.Margin(x, 0)
}

// Margin is the log-odds of x using the first ntree trees; ntree <= 0 uses all of them.
func (e *Ensemble) Margin(x []float64, ntree int) float64 {
	sum := mathutil.Logit(e.baseScore())
	for i := 0; i < e.treeCount(ntree); i++ {
		sum += e.Trees[i].Evaluate(x)
	}
	return sum
}

// Predict is the probability of x using the first ntree trees.
func (e *Ensemble) Predict(x []float64, ntree int) float64 {
	return mathutil.Sigmoid(e.Margin(x, ntree))
}

// PredictMatrix scores every row of X.
func (e *Ensemble) PredictMatrix(X mat.Matrix, ntree int) []float64 {
	rows, cols := X.Dims()
	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out[i] = e.Predict(row, ntree)
	}
	return out
}

func (e *Ensemble) baseScore() float64 {
	if e.BaseScore <= 0 || e.BaseScore >= 1 {
		return 0.5
	}
	return e.BaseScore
}

// Importance of each feature, keyed by feature index.
type Importance map[int]float64

// FScore counts how many splits use each feature in the first ntree trees.
func (e *Ensemble) FScore(ntree int) Importance {
	imp := make(Importance)
	for i := 0; i < e.treeCount(ntree); i++ {
		for _, n := range e.Trees[i].Nodes {
			imp[n.FeatureIndex]++
		}
	}
	return imp
}

// TotalGain sums the split gains of each feature in the first ntree trees.
func (e *Ensemble) TotalGain(ntree int) Importance {
	imp := make(Importance)
	for i := 0; i < e.treeCount(ntree); i++ {
		for _, n := range e.Trees[i].Nodes {
			imp[n.FeatureIndex] += n.Gain
		}
	}
	return imp
}
