package ml

import (
	"errors"
	"fmt"
)

// DecisionTree is a regression tree stored as a flat node array, root at index 0.
type DecisionTree struct {
	nodes     []TreeNode
	nFeatures int
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// NewDecisionTree validates the node layout and returns a tree over nFeatures inputs.
func NewDecisionTree(nodes []TreeNode, nFeatures int) (*DecisionTree, error) {
	if len(nodes) == 0 {
		return nil, errors.New("tree has no nodes")
	}
	if nFeatures <= 0 {
		return nil, errors.New("n_features must be positive")
	}
	for i, node := range nodes {
		if node.IsLeaf {
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= nFeatures {
			return nil, fmt.Errorf("node %d: feature index %d out of range", i, node.FeatureIdx)
		}
		// children always follow their parent, which also rules out cycles
		if node.LeftChild <= i || node.LeftChild >= len(nodes) {
			return nil, fmt.Errorf("node %d: invalid left child %d", i, node.LeftChild)
		}
		if node.RightChild <= i || node.RightChild >= len(nodes) {
			return nil, fmt.Errorf("node %d: invalid right child %d", i, node.RightChild)
		}
	}
	return &DecisionTree{nodes: nodes, nFeatures: nFeatures}, nil
}

func (dt *DecisionTree) NumFeatures() int {
	return dt.nFeatures
}

func (dt *DecisionTree) Nodes() []TreeNode {
	return append([]TreeNode(nil), dt.nodes...)
}

func (dt *DecisionTree) Predict(features []float64) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("tree has no nodes")
	}
	if len(features) != dt.nFeatures {
		return 0, fmt.Errorf("%w: tree expects %d features, got %d", ErrInference, dt.nFeatures, len(features))
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		// NaN compares false and goes right
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// RandomForest averages the predictions of its trees.
type RandomForest struct {
	trees []*DecisionTree
}

func NewRandomForest(trees []*DecisionTree) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	n := trees[0].NumFeatures()
	for i, tree := range trees[1:] {
		if tree.NumFeatures() != n {
			return nil, fmt.Errorf("tree %d expects %d features, tree 0 expects %d", i+1, tree.NumFeatures(), n)
		}
	}
	return &RandomForest{trees: trees}, nil
}

func (rf *RandomForest) NumFeatures() int {
	return rf.trees[0].NumFeatures()
}

func (rf *RandomForest) Predict(features []float64) (float64, error) {
	sum := 0.0
	for _, tree := range rf.trees {
		value, err := tree.Predict(features)
		if err != nil {
			return 0, err
		}
		sum += value
	}
	return sum / float64(len(rf.trees)), nil
}
