package boost

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emigo/core/parallel"
	"github.com/YuminosukeSato/emigo/pkg/errors"
)

// Node represents a single node in a decision tree. A node with
// LeftChild == -1 is a leaf.
type Node struct {
	SplitFeature int     `json:"split_feature"`
	Threshold    float64 `json:"threshold"`
	LeftChild    int     `json:"left_child"`
	RightChild   int     `json:"right_child"`
	LeafValue    float64 `json:"leaf_value"`
	Gain         float64 `json:"gain"`
}

// Tree represents a single decision tree in the ensemble.
type Tree struct {
	TreeIndex     int     `json:"tree_index"`
	Nodes         []Node  `json:"nodes"`
	ShrinkageRate float64 `json:"shrinkage"`
}

// PredictRow walks the tree for one feature row and returns the raw
// (unshrunken) leaf value.
func (t *Tree) PredictRow(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.LeftChild < 0 {
			return node.LeafValue
		}
		if x[node.SplitFeature] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

// Model holds a trained gradient-boosted ensemble. The prediction for a row
// is InitScore plus the learning-rate-scaled sum over all tree outputs.
type Model struct {
	Trees         []Tree  `json:"trees"`
	NumIterations int     `json:"num_iterations"`
	NumFeatures   int     `json:"num_features"`
	LearningRate  float64 `json:"learning_rate"`
	InitScore     float64 `json:"init_score"`
}

// predictRow sums the shrunken tree contributions for one row.
func (m *Model) predictRow(x []float64) float64 {
	pred := m.InitScore
	for i := range m.Trees {
		pred += m.LearningRate * m.Trees[i].PredictRow(x)
	}
	return pred
}

// Predict returns the ensemble prediction for every row of X.
func (m *Model) Predict(X mat.Matrix) (*mat.VecDense, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("boost.Model.Predict", m.NumFeatures, cols, 1)
	}

	out := mat.NewVecDense(rows, nil)
	parallel.ParallelizeWithThreshold(rows, 256, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			out.SetVec(i, m.predictRow(x))
		}
	})

	for i := 0; i < rows; i++ {
		if err := errors.CheckScalar("boost.Model.Predict", out.AtVec(i), i); err != nil {
			return nil, err
		}
	}
	return out, nil
}
