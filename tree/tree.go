// Package tree implements the shallow decision trees used as weak learners
// across the pipeline: regression trees inside the gradient booster's
// conceptual family and bagged regression/classification trees inside the
// missing-value imputer.
package tree

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emigo/pkg/errors"
)

// Params contains the growth limits for a single tree.
type Params struct {
	MaxDepth       int  // maximum depth, 0 means unbounded
	MinSamplesLeaf int  // minimum rows per leaf
	Classification bool // majority-vote leaves over integer class codes
}

// Node is one node of a fitted tree. Leaf nodes have LeftChild == -1.
type Node struct {
	Feature    int
	Threshold  float64
	LeftChild  int
	RightChild int
	LeafValue  float64
}

// Tree is a fitted decision tree. It is immutable after Fit.
type Tree struct {
	Nodes  []Node
	Params Params
}

// Fit grows a tree on the given features and target. Inputs must be finite;
// callers are responsible for filling missing cells beforehand.
func Fit(X *mat.Dense, y []float64, params Params) (*Tree, error) {
	rows, _ := X.Dims()
	if rows == 0 {
		return nil, errors.NewValueError("tree.Fit", "no rows")
	}
	if rows != len(y) {
		return nil, errors.NewDimensionError("tree.Fit", rows, len(y), 0)
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}

	t := &Tree{Params: params}
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	t.buildNode(X, y, indices, 0)
	return t, nil
}

// buildNode recursively grows the tree and returns the index of the created node.
func (t *Tree) buildNode(X *mat.Dense, y []float64, indices []int, depth int) int {
	nodeIdx := len(t.Nodes)

	// Check stopping conditions
	if (t.Params.MaxDepth > 0 && depth >= t.Params.MaxDepth) ||
		len(indices) < 2*t.Params.MinSamplesLeaf ||
		isPure(y, indices) {
		t.Nodes = append(t.Nodes, Node{
			LeftChild:  -1,
			RightChild: -1,
			LeafValue:  t.leafValue(y, indices),
		})
		return nodeIdx
	}

	best := t.findBestSplit(X, y, indices)
	if best.feature < 0 {
		t.Nodes = append(t.Nodes, Node{
			LeftChild:  -1,
			RightChild: -1,
			LeafValue:  t.leafValue(y, indices),
		})
		return nodeIdx
	}

	t.Nodes = append(t.Nodes, Node{
		Feature:   best.feature,
		Threshold: best.threshold,
	})

	var left, right []int
	for _, idx := range indices {
		if X.At(idx, best.feature) <= best.threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}

	leftChild := t.buildNode(X, y, left, depth+1)
	rightChild := t.buildNode(X, y, right, depth+1)
	t.Nodes[nodeIdx].LeftChild = leftChild
	t.Nodes[nodeIdx].RightChild = rightChild
	return nodeIdx
}

type split struct {
	feature   int
	threshold float64
	score     float64
}

// findBestSplit scans every feature for the threshold minimizing child
// impurity (sum of squared errors for regression, Gini for classification).
func (t *Tree) findBestSplit(X *mat.Dense, y []float64, indices []int) split {
	_, cols := X.Dims()
	best := split{feature: -1, score: math.Inf(1)}

	for j := 0; j < cols; j++ {
		s := t.findBestSplitForFeature(X, y, indices, j)
		if s.feature >= 0 && s.score < best.score {
			best = s
		}
	}
	return best
}

func (t *Tree) findBestSplitForFeature(X *mat.Dense, y []float64, indices []int, feature int) split {
	ordered := make([]int, len(indices))
	copy(ordered, indices)
	sort.Slice(ordered, func(a, b int) bool {
		return X.At(ordered[a], feature) < X.At(ordered[b], feature)
	})

	best := split{feature: -1, score: math.Inf(1)}
	if t.Params.Classification {
		// Incremental class counts on both sides
		total := make(map[float64]int)
		for _, idx := range ordered {
			total[y[idx]]++
		}
		left := make(map[float64]int)
		for i := 0; i < len(ordered)-1; i++ {
			idx := ordered[i]
			left[y[idx]]++
			if X.At(idx, feature) == X.At(ordered[i+1], feature) {
				continue
			}
			nLeft, nRight := i+1, len(ordered)-i-1
			if nLeft < t.Params.MinSamplesLeaf || nRight < t.Params.MinSamplesLeaf {
				continue
			}
			score := weightedGini(left, total, nLeft, nRight)
			if score < best.score {
				best = split{
					feature:   feature,
					threshold: (X.At(idx, feature) + X.At(ordered[i+1], feature)) / 2,
					score:     score,
				}
			}
		}
		return best
	}

	// Regression: minimize total SSE via running sums
	var totalSum, totalSq float64
	for _, idx := range ordered {
		totalSum += y[idx]
		totalSq += y[idx] * y[idx]
	}
	var leftSum, leftSq float64
	for i := 0; i < len(ordered)-1; i++ {
		idx := ordered[i]
		leftSum += y[idx]
		leftSq += y[idx] * y[idx]
		if X.At(idx, feature) == X.At(ordered[i+1], feature) {
			continue
		}
		nLeft, nRight := i+1, len(ordered)-i-1
		if nLeft < t.Params.MinSamplesLeaf || nRight < t.Params.MinSamplesLeaf {
			continue
		}
		rightSum := totalSum - leftSum
		rightSq := totalSq - leftSq
		sse := (leftSq - leftSum*leftSum/float64(nLeft)) +
			(rightSq - rightSum*rightSum/float64(nRight))
		if sse < best.score {
			best = split{
				feature:   feature,
				threshold: (X.At(idx, feature) + X.At(ordered[i+1], feature)) / 2,
				score:     sse,
			}
		}
	}
	return best
}

func weightedGini(left, total map[float64]int, nLeft, nRight int) float64 {
	giniLeft := 1.0
	for _, c := range left {
		p := float64(c) / float64(nLeft)
		giniLeft -= p * p
	}
	giniRight := 1.0
	for label, c := range total {
		r := c - left[label]
		p := float64(r) / float64(nRight)
		giniRight -= p * p
	}
	n := float64(nLeft + nRight)
	return float64(nLeft)/n*giniLeft + float64(nRight)/n*giniRight
}

// leafValue returns the mean target for regression and the majority class
// code for classification.
func (t *Tree) leafValue(y []float64, indices []int) float64 {
	if t.Params.Classification {
		counts := make(map[float64]int)
		for _, idx := range indices {
			counts[y[idx]]++
		}
		bestLabel, bestCount := 0.0, -1
		for label, c := range counts {
			if c > bestCount || (c == bestCount && label < bestLabel) {
				bestLabel, bestCount = label, c
			}
		}
		return bestLabel
	}
	sum := 0.0
	for _, idx := range indices {
		sum += y[idx]
	}
	return sum / float64(len(indices))
}

func isPure(y []float64, indices []int) bool {
	for _, idx := range indices[1:] {
		if y[idx] != y[indices[0]] {
			return false
		}
	}
	return true
}

// PredictRow walks the tree for a single feature row.
func (t *Tree) PredictRow(x []float64) float64 {
	nodeIdx := 0
	for {
		node := t.Nodes[nodeIdx]
		if node.LeftChild == -1 {
			return node.LeafValue
		}
		if x[node.Feature] <= node.Threshold {
			nodeIdx = node.LeftChild
		} else {
			nodeIdx = node.RightChild
		}
	}
}
