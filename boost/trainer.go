// Package boost implements gradient-boosted regression trees: an additive
// ensemble of shallow trees where each stage fits the negative gradient of
// the squared-error loss, scaled by the learning rate. The ensemble size is
// a fixed configuration value; there is no internal early stopping.
package boost

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/pkg/log"
)

// TrainingParams contains all training hyperparameters
type TrainingParams struct {
	// Basic parameters
	NumIterations  int     `json:"num_iterations"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`

	// Regularization
	Lambda           float64 `json:"lambda_l2"`
	MinLossReduction float64 `json:"min_loss_reduction"`

	// Other
	Verbosity int `json:"verbosity"`
}

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature    int
	Threshold  float64
	Gain       float64
	LeftCount  int
	RightCount int
	LeftGrad   float64
	RightGrad  float64
	LeftHess   float64
	RightHess  float64
}

// Trainer implements the gradient boosting training algorithm
type Trainer struct {
	params TrainingParams

	// Data
	X *mat.Dense
	y []float64

	// Gradient and Hessian of the squared-error loss
	gradients []float64
	hessians  []float64

	// Current ensemble prediction per row, kept incrementally
	predictions []float64

	// Trees
	trees []Tree

	iteration int
	initScore float64
}

// NewTrainer creates a new trainer, filling zero-valued params with defaults.
func NewTrainer(params TrainingParams) *Trainer {
	if params.NumIterations == 0 {
		params.NumIterations = 100
	}
	if params.LearningRate == 0 {
		params.LearningRate = 0.1
	}
	if params.MaxDepth == 0 {
		params.MaxDepth = 3
	}
	if params.MinSamplesLeaf == 0 {
		params.MinSamplesLeaf = 20
	}

	return &Trainer{params: params}
}

// Fit trains the boosted ensemble on X and y.
func (t *Trainer) Fit(X mat.Matrix, y []float64) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("boost.Trainer.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != len(y) {
		return errors.NewDimensionError("boost.Trainer.Fit", rows, len(y), 0)
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewValueError("boost.Trainer.Fit", "target contains NaN or Inf")
		}
	}

	t.X = mat.DenseCopyOf(X)
	t.y = y

	// Initial score for squared error is the target mean.
	sum := 0.0
	for _, v := range y {
		sum += v
	}
	t.initScore = sum / float64(rows)

	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.predictions = make([]float64, rows)
	for i := range t.predictions {
		t.predictions[i] = t.initScore
	}

	// Main training loop
	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.iteration = iter
		t.calculateGradients()

		tree, err := t.buildTree()
		if err != nil {
			return errors.Wrapf(err, "tree building failed at iteration %d", iter)
		}
		t.trees = append(t.trees, tree)
		t.updatePredictions(tree)

		if err := errors.CheckNumericalStability("predictions", t.predictions, iter); err != nil {
			return err
		}

		if t.params.Verbosity > 0 && iter%10 == 0 {
			logger := log.GetLoggerWithName("boost.trainer")
			logger.Debug("Training progress",
				log.IterationKey, iter,
				"loss", t.calculateLoss())
		}
	}

	return nil
}

// calculateGradients computes gradients and hessians of the squared-error
// loss at the current predictions.
func (t *Trainer) calculateGradients() {
	for i := range t.y {
		t.gradients[i] = t.predictions[i] - t.y[i]
		t.hessians[i] = 1.0
	}
}

// buildTree constructs one regression tree on the current gradients.
func (t *Trainer) buildTree() (Tree, error) {
	tree := Tree{
		TreeIndex:     t.iteration,
		ShrinkageRate: t.params.LearningRate,
	}

	rows, _ := t.X.Dims()
	rootIndices := make([]int, rows)
	for i := 0; i < rows; i++ {
		rootIndices[i] = i
	}

	t.buildNode(&tree, rootIndices, 0)
	return tree, nil
}

// buildNode recursively builds tree nodes and returns the created index.
func (t *Trainer) buildNode(tree *Tree, indices []int, depth int) int {
	nodeIdx := len(tree.Nodes)

	// Check stopping conditions
	if (t.params.MaxDepth > 0 && depth >= t.params.MaxDepth) ||
		len(indices) < 2*t.params.MinSamplesLeaf {
		tree.Nodes = append(tree.Nodes, Node{
			LeafValue:  t.calculateLeafValue(indices),
			LeftChild:  -1,
			RightChild: -1,
		})
		return nodeIdx
	}

	bestSplit := t.findBestSplit(indices)

	// A split must reduce the loss by at least MinLossReduction.
	if bestSplit.Feature < 0 || bestSplit.Gain < t.params.MinLossReduction {
		tree.Nodes = append(tree.Nodes, Node{
			LeafValue:  t.calculateLeafValue(indices),
			LeftChild:  -1,
			RightChild: -1,
		})
		return nodeIdx
	}

	tree.Nodes = append(tree.Nodes, Node{
		SplitFeature: bestSplit.Feature,
		Threshold:    bestSplit.Threshold,
		Gain:         bestSplit.Gain,
	})

	var leftIndices, rightIndices []int
	for _, idx := range indices {
		if t.X.At(idx, bestSplit.Feature) <= bestSplit.Threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}

	leftChild := t.buildNode(tree, leftIndices, depth+1)
	rightChild := t.buildNode(tree, rightIndices, depth+1)
	tree.Nodes[nodeIdx].LeftChild = leftChild
	tree.Nodes[nodeIdx].RightChild = rightChild
	return nodeIdx
}

// findBestSplit finds the best split for a set of samples
func (t *Trainer) findBestSplit(indices []int) SplitInfo {
	_, cols := t.X.Dims()
	bestSplit := SplitInfo{Feature: -1, Gain: math.Inf(-1)}

	for j := 0; j < cols; j++ {
		split := t.findBestSplitForFeature(indices, j)
		if split.Feature >= 0 && split.Gain > bestSplit.Gain {
			bestSplit = split
		}
	}
	return bestSplit
}

// findBestSplitForFeature finds the best split for a specific feature
func (t *Trainer) findBestSplitForFeature(indices []int, feature int) SplitInfo {
	ordered := make([]int, len(indices))
	copy(ordered, indices)
	sort.Slice(ordered, func(a, b int) bool {
		return t.X.At(ordered[a], feature) < t.X.At(ordered[b], feature)
	})

	totalGrad, totalHess := 0.0, 0.0
	for _, idx := range ordered {
		totalGrad += t.gradients[idx]
		totalHess += t.hessians[idx]
	}

	bestSplit := SplitInfo{Feature: -1, Gain: math.Inf(-1)}
	leftGrad, leftHess := 0.0, 0.0
	leftCount := 0

	for i := 0; i < len(ordered)-1; i++ {
		idx := ordered[i]
		leftGrad += t.gradients[idx]
		leftHess += t.hessians[idx]
		leftCount++

		// Skip if same value
		if t.X.At(idx, feature) == t.X.At(ordered[i+1], feature) {
			continue
		}

		rightGrad := totalGrad - leftGrad
		rightHess := totalHess - leftHess
		rightCount := len(ordered) - leftCount

		if leftCount < t.params.MinSamplesLeaf || rightCount < t.params.MinSamplesLeaf {
			continue
		}

		gain := t.calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess)
		if gain > bestSplit.Gain {
			bestSplit = SplitInfo{
				Feature:    feature,
				Threshold:  (t.X.At(idx, feature) + t.X.At(ordered[i+1], feature)) / 2,
				Gain:       gain,
				LeftCount:  leftCount,
				RightCount: rightCount,
				LeftGrad:   leftGrad,
				RightGrad:  rightGrad,
				LeftHess:   leftHess,
				RightHess:  rightHess,
			}
		}
	}

	return bestSplit
}

// calculateSplitGain calculates the loss reduction from a split.
func (t *Trainer) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := t.params.Lambda

	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)

	return 0.5 * (leftScore + rightScore - totalScore)
}

// calculateLeafValue calculates the optimal value for a leaf node
func (t *Trainer) calculateLeafValue(indices []int) float64 {
	sumGrad, sumHess := 0.0, 0.0
	for _, idx := range indices {
		sumGrad += t.gradients[idx]
		sumHess += t.hessians[idx]
	}

	// Ensure numerical stability
	epsilon := 1e-10
	if math.Abs(sumHess) < epsilon {
		sumHess = epsilon
	}

	// Optimal leaf value with L2 regularization
	return -sumGrad / (sumHess + t.params.Lambda + epsilon)
}

// updatePredictions adds the new tree's shrunken contribution to the cached
// ensemble predictions.
func (t *Trainer) updatePredictions(tree Tree) {
	rows, cols := t.X.Dims()
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, t.X)
		t.predictions[i] += t.params.LearningRate * tree.PredictRow(x)
	}
}

// calculateLoss calculates the current mean squared-error loss.
func (t *Trainer) calculateLoss() float64 {
	loss := 0.0
	for i := range t.y {
		diff := t.predictions[i] - t.y[i]
		loss += diff * diff
	}
	return loss / float64(len(t.y))
}

// GetModel returns the trained model
func (t *Trainer) GetModel() *Model {
	_, cols := t.X.Dims()
	return &Model{
		Trees:         t.trees,
		NumIterations: len(t.trees),
		NumFeatures:   cols,
		LearningRate:  t.params.LearningRate,
		InitScore:     t.initScore,
	}
}
