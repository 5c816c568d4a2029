package boost

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emigo/core/model"
	"github.com/YuminosukeSato/emigo/metrics"
	"github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/pkg/log"
)

// GBMRegressor is a gradient-boosted regression model with a
// fit/predict/score interface. Hyperparameters are set through the
// With* builder methods before calling Fit.
type GBMRegressor struct {
	model.BaseEstimator

	// Hyperparameters
	NumIterations    int
	LearningRate     float64
	MaxDepth         int
	MinSamplesLeaf   int
	Lambda           float64
	MinLossReduction float64

	// Model
	Model *Model

	logger log.Logger
}

// NewGBMRegressor creates a regressor with default hyperparameters.
func NewGBMRegressor() *GBMRegressor {
	return &GBMRegressor{
		NumIterations:    100,
		LearningRate:     0.1,
		MaxDepth:         3,
		MinSamplesLeaf:   20,
		Lambda:           0.0,
		MinLossReduction: 0.0,
		logger:           log.GetLoggerWithName("boost.regressor"),
	}
}

// WithNumIterations sets the number of boosting iterations.
func (r *GBMRegressor) WithNumIterations(n int) *GBMRegressor {
	r.NumIterations = n
	return r
}

// WithLearningRate sets the shrinkage applied to each tree's contribution.
func (r *GBMRegressor) WithLearningRate(lr float64) *GBMRegressor {
	r.LearningRate = lr
	return r
}

// WithMaxDepth sets the maximum tree depth.
func (r *GBMRegressor) WithMaxDepth(depth int) *GBMRegressor {
	r.MaxDepth = depth
	return r
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func (r *GBMRegressor) WithMinSamplesLeaf(n int) *GBMRegressor {
	r.MinSamplesLeaf = n
	return r
}

// WithLambda sets the L2 regularization on leaf values.
func (r *GBMRegressor) WithLambda(lambda float64) *GBMRegressor {
	r.Lambda = lambda
	return r
}

// WithMinLossReduction sets the minimum loss reduction required to split.
func (r *GBMRegressor) WithMinLossReduction(g float64) *GBMRegressor {
	r.MinLossReduction = g
	return r
}

// Fit trains the model on X and y. y must be a column vector.
func (r *GBMRegressor) Fit(X, y mat.Matrix) error {
	rows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return errors.NewDimensionError("GBMRegressor.Fit", 1, yCols, 1)
	}
	if yRows != rows {
		return errors.NewDimensionError("GBMRegressor.Fit", rows, yRows, 0)
	}

	target := make([]float64, rows)
	for i := 0; i < rows; i++ {
		target[i] = y.At(i, 0)
	}

	trainer := NewTrainer(TrainingParams{
		NumIterations:    r.NumIterations,
		LearningRate:     r.LearningRate,
		MaxDepth:         r.MaxDepth,
		MinSamplesLeaf:   r.MinSamplesLeaf,
		Lambda:           r.Lambda,
		MinLossReduction: r.MinLossReduction,
	})
	if err := trainer.Fit(X, target); err != nil {
		return err
	}

	r.Model = trainer.GetModel()
	r.SetFitted()
	r.logger.Debug("Model fitted",
		log.RowsKey, rows,
		log.IterationKey, r.Model.NumIterations)
	return nil
}

// Predict returns predictions for X as an n x 1 matrix.
func (r *GBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !r.IsFitted() {
		return nil, errors.NewNotFittedError("GBMRegressor", "Predict")
	}
	pred, err := r.Model.Predict(X)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// Score returns the coefficient of determination (R²) on X, y.
func (r *GBMRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}

	rows, _ := y.Dims()
	yTrue := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yTrue.SetVec(i, y.At(i, 0))
	}
	yPred, ok := pred.(*mat.VecDense)
	if !ok {
		yPred = mat.VecDenseCopyOf(pred.(mat.Vector))
	}
	return metrics.R2Score(yTrue, yPred)
}

var (
	_ model.Fitter    = (*GBMRegressor)(nil)
	_ model.Predictor = (*GBMRegressor)(nil)
	_ model.Scorer    = (*GBMRegressor)(nil)
)
