// Package impute fills missing cells using per-column bagged-tree estimators
// learned from a reference table. Fitted state is immutable and applied, not
// refit, to any table sharing the reference schema.
package impute

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emigo/core/model"
	"github.com/YuminosukeSato/emigo/dataset"
	"github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/pkg/log"
	"github.com/YuminosukeSato/emigo/tree"
)

// Imputer learns one bagged-tree estimator per column that has missing
// values in the reference table. Each estimator predicts its column from all
// other columns of the same row. The identifier column is never part of the
// model (the Table carries it out of band).
type Imputer struct {
	model.BaseEstimator

	// Hyperparameters of the bagged weak learners.
	NEstimators    int
	MaxDepth       int
	MinSamplesLeaf int
	Seed           uint64

	// Fitted state.
	Columns    []dataset.Column
	Estimators map[string]*ColumnEstimator
	Fallback   map[string]float64 // column mean (numeric) or mode (categorical)
}

// ColumnEstimator is the fitted per-column model.
type ColumnEstimator struct {
	Target     string
	Predictors []string
	Bag        *tree.Bagging
}

// NewImputer creates an Imputer with the reference defaults.
func NewImputer() *Imputer {
	return &Imputer{
		NEstimators:    25,
		MaxDepth:       5,
		MinSamplesLeaf: 3,
		Seed:           42,
	}
}

// WithSeed sets the resampling seed.
func (im *Imputer) WithSeed(seed uint64) *Imputer {
	im.Seed = seed
	return im
}

// Fit learns the per-column estimators from the reference table. Columns
// without any observed value get no estimator; Transform will then report
// the gap as ImputationIncompleteError instead of silently propagating NaN.
func (im *Imputer) Fit(ref *dataset.Table) error {
	if ref.Rows() == 0 {
		return errors.NewModelError("Imputer.Fit", "empty reference table", errors.ErrEmptyData)
	}

	logger := log.GetLoggerWithName("impute")
	rng := rand.New(rand.NewPCG(im.Seed, im.Seed))

	cols := make([]dataset.Column, 0, ref.NumColumns())
	for _, name := range ref.ColumnNames() {
		c, _ := ref.Column(name)
		cols = append(cols, c)
	}
	im.Columns = cols
	im.Fallback = make(map[string]float64, len(cols))
	im.Estimators = make(map[string]*ColumnEstimator)

	// Column-wise fallback statistics over observed cells. These rough-fill
	// predictor gaps when fitting and applying the per-column models.
	for j, c := range cols {
		fb, ok := columnFallback(ref, j, c.Kind)
		if ok {
			im.Fallback[c.Name] = fb
		}
	}

	for j, c := range cols {
		missing := ref.MissingInColumn(c.Name)
		if missing == 0 {
			continue
		}
		if _, ok := im.Fallback[c.Name]; !ok {
			// Nothing observed to learn from; leave the column without an
			// estimator so Transform fails loudly.
			logger.Warn("column has no observed values",
				log.ColumnKey, c.Name,
				log.MissingKey, missing)
			continue
		}

		est, err := im.fitColumn(ref, j, c, rng)
		if err != nil {
			return errors.Wrapf(err, "Imputer.Fit: column %q", c.Name)
		}
		im.Estimators[c.Name] = est
		logger.Debug("fitted column estimator",
			log.ColumnKey, c.Name,
			log.MissingKey, missing)
	}

	im.SetFitted()
	return nil
}

// fitColumn trains a bagged ensemble predicting column j from the remaining
// columns, using only rows where column j is observed.
func (im *Imputer) fitColumn(ref *dataset.Table, j int, c dataset.Column, rng *rand.Rand) (*ColumnEstimator, error) {
	predictors := make([]string, 0, ref.NumColumns()-1)
	predIdx := make([]int, 0, ref.NumColumns()-1)
	for k, name := range ref.ColumnNames() {
		if k != j {
			predictors = append(predictors, name)
			predIdx = append(predIdx, k)
		}
	}

	var rows []int
	for i := 0; i < ref.Rows(); i++ {
		if !ref.IsMissing(i, j) {
			rows = append(rows, i)
		}
	}

	X := mat.NewDense(len(rows), len(predIdx), nil)
	y := make([]float64, len(rows))
	for a, i := range rows {
		for b, k := range predIdx {
			X.Set(a, b, im.observedOrFallback(ref, i, k))
		}
		y[a] = ref.At(i, j)
	}

	params := tree.Params{
		MaxDepth:       im.MaxDepth,
		MinSamplesLeaf: im.MinSamplesLeaf,
		Classification: c.Kind == dataset.Categorical,
	}
	bag, err := tree.FitBagging(X, y, params, im.NEstimators, rng)
	if err != nil {
		return nil, err
	}
	return &ColumnEstimator{Target: c.Name, Predictors: predictors, Bag: bag}, nil
}

// Transform returns a copy of t with every missing cell replaced by the
// fitted estimator's prediction. The input table is never modified.
//
// It fails with SchemaMismatchError when t does not carry the reference
// schema, and with ImputationIncompleteError when any cell remains missing
// after application.
func (im *Imputer) Transform(t *dataset.Table) (*dataset.Table, error) {
	if !im.IsFitted() {
		return nil, errors.NewNotFittedError("Imputer", "Transform")
	}

	var missing []string
	expected := make([]string, len(im.Columns))
	for i, c := range im.Columns {
		expected[i] = c.Name
		tc, ok := t.Column(c.Name)
		if !ok || tc.Kind != c.Kind {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaMismatchError("Imputer.Transform", expected, missing)
	}

	out := t.Clone()
	for _, c := range im.Columns {
		j := out.ColumnIndex(c.Name)
		est, ok := im.Estimators[c.Name]
		for i := 0; i < out.Rows(); i++ {
			if !out.IsMissing(i, j) {
				continue
			}
			if !ok {
				// No estimator for this column; fall back to the column
				// statistic when the reference table had one.
				if fb, has := im.Fallback[c.Name]; has {
					out.Set(i, j, fb)
				}
				continue
			}
			x := make([]float64, len(est.Predictors))
			for b, name := range est.Predictors {
				k := out.ColumnIndex(name)
				x[b] = im.observedOrFallback(out, i, k)
			}
			out.Set(i, j, est.Bag.PredictRow(x))
		}
	}

	// Zero-missing guarantee: anything still NaN is a hard error.
	for _, c := range im.Columns {
		if n := out.MissingInColumn(c.Name); n > 0 {
			return nil, errors.NewImputationIncompleteError(c.Name, n)
		}
	}
	return out, nil
}

// FitTransform fits on the table and fills it in one call.
func (im *Imputer) FitTransform(t *dataset.Table) (*dataset.Table, error) {
	if err := im.Fit(t); err != nil {
		return nil, err
	}
	return im.Transform(t)
}

// observedOrFallback reads a cell, substituting the fitted column statistic
// when the cell is missing.
func (im *Imputer) observedOrFallback(t *dataset.Table, i, j int) float64 {
	v := t.At(i, j)
	if !math.IsNaN(v) {
		return v
	}
	name := t.ColumnNames()[j]
	if fb, ok := im.Fallback[name]; ok {
		return fb
	}
	return 0
}

// columnFallback computes the mean of observed numeric cells or the mode of
// observed categorical cells; ok is false when nothing is observed.
func columnFallback(t *dataset.Table, j int, kind dataset.Kind) (float64, bool) {
	if kind == dataset.Categorical {
		counts := make(map[float64]int)
		for i := 0; i < t.Rows(); i++ {
			if !t.IsMissing(i, j) {
				counts[t.At(i, j)]++
			}
		}
		if len(counts) == 0 {
			return 0, false
		}
		bestLabel, bestCount := 0.0, -1
		for label, c := range counts {
			if c > bestCount || (c == bestCount && label < bestLabel) {
				bestLabel, bestCount = label, c
			}
		}
		return bestLabel, true
	}

	sum, n := 0.0, 0
	for i := 0; i < t.Rows(); i++ {
		if !t.IsMissing(i, j) {
			sum += t.At(i, j)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
