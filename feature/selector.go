// Package feature provides the correlation-based redundancy filter applied
// to predictor columns before model training. The filter is fit once on
// training predictors and applied unchanged to every other table in a run.
package feature

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/emigo/core/model"
	"github.com/YuminosukeSato/emigo/dataset"
	"github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/pkg/log"
)

// CorrelationFilter drops one column of every pair of numeric predictors
// whose absolute Pearson correlation exceeds Threshold, preferring to drop
// the column with the higher mean absolute correlation to the remaining
// columns. Fitted state is the retained column list; Transform projects.
type CorrelationFilter struct {
	model.BaseEstimator

	Threshold float64

	// Fitted state.
	Retained []string
	Dropped  []string
}

// NewCorrelationFilter creates a filter with the given threshold in (0, 1].
func NewCorrelationFilter(threshold float64) *CorrelationFilter {
	return &CorrelationFilter{Threshold: threshold}
}

// Fit computes the pairwise absolute correlation matrix over the numeric
// columns of train and decides which columns to keep. Categorical columns
// pass through untouched.
func (f *CorrelationFilter) Fit(train *dataset.Table) error {
	if f.Threshold <= 0 || f.Threshold > 1 {
		return errors.NewValidationError("threshold", "must be in (0, 1]", f.Threshold)
	}
	if train.Rows() == 0 {
		return errors.NewModelError("CorrelationFilter.Fit", "empty table", errors.ErrEmptyData)
	}

	numeric := train.NumericColumns()
	X, err := train.Matrix(numeric)
	if err != nil {
		return err
	}
	if X.RawMatrix().Rows > 0 {
		for _, v := range X.RawMatrix().Data {
			if math.IsNaN(v) {
				return errors.NewValueError("CorrelationFilter.Fit", "table contains missing values; impute first")
			}
		}
	}

	n := len(numeric)
	corr := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corr, X, nil)

	// Iteratively remove the worse member of the most correlated pair until
	// no pair exceeds the threshold.
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}
	for {
		bi, bj, bc := -1, -1, f.Threshold
		for i := 0; i < n; i++ {
			if !alive[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !alive[j] {
					continue
				}
				c := math.Abs(corr.At(i, j))
				if c > bc {
					bi, bj, bc = i, j, c
				}
			}
		}
		if bi < 0 {
			break
		}
		// Drop whichever of the pair has the higher mean |corr| against the
		// other remaining columns.
		if meanAbsCorr(corr, alive, bi) >= meanAbsCorr(corr, alive, bj) {
			alive[bi] = false
		} else {
			alive[bj] = false
		}
	}

	f.Retained = f.Retained[:0]
	f.Dropped = f.Dropped[:0]
	numericAlive := make(map[string]bool, n)
	for i, name := range numeric {
		if alive[i] {
			numericAlive[name] = true
		} else {
			f.Dropped = append(f.Dropped, name)
		}
	}
	// Preserve the original schema order, keeping categoricals.
	for _, name := range train.ColumnNames() {
		c, _ := train.Column(name)
		if c.Kind != dataset.Numeric || numericAlive[name] {
			f.Retained = append(f.Retained, name)
		}
	}

	log.GetLoggerWithName("feature").Info("correlation filter fitted",
		log.ColumnsKey, len(f.Retained),
		"dropped", f.Dropped,
		"threshold", f.Threshold)

	f.SetFitted()
	return nil
}

// meanAbsCorr is the mean absolute correlation of column i against every
// other still-alive column.
func meanAbsCorr(corr *mat.SymDense, alive []bool, i int) float64 {
	sum, n := 0.0, 0
	for j := range alive {
		if j == i || !alive[j] {
			continue
		}
		sum += math.Abs(corr.At(i, j))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Transform projects t onto the retained columns. It fails with
// SchemaMismatchError when a retained column is absent from t.
func (f *CorrelationFilter) Transform(t *dataset.Table) (*dataset.Table, error) {
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError("CorrelationFilter", "Transform")
	}
	out, err := t.Select(f.Retained)
	if err != nil {
		var schemaErr *errors.SchemaMismatchError
		if errors.As(err, &schemaErr) {
			return nil, errors.NewSchemaMismatchError("CorrelationFilter.Transform",
				f.Retained, schemaErr.Missing)
		}
		return nil, err
	}
	return out, nil
}

// FitTransform fits on the table and projects it in one call.
func (f *CorrelationFilter) FitTransform(t *dataset.Table) (*dataset.Table, error) {
	if err := f.Fit(t); err != nil {
		return nil, err
	}
	return f.Transform(t)
}
