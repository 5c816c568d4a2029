package tree

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emigo/core/parallel"
	"github.com/YuminosukeSato/emigo/pkg/errors"
)

// Bagging is a bootstrap-aggregated ensemble of trees. Regression ensembles
// average member predictions; classification ensembles take a majority vote.
// It is immutable after FitBagging.
type Bagging struct {
	Trees  []*Tree
	Params Params
}

// FitBagging fits nEstimators trees, each on a bootstrap resample of the
// rows. The rand source controls resampling and makes the ensemble
// reproducible for a fixed seed.
func FitBagging(X *mat.Dense, y []float64, params Params, nEstimators int, rng *rand.Rand) (*Bagging, error) {
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.NewValueError("tree.FitBagging", "no rows")
	}
	if nEstimators < 1 {
		return nil, errors.NewValidationError("nEstimators", "must be >= 1", nEstimators)
	}

	// Draw all bootstrap samples up-front so tree fitting can run in
	// parallel without sharing the rand source.
	samples := make([][]int, nEstimators)
	for e := 0; e < nEstimators; e++ {
		sample := make([]int, rows)
		for i := range sample {
			sample[i] = rng.IntN(rows)
		}
		samples[e] = sample
	}

	trees := make([]*Tree, nEstimators)
	errs := make([]error, nEstimators)
	parallel.Parallelize(nEstimators, func(start, end int) {
		for e := start; e < end; e++ {
			subX := mat.NewDense(rows, cols, nil)
			subY := make([]float64, rows)
			for i, src := range samples[e] {
				for j := 0; j < cols; j++ {
					subX.Set(i, j, X.At(src, j))
				}
				subY[i] = y[src]
			}
			trees[e], errs[e] = Fit(subX, subY, params)
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return &Bagging{Trees: trees, Params: params}, nil
}

// PredictRow aggregates member predictions for one feature row.
func (b *Bagging) PredictRow(x []float64) float64 {
	if b.Params.Classification {
		votes := make(map[float64]int)
		for _, t := range b.Trees {
			votes[t.PredictRow(x)]++
		}
		bestLabel, bestCount := 0.0, -1
		for label, c := range votes {
			if c > bestCount || (c == bestCount && label < bestLabel) {
				bestLabel, bestCount = label, c
			}
		}
		return bestLabel
	}
	sum := 0.0
	for _, t := range b.Trees {
		sum += t.PredictRow(x)
	}
	return sum / float64(len(b.Trees))
}
