// Package split partitions training rows: a stratified train/holdout split
// for the outer evaluation and a k-fold assignment for cross-validation.
// Given a fixed seed, every partition is reproducible.
package split

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/emigo/dataset"
	"github.com/YuminosukeSato/emigo/pkg/errors"
)

// stratifyBins is the number of quantile bins used when the stratification
// column is continuous.
const stratifyBins = 4

// Fold holds the row indices of one cross-validation fold.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// TrainHoldout splits t into a training part of roughly trainFraction rows
// and a holdout part, preserving the distribution of stratifyColumn in both.
// Continuous stratifiers are quantile-binned first. The split is fixed by
// the seed and never reshuffled.
func TrainHoldout(t *dataset.Table, trainFraction float64, stratifyColumn string, seed uint64) (*dataset.Table, *dataset.Table, error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, errors.NewValidationError("trainFraction", "must be in (0, 1)", trainFraction)
	}
	j := t.ColumnIndex(stratifyColumn)
	if j < 0 {
		return nil, nil, errors.NewSchemaMismatchError("split.TrainHoldout",
			t.ColumnNames(), []string{stratifyColumn})
	}

	groups, err := strata(t, j)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	var trainRows, holdoutRows []int
	for _, key := range sortedKeys(groups) {
		group := groups[key]
		rng.Shuffle(len(group), func(a, b int) {
			group[a], group[b] = group[b], group[a]
		})
		nTrain := int(math.Round(trainFraction * float64(len(group))))
		if nTrain == len(group) && len(group) > 1 {
			nTrain--
		}
		trainRows = append(trainRows, group[:nTrain]...)
		holdoutRows = append(holdoutRows, group[nTrain:]...)
	}
	if len(trainRows) == 0 {
		return nil, nil, errors.NewEmptyFoldError("split.TrainHoldout", 0)
	}
	if len(holdoutRows) == 0 {
		return nil, nil, errors.NewEmptyFoldError("split.TrainHoldout", 1)
	}

	// Restore row order inside each partition so downstream results do not
	// depend on shuffle internals.
	sort.Ints(trainRows)
	sort.Ints(holdoutRows)
	return t.Subset(trainRows), t.Subset(holdoutRows), nil
}

// sortedKeys returns the stratum keys in ascending order. Map iteration
// order must never reach the shared rng, or splits stop being reproducible.
func sortedKeys(groups map[float64][]int) []float64 {
	keys := make([]float64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}

// strata groups row indices by the stratification value. Categorical columns
// group by level code; numeric columns by quantile bin.
func strata(t *dataset.Table, j int) (map[float64][]int, error) {
	col, _ := t.Column(t.ColumnNames()[j])

	groups := make(map[float64][]int)
	if col.Kind == dataset.Categorical {
		for i := 0; i < t.Rows(); i++ {
			if t.IsMissing(i, j) {
				return nil, errors.NewValueError("split.strata", "stratification column has missing values")
			}
			groups[t.At(i, j)] = append(groups[t.At(i, j)], i)
		}
		return groups, nil
	}

	// Quantile-bin the continuous stratifier.
	values := make([]float64, t.Rows())
	for i := 0; i < t.Rows(); i++ {
		if t.IsMissing(i, j) {
			return nil, errors.NewValueError("split.strata", "stratification column has missing values")
		}
		values[i] = t.At(i, j)
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	bounds := make([]float64, 0, stratifyBins-1)
	for b := 1; b < stratifyBins; b++ {
		bounds = append(bounds, sorted[b*len(sorted)/stratifyBins])
	}
	for i, v := range values {
		bin := 0
		for _, bound := range bounds {
			if v >= bound {
				bin++
			}
		}
		groups[float64(bin)] = append(groups[float64(bin)], i)
	}
	return groups, nil
}

// KFold implements the k-fold cross-validation splitter.
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a new k-fold splitter.
func NewKFold(nSplits int, shuffle bool, seed uint64) *KFold {
	if nSplits < 2 {
		nSplits = 5 // Default to 5-fold
	}
	return &KFold{
		NSplits: nSplits,
		Shuffle: shuffle,
		Seed:    seed,
	}
}

// Split generates train/test indices for each fold over nSamples rows.
// Folds are disjoint and jointly cover every row exactly once. It fails with
// EmptyFoldError when nSamples < NSplits.
func (kf *KFold) Split(nSamples int) ([]Fold, error) {
	if nSamples < kf.NSplits {
		return nil, errors.NewEmptyFoldError("KFold.Split", kf.NSplits-1)
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}

	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	currentIdx := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		testIndices := make([]int, testSize)
		copy(testIndices, indices[currentIdx:currentIdx+testSize])

		trainIndices := make([]int, 0, nSamples-testSize)
		trainIndices = append(trainIndices, indices[:currentIdx]...)
		trainIndices = append(trainIndices, indices[currentIdx+testSize:]...)

		folds[i] = Fold{
			TrainIndices: trainIndices,
			TestIndices:  testIndices,
		}

		currentIdx += testSize
	}

	return folds, nil
}

// StratifiedKFold assigns rows to folds so that every stratum of the
// stratification column is spread evenly: per fold and stratum the test
// counts differ by at most one.
type StratifiedKFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, seed uint64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{
		NSplits: nSplits,
		Shuffle: shuffle,
		Seed:    seed,
	}
}

// Split generates train/test indices for each fold over the rows of t,
// stratified on stratifyColumn (continuous stratifiers are quantile-binned
// as in TrainHoldout). Rows of each stratum are dealt round-robin across the
// folds, with the deal position carried from stratum to stratum so fold
// sizes stay balanced. Folds are disjoint and jointly cover every row.
func (skf *StratifiedKFold) Split(t *dataset.Table, stratifyColumn string) ([]Fold, error) {
	if t.Rows() < skf.NSplits {
		return nil, errors.NewEmptyFoldError("StratifiedKFold.Split", skf.NSplits-1)
	}
	j := t.ColumnIndex(stratifyColumn)
	if j < 0 {
		return nil, errors.NewSchemaMismatchError("StratifiedKFold.Split",
			t.ColumnNames(), []string{stratifyColumn})
	}

	groups, err := strata(t, j)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(skf.Seed, skf.Seed))
	foldOf := make([]int, t.Rows())
	next := 0
	for _, key := range sortedKeys(groups) {
		group := groups[key]
		if skf.Shuffle {
			rng.Shuffle(len(group), func(a, b int) {
				group[a], group[b] = group[b], group[a]
			})
		}
		for _, idx := range group {
			foldOf[idx] = next % skf.NSplits
			next++
		}
	}

	folds := make([]Fold, skf.NSplits)
	for idx, f := range foldOf {
		folds[f].TestIndices = append(folds[f].TestIndices, idx)
	}
	for f := range folds {
		if len(folds[f].TestIndices) == 0 {
			return nil, errors.NewEmptyFoldError("StratifiedKFold.Split", f)
		}
		train := make([]int, 0, t.Rows()-len(folds[f].TestIndices))
		for idx, owner := range foldOf {
			if owner != f {
				train = append(train, idx)
			}
		}
		folds[f].TrainIndices = train
	}
	return folds, nil
}

// Assignments flattens folds into a row index -> fold id mapping.
func Assignments(folds []Fold, nSamples int) []int {
	out := make([]int, nSamples)
	for f, fold := range folds {
		for _, idx := range fold.TestIndices {
			out[idx] = f
		}
	}
	return out
}
