package tune

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	emigoerrors "github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/split"
)

// makeRegressionData generates y = 3*x0 + x1 + noise.
func makeRegressionData(n int, seed uint64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := rng.Float64() * 5
		x1 := rng.Float64() * 5
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y[i] = 3*x0 + x1 + rng.NormFloat64()*0.2
	}
	return X, y
}

func makeFolds(t *testing.T, n, k int) []split.Fold {
	t.Helper()
	kf := split.NewKFold(k, true, 42)
	folds, err := kf.Split(n)
	require.NoError(t, err)
	return folds
}

func TestSearchEvaluatesAllCandidates(t *testing.T) {
	X, y := makeRegressionData(120, 5)
	folds := makeFolds(t, 120, 4)

	candidates := GenerateCandidates(DefaultParamSpace(), 6, 42)
	searcher, err := NewSearcher(MetricMAE, 30, folds)
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), X, y, candidates)
	require.NoError(t, err)
	require.Len(t, results, 6)

	for i, res := range results {
		assert.Equal(t, i, res.Candidate.Index)
		assert.False(t, res.Failed)
		// Every candidate is scored on the full metric set, not just the
		// searcher's configured one.
		require.Len(t, res.Scores, 3)
		for _, m := range []Metric{MetricMAE, MetricRMSE, MetricR2} {
			summary, ok := res.Scores[m]
			require.True(t, ok, "metric %s missing", m)
			assert.Len(t, summary.FoldScores, 4)
		}
		mae, _ := res.Mean(MetricMAE)
		rmse, _ := res.Mean(MetricRMSE)
		assert.Greater(t, mae, 0.0)
		assert.GreaterOrEqual(t, rmse, mae, "RMSE is bounded below by MAE")
	}
}

func TestSearchIsolatesFailedCandidates(t *testing.T) {
	X, y := makeRegressionData(60, 9)
	folds := makeFolds(t, 60, 3)

	good := Candidate{Index: 0, MinSamplesLeaf: 5, MaxDepth: 3, LearningRate: 0.1}
	// MinSamplesLeaf larger than any training fold makes the first tree a
	// stump but does not error; an invalid learning rate producing NaN does.
	bad := Candidate{Index: 1, MinSamplesLeaf: 5, MaxDepth: 3, LearningRate: 1e308}

	searcher, err := NewSearcher(MetricRMSE, 20, folds)
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), X, y, []Candidate{good, bad})
	require.NoError(t, err, "one bad candidate must not abort the search")
	require.Len(t, results, 2)

	assert.False(t, results[0].Failed)
	assert.True(t, results[1].Failed)
	assert.NotEmpty(t, results[1].Reason)

	best, err := SelectBest(results, MetricRMSE)
	require.NoError(t, err)
	assert.Equal(t, 0, best.Candidate.Index)
}

func TestSearchCancellation(t *testing.T) {
	X, y := makeRegressionData(60, 11)
	folds := makeFolds(t, 60, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher, err := NewSearcher(MetricMAE, 20, folds)
	require.NoError(t, err)

	_, err = searcher.Search(ctx, X, y, GenerateCandidates(DefaultParamSpace(), 4, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, emigoerrors.ErrSearchCancelled)
}

// resultWithMeans builds an evaluated Result with the given metric means.
func resultWithMeans(index int, mae, rmse, r2 float64) Result {
	return Result{
		Candidate: Candidate{Index: index},
		Scores: map[Metric]Summary{
			MetricMAE:  {Mean: mae},
			MetricRMSE: {Mean: rmse},
			MetricR2:   {Mean: r2},
		},
	}
}

func TestSelectBestReadsNamedMetric(t *testing.T) {
	// Candidate 0 has the lowest MAE but also the lowest R²; candidate 1
	// the highest R². Selection must read the named metric's own summary,
	// not reinterpret another metric's values in a different direction.
	results := []Result{
		resultWithMeans(0, 0.2, 0.3, 0.55),
		resultWithMeans(1, 0.5, 0.6, 0.90),
		resultWithMeans(2, 0.4, 0.5, 0.70),
	}

	best, err := SelectBest(results, MetricMAE)
	require.NoError(t, err)
	assert.Equal(t, 0, best.Candidate.Index)

	best, err = SelectBest(results, MetricRMSE)
	require.NoError(t, err)
	assert.Equal(t, 0, best.Candidate.Index)

	best, err = SelectBest(results, MetricR2)
	require.NoError(t, err)
	assert.Equal(t, 1, best.Candidate.Index)
}

func TestSelectBestTieBreakIsOrderInvariant(t *testing.T) {
	tied := []Result{
		resultWithMeans(3, 0.4, 0.5, 0.8),
		resultWithMeans(1, 0.4, 0.5, 0.8),
		resultWithMeans(2, 0.4, 0.5, 0.8),
	}

	// Whatever order the slice arrives in, the earliest-generated
	// candidate wins the tie.
	perms := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}
	for _, perm := range perms {
		shuffled := make([]Result, len(tied))
		for i, p := range perm {
			shuffled[i] = tied[p]
		}
		best, err := SelectBest(shuffled, MetricMAE)
		require.NoError(t, err)
		assert.Equal(t, 1, best.Candidate.Index)
	}
}

func TestSelectBestAllFailed(t *testing.T) {
	results := []Result{
		{Candidate: Candidate{Index: 0}, Failed: true},
		{Candidate: Candidate{Index: 1}, Failed: true},
	}
	_, err := SelectBest(results, MetricMAE)
	require.Error(t, err)
	assert.ErrorIs(t, err, emigoerrors.ErrNoCandidates)
}

func TestSearchResumesFromStore(t *testing.T) {
	X, y := makeRegressionData(90, 13)
	folds := makeFolds(t, 90, 3)
	candidates := GenerateCandidates(DefaultParamSpace(), 5, 21)

	path := filepath.Join(t.TempDir(), "search.json")

	store, err := OpenStore(path)
	require.NoError(t, err)
	searcher, err := NewSearcher(MetricMAE, 20, folds)
	require.NoError(t, err)
	first, err := searcher.WithStore(store).Search(context.Background(), X, y, candidates)
	require.NoError(t, err)
	require.Len(t, first, 5)

	// A fresh store from the same path serves every candidate from disk;
	// the resumed search returns identical results.
	reopened, err := OpenStore(path)
	require.NoError(t, err)
	assert.Equal(t, 5, reopened.Len())

	searcher2, err := NewSearcher(MetricMAE, 20, folds)
	require.NoError(t, err)
	second, err := searcher2.WithStore(reopened).Search(context.Background(), X, y, candidates)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSearchRejectsStaleStoreEntries(t *testing.T) {
	X, y := makeRegressionData(90, 17)
	folds := makeFolds(t, 90, 3)
	candidates := GenerateCandidates(DefaultParamSpace(), 3, 31)

	// A store written by an earlier run with a different design holds other
	// hyperparameters at the same indices. Those entries must read as
	// misses, not as finished evaluations.
	path := filepath.Join(t.TempDir(), "search.json")
	store, err := OpenStore(path)
	require.NoError(t, err)
	stale := Result{
		Candidate: Candidate{Index: 0, MinSamplesLeaf: 99, MaxDepth: 1, LearningRate: 0.9},
		Scores:    map[Metric]Summary{MetricMAE: {Mean: 123.456}},
	}
	require.NoError(t, store.Put(stale))

	searcher, err := NewSearcher(MetricMAE, 20, folds)
	require.NoError(t, err)
	results, err := searcher.WithStore(store).Search(context.Background(), X, y, candidates)
	require.NoError(t, err)

	assert.Equal(t, candidates[0], results[0].Candidate,
		"result must describe the requested candidate, not the stored one")
	mae, ok := results[0].Mean(MetricMAE)
	require.True(t, ok)
	assert.NotEqual(t, 123.456, mae, "stale score must not be served")

	// The re-evaluation replaces the stale entry.
	replaced, ok := store.Lookup(candidates[0])
	require.True(t, ok)
	assert.Equal(t, results[0], replaced)
}
