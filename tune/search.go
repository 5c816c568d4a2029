package tune

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/emigo/boost"
	"github.com/YuminosukeSato/emigo/metrics"
	"github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/pkg/log"
	"github.com/YuminosukeSato/emigo/split"
)

// Metric selects the cross-validation score used to rank candidates.
type Metric string

const (
	MetricMAE  Metric = "mae"
	MetricRMSE Metric = "rmse"
	MetricR2   Metric = "r2"
)

// LowerIsBetter reports whether smaller values of m are preferred.
func (m Metric) LowerIsBetter() bool {
	return m != MetricR2
}

// Valid reports whether m names a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricMAE, MetricRMSE, MetricR2:
		return true
	}
	return false
}

// allMetrics is the fixed set scored for every candidate, so that selection
// by any of them works on the same results.
var allMetrics = []Metric{MetricMAE, MetricRMSE, MetricR2}

// Summary aggregates one metric's scores across folds.
type Summary struct {
	FoldScores []float64 `json:"fold_scores"`
	Mean       float64   `json:"mean"`
	Std        float64   `json:"std"`
}

// Result holds the cross-validated evaluation of one candidate: a Summary
// per metric in allMetrics. A candidate whose training fails on any fold is
// marked Failed and excluded from selection; the failure never aborts the
// surrounding search.
type Result struct {
	Candidate Candidate          `json:"candidate"`
	Scores    map[Metric]Summary `json:"scores,omitempty"`
	Failed    bool               `json:"failed"`
	Reason    string             `json:"reason,omitempty"`
}

// Mean returns the mean score of the named metric.
func (r Result) Mean(m Metric) (float64, bool) {
	s, ok := r.Scores[m]
	return s.Mean, ok
}

// Searcher evaluates candidates against a fixed fold layout. The ensemble
// size is not tuned; every candidate trains NumIterations trees.
type Searcher struct {
	Metric        Metric
	NumIterations int
	Folds         []split.Fold

	store  *Store
	logger log.Logger
}

// NewSearcher creates a searcher over the given folds.
func NewSearcher(metric Metric, numIterations int, folds []split.Fold) (*Searcher, error) {
	if !metric.Valid() {
		return nil, errors.NewValueError("tune.NewSearcher", "unknown metric: "+string(metric))
	}
	if len(folds) == 0 {
		return nil, errors.NewEmptyFoldError("tune.NewSearcher", 0)
	}
	return &Searcher{
		Metric:        metric,
		NumIterations: numIterations,
		Folds:         folds,
		logger:        log.GetLoggerWithName("tune.searcher"),
	}, nil
}

// WithStore attaches a result store; candidates already present in it are
// not re-evaluated.
func (s *Searcher) WithStore(st *Store) *Searcher {
	s.store = st
	return s
}

// Search evaluates candidates concurrently and returns results in
// generation order. Candidate failures are isolated. On context
// cancellation the results finished so far are returned alongside
// ErrSearchCancelled; they remain valid input for SelectBest.
func (s *Searcher) Search(ctx context.Context, X mat.Matrix, y []float64, candidates []Candidate) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, errors.Wrap(errors.ErrNoCandidates, "tune.Searcher.Search")
	}

	results := make([]Result, len(candidates))
	done := make([]bool, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, cand := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			if s.store != nil {
				if cached, ok := s.store.Lookup(cand); ok {
					results[i] = cached
					done[i] = true
					return nil
				}
			}

			res := s.evaluate(gctx, X, y, cand)
			results[i] = res
			done[i] = true

			if res.Failed {
				s.logger.Warn("Candidate evaluation failed",
					log.CandidateKey, cand.Index,
					"reason", res.Reason)
			} else {
				mean, _ := res.Mean(s.Metric)
				s.logger.Debug("Candidate evaluated",
					log.CandidateKey, cand.Index,
					log.MetricKey, string(s.Metric),
					log.ScoreKey, mean)
			}

			if s.store != nil {
				if err := s.store.Put(res); err != nil {
					return errors.Wrap(err, "saving search result")
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		finished := make([]Result, 0, len(results))
		for i, res := range results {
			if done[i] {
				finished = append(finished, res)
			}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return finished, errors.Wrapf(errors.ErrSearchCancelled,
				"after %d of %d candidates", len(finished), len(candidates))
		}
		return finished, err
	}
	return results, nil
}

// evaluate trains the candidate on every fold concurrently and aggregates
// the per-fold scores for every metric in allMetrics.
func (s *Searcher) evaluate(ctx context.Context, X mat.Matrix, y []float64, cand Candidate) Result {
	scores := make(map[Metric][]float64, len(allMetrics))
	for _, m := range allMetrics {
		scores[m] = make([]float64, len(s.Folds))
	}

	g, _ := errgroup.WithContext(ctx)
	for f := range s.Folds {
		g.Go(func() error {
			return errors.SafeExecute("tune.evaluate", func() error {
				fold := s.Folds[f]
				trainX, trainY := subset(X, y, fold.TrainIndices)
				testX, testY := subset(X, y, fold.TestIndices)

				reg := boost.NewGBMRegressor().
					WithNumIterations(s.NumIterations).
					WithLearningRate(cand.LearningRate).
					WithMaxDepth(cand.MaxDepth).
					WithMinSamplesLeaf(cand.MinSamplesLeaf).
					WithMinLossReduction(cand.MinLossReduction)

				if err := reg.Fit(trainX, trainY); err != nil {
					return errors.NewDegenerateCandidateError(cand.Index, f, err)
				}
				pred, err := reg.Predict(testX)
				if err != nil {
					return errors.NewDegenerateCandidateError(cand.Index, f, err)
				}
				yPred := pred.(*mat.VecDense)

				for _, m := range allMetrics {
					score, err := scoreMetric(m, testY, yPred)
					if err != nil {
						return errors.NewDegenerateCandidateError(cand.Index, f, err)
					}
					scores[m][f] = score
				}
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return Result{Candidate: cand, Failed: true, Reason: err.Error()}
	}

	summaries := make(map[Metric]Summary, len(allMetrics))
	for _, m := range allMetrics {
		summaries[m] = Summary{
			FoldScores: scores[m],
			Mean:       stat.Mean(scores[m], nil),
			Std:        stat.StdDev(scores[m], nil),
		}
	}
	return Result{Candidate: cand, Scores: summaries}
}

func scoreMetric(m Metric, yTrue, yPred *mat.VecDense) (float64, error) {
	switch m {
	case MetricMAE:
		return metrics.MAE(yTrue, yPred)
	case MetricRMSE:
		return metrics.RMSE(yTrue, yPred)
	case MetricR2:
		return metrics.R2Score(yTrue, yPred)
	}
	return 0, errors.NewValueError("tune.scoreMetric", "unknown metric: "+string(m))
}

// subset extracts the rows of X and y named by indices.
func subset(X mat.Matrix, y []float64, indices []int) (*mat.Dense, *mat.VecDense) {
	_, cols := X.Dims()
	outX := mat.NewDense(len(indices), cols, nil)
	outY := mat.NewVecDense(len(indices), nil)
	for i, idx := range indices {
		for j := 0; j < cols; j++ {
			outX.Set(i, j, X.At(idx, j))
		}
		outY.SetVec(i, y[idx])
	}
	return outX, outY
}

// SelectBest returns the usable result with the best mean for the named
// metric, read from that metric's own summary. Exact ties go to the
// candidate generated first, so the winner does not depend on evaluation or
// iteration order.
func SelectBest(results []Result, metric Metric) (Result, error) {
	if !metric.Valid() {
		return Result{}, errors.NewValueError("tune.SelectBest", "unknown metric: "+string(metric))
	}

	var best Result
	found := false
	for _, res := range results {
		if res.Failed {
			continue
		}
		if _, ok := res.Mean(metric); !ok {
			continue
		}
		if !found || better(res, best, metric) {
			best = res
			found = true
		}
	}
	if !found {
		return Result{}, errors.Wrap(errors.ErrNoCandidates, "tune.SelectBest")
	}
	return best, nil
}

func better(a, b Result, metric Metric) bool {
	am, _ := a.Mean(metric)
	bm, _ := b.Mean(metric)
	if am == bm {
		return a.Candidate.Index < b.Candidate.Index
	}
	if metric.LowerIsBetter() {
		return am < bm
	}
	return am > bm
}
