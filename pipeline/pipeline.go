package pipeline

import (
	"context"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/emigo/boost"
	"github.com/YuminosukeSato/emigo/core/model"
	"github.com/YuminosukeSato/emigo/dataset"
	"github.com/YuminosukeSato/emigo/feature"
	"github.com/YuminosukeSato/emigo/impute"
	"github.com/YuminosukeSato/emigo/metrics"
	"github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/pkg/log"
	"github.com/YuminosukeSato/emigo/split"
	"github.com/YuminosukeSato/emigo/tune"
)

// Stage tracks how far a pipeline run has progressed.
type Stage int

const (
	StageRaw Stage = iota
	StageImputed
	StageFiltered
	StageSplit
	StageTuned
	StageFinalFit
	StagePredicted
)

func (s Stage) String() string {
	switch s {
	case StageRaw:
		return "raw"
	case StageImputed:
		return "imputed"
	case StageFiltered:
		return "feature-filtered"
	case StageSplit:
		return "split"
	case StageTuned:
		return "tuned"
	case StageFinalFit:
		return "final-fit"
	case StagePredicted:
		return "predicted"
	}
	return "unknown"
}

// Prediction pairs a row identifier with its predicted emission level.
type Prediction struct {
	ID    string
	Value float64
}

// Pipeline runs the full training flow and serves predictions afterwards.
// A pipeline is fit at most once.
type Pipeline struct {
	model.BaseEstimator

	cfg   Config
	runID string
	stage Stage

	imputer *impute.Imputer
	filter  *feature.CorrelationFilter
	final   *boost.GBMRegressor

	bestResult   tune.Result
	holdoutScore float64

	logger log.Logger
}

// NewPipeline validates the config and prepares an unfitted pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &Pipeline{
		cfg:    cfg,
		runID:  runID,
		stage:  StageRaw,
		logger: log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID),
	}, nil
}

// RunID returns the unique identifier of this pipeline run.
func (p *Pipeline) RunID() string { return p.runID }

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Stage returns the current pipeline stage.
func (p *Pipeline) Stage() Stage { return p.stage }

// BestResult returns the winning hyperparameter candidate after Fit.
func (p *Pipeline) BestResult() tune.Result { return p.bestResult }

// HoldoutScore returns the selection metric on the holdout partition.
func (p *Pipeline) HoldoutScore() float64 { return p.holdoutScore }

// RetainedFeatures returns the predictor columns surviving pruning.
func (p *Pipeline) RetainedFeatures() []string {
	if p.filter == nil {
		return nil
	}
	return p.filter.Retained
}

func (p *Pipeline) advance(stage Stage) {
	p.stage = stage
	p.logger.Info("Stage complete", log.StageKey, stage.String())
}

// Fit runs imputation, pruning, splitting, hyperparameter search, and the
// final model fit on t. Calling Fit twice is an error.
func (p *Pipeline) Fit(ctx context.Context, t *dataset.Table) error {
	if p.IsFitted() {
		return errors.NewModelError("Pipeline.Fit", "pipeline already fitted", nil)
	}

	if t.ColumnIndex(p.cfg.TargetColumn) < 0 {
		return errors.NewSchemaMismatchError("Pipeline.Fit", []string{p.cfg.TargetColumn}, []string{p.cfg.TargetColumn})
	}
	if n := t.MissingInColumn(p.cfg.TargetColumn); n > 0 {
		return errors.NewValueError("Pipeline.Fit", "target column has missing values")
	}
	target, err := t.Vector(p.cfg.TargetColumn)
	if err != nil {
		return err
	}

	p.logger.Info("Starting run",
		log.RowsKey, t.Rows(),
		log.ColumnsKey, t.NumColumns(),
		log.MissingKey, t.MissingCount())

	// Imputation over the predictor columns.
	predictors := t.Drop(p.cfg.TargetColumn)
	p.imputer = impute.NewImputer().WithSeed(p.cfg.Seed)
	imputed, err := p.imputer.FitTransform(predictors)
	if err != nil {
		return err
	}
	p.advance(StageImputed)

	// Correlation pruning.
	p.filter = feature.NewCorrelationFilter(p.cfg.CorrelationThreshold)
	filtered, err := p.filter.FitTransform(imputed)
	if err != nil {
		return err
	}
	p.logger.Info("Predictors pruned",
		log.ColumnsKey, len(p.filter.Retained),
		"dropped", len(p.filter.Dropped))
	p.advance(StageFiltered)

	// Stratified split on predictors plus target.
	combined, err := withColumn(filtered, p.cfg.TargetColumn, target)
	if err != nil {
		return err
	}
	stratify := p.cfg.StratifyColumn
	if stratify == "" || combined.ColumnIndex(stratify) < 0 {
		if stratify != "" {
			p.logger.Warn("Stratify column unavailable, using target", "column", stratify)
		}
		stratify = p.cfg.TargetColumn
	}
	train, holdout, err := split.TrainHoldout(combined, p.cfg.TrainFraction, stratify, p.cfg.Seed)
	if err != nil {
		return err
	}
	p.advance(StageSplit)

	// Cross-validated hyperparameter search on the training partition.
	trainX, err := train.Matrix(p.filter.Retained)
	if err != nil {
		return err
	}
	trainYVec, err := train.Vector(p.cfg.TargetColumn)
	if err != nil {
		return err
	}
	trainY := make([]float64, trainYVec.Len())
	for i := range trainY {
		trainY[i] = trainYVec.AtVec(i)
	}

	// Stratified fold assignment keeps the stratifier's distribution stable
	// across folds, mirroring the outer split.
	folds, err := split.NewStratifiedKFold(p.cfg.KFolds, true, p.cfg.Seed).Split(train, stratify)
	if err != nil {
		return err
	}
	candidates := tune.GenerateCandidates(p.cfg.ParamSpace, p.cfg.Candidates, p.cfg.Seed)

	searcher, err := tune.NewSearcher(p.cfg.SelectionMetric, p.cfg.EnsembleSize, folds)
	if err != nil {
		return err
	}
	if p.cfg.SearchStorePath != "" {
		store, err := tune.OpenStore(p.cfg.SearchStorePath)
		if err != nil {
			return err
		}
		searcher.WithStore(store)
	}

	results, err := searcher.Search(ctx, trainX, trainY, candidates)
	if err != nil {
		return err
	}
	p.bestResult, err = tune.SelectBest(results, p.cfg.SelectionMetric)
	if err != nil {
		return err
	}
	bestMean, _ := p.bestResult.Mean(p.cfg.SelectionMetric)
	p.logger.Info("Search complete",
		log.CandidateKey, p.bestResult.Candidate.Index,
		log.MetricKey, string(p.cfg.SelectionMetric),
		log.ScoreKey, bestMean)
	p.advance(StageTuned)

	// Final fit on the whole training partition with the winning candidate.
	best := p.bestResult.Candidate
	p.final = boost.NewGBMRegressor().
		WithNumIterations(p.cfg.EnsembleSize).
		WithLearningRate(best.LearningRate).
		WithMaxDepth(best.MaxDepth).
		WithMinSamplesLeaf(best.MinSamplesLeaf).
		WithMinLossReduction(best.MinLossReduction)
	if err := p.final.Fit(trainX, trainYVec); err != nil {
		return err
	}

	p.holdoutScore, err = p.scoreHoldout(holdout)
	if err != nil {
		return err
	}
	p.logger.Info("Holdout evaluated",
		log.MetricKey, string(p.cfg.SelectionMetric),
		log.ScoreKey, p.holdoutScore)

	p.SetFitted()
	p.advance(StageFinalFit)
	return nil
}

// scoreHoldout computes the selection metric on the holdout partition.
func (p *Pipeline) scoreHoldout(holdout *dataset.Table) (float64, error) {
	hX, err := holdout.Matrix(p.filter.Retained)
	if err != nil {
		return 0, err
	}
	hY, err := holdout.Vector(p.cfg.TargetColumn)
	if err != nil {
		return 0, err
	}
	pred, err := p.final.Predict(hX)
	if err != nil {
		return 0, err
	}
	yPred := pred.(*mat.VecDense)

	switch p.cfg.SelectionMetric {
	case tune.MetricMAE:
		return metrics.MAE(hY, yPred)
	case tune.MetricRMSE:
		return metrics.RMSE(hY, yPred)
	default:
		return metrics.R2Score(hY, yPred)
	}
}

// Predict imputes and prunes t the same way the training data was prepared,
// then returns one (identifier, value) pair per row in input order.
func (p *Pipeline) Predict(t *dataset.Table) ([]Prediction, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}

	ids := t.IDs()
	if len(ids) != t.Rows() {
		return nil, errors.NewValueError("Pipeline.Predict",
			"table has no identifier column; predictions cannot be paired with rows")
	}

	input := t
	if t.ColumnIndex(p.cfg.TargetColumn) >= 0 {
		input = t.Drop(p.cfg.TargetColumn)
	}

	imputed, err := p.imputer.Transform(input)
	if err != nil {
		return nil, err
	}
	filtered, err := p.filter.Transform(imputed)
	if err != nil {
		return nil, err
	}
	X, err := filtered.Matrix(p.filter.Retained)
	if err != nil {
		return nil, err
	}
	pred, err := p.final.Predict(X)
	if err != nil {
		return nil, err
	}
	vec := pred.(*mat.VecDense)

	out := make([]Prediction, t.Rows())
	for i := range out {
		out[i] = Prediction{ID: ids[i], Value: vec.AtVec(i)}
	}
	p.stage = StagePredicted
	return out, nil
}

// withColumn appends a complete numeric column to a table.
func withColumn(t *dataset.Table, name string, values *mat.VecDense) (*dataset.Table, error) {
	if values.Len() != t.Rows() {
		return nil, errors.NewDimensionError("pipeline.withColumn", t.Rows(), values.Len(), 0)
	}

	names := t.ColumnNames()
	cols := make([]dataset.Column, 0, len(names)+1)
	for _, n := range names {
		c, _ := t.Column(n)
		cols = append(cols, c)
	}
	cols = append(cols, dataset.Column{Name: name, Kind: dataset.Numeric})

	rows := t.Rows()
	width := len(cols)
	data := make([]float64, rows*width)
	for i := 0; i < rows; i++ {
		for j := 0; j < len(names); j++ {
			data[i*width+j] = t.At(i, j)
		}
		data[i*width+len(names)] = values.AtVec(i)
	}
	return dataset.New(t.IDName(), t.IDs(), cols, data)
}
