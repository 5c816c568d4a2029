// Package log defines standard attribute keys for pipeline operations.
//
// This file contains predefined attribute keys that provide consistency across
// all logging operations in emigo. Using these standard keys enables better
// log analysis, monitoring, and debugging of pipeline runs.
//
// The keys follow a hierarchical naming convention (e.g., "model.name",
// "data.rows") to enable structured log analysis and filtering.

package log

// Model and Operation Context
// These attributes identify the model type, instance, and operation being performed.
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "GBMRegressor", "Imputer", "CorrelationFilter"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	// Examples: "impute", "feature", "tune", "boost"
	ComponentKey = "ml.component"

	// StageKey indicates the pipeline stage.
	// Examples: "raw", "imputed", "feature-filtered", "split", "tuned",
	// "final-fit", "predicted"
	StageKey = "pipeline.stage"

	// RunIDKey is the unique identifier of a pipeline run.
	RunIDKey = "pipeline.run_id"
)

// Data Shape and Characteristics
const (
	// RowsKey indicates the number of rows in the table being processed.
	RowsKey = "data.rows"

	// ColumnsKey indicates the number of predictor columns.
	ColumnsKey = "data.columns"

	// ColumnKey names a single column being processed.
	ColumnKey = "data.column"

	// MissingKey indicates the number of missing cells.
	MissingKey = "data.missing"
)

// Search Context
const (
	// CandidateKey is the generation-order index of a hyperparameter candidate.
	CandidateKey = "search.candidate"

	// FoldKey is the cross-validation fold index.
	FoldKey = "search.fold"

	// MetricKey names the metric being reported.
	MetricKey = "search.metric"

	// ScoreKey is the value of the reported metric.
	ScoreKey = "search.score"
)

// Performance
const (
	// DurationMsKey is the wall-clock duration of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey is the boosting iteration number.
	IterationKey = "train.iteration"
)
