// Package emigo is a supervised learning pipeline for predicting atmospheric
// emission levels from station measurements.
//
// The pipeline runs a fixed sequence of stages over a tabular dataset:
// bagged-tree imputation of missing values, correlation-based feature
// pruning, a stratified train/holdout split, cross-validated hyperparameter
// search over gradient-boosted regression trees, and a final fit on the full
// training partition.
//
// # Quick Start
//
//	cfg := pipeline.DefaultConfig()
//	cfg.TargetColumn = "emission"
//
//	p, err := pipeline.NewPipeline(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.Fit(ctx, table); err != nil {
//	    log.Fatal(err)
//	}
//	preds, err := p.Predict(table)
//
// Each stage is also usable on its own: see the impute, feature, split,
// boost, and tune packages.
package emigo
