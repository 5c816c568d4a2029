// Package pipeline wires the full training flow: missing-value imputation,
// correlation-based feature pruning, stratified train/holdout split,
// cross-validated hyperparameter search, and the final model fit.
package pipeline

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/tune"
)

// Config holds every pipeline setting. The zero value is not usable; start
// from DefaultConfig or a YAML file.
type Config struct {
	// Data schema
	IDColumn           string   `yaml:"id_column"`
	TargetColumn       string   `yaml:"target_column"`
	CategoricalColumns []string `yaml:"categorical_columns"`

	// Feature pruning
	CorrelationThreshold float64 `yaml:"correlation_threshold"`

	// Split
	TrainFraction  float64 `yaml:"train_fraction"`
	KFolds         int     `yaml:"k_folds"`
	StratifyColumn string  `yaml:"stratify_column"`

	// Hyperparameter search
	ParamSpace      tune.ParamSpace `yaml:"param_space"`
	Candidates      int             `yaml:"candidates"`
	SelectionMetric tune.Metric     `yaml:"selection_metric"`
	SearchStorePath string          `yaml:"search_store_path"`

	// Final model
	EnsembleSize int `yaml:"ensemble_size"`

	// Determinism
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns the settings used when a field is left unset.
func DefaultConfig() Config {
	return Config{
		IDColumn:             "id",
		CorrelationThreshold: 0.7,
		TrainFraction:        0.8,
		KFolds:               5,
		ParamSpace:           tune.DefaultParamSpace(),
		Candidates:           20,
		SelectionMetric:      tune.MetricMAE,
		EnsembleSize:         100,
		Seed:                 42,
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the config for values that would make the run meaningless.
func (c Config) Validate() error {
	if c.IDColumn == "" {
		return errors.NewValueError("pipeline.Config", "id_column must be set")
	}
	if c.TargetColumn == "" {
		return errors.NewValueError("pipeline.Config", "target_column must be set")
	}
	if c.CorrelationThreshold <= 0 || c.CorrelationThreshold > 1 {
		return errors.NewValueError("pipeline.Config", "correlation_threshold must be in (0, 1]")
	}
	if c.TrainFraction <= 0 || c.TrainFraction >= 1 {
		return errors.NewValueError("pipeline.Config", "train_fraction must be in (0, 1)")
	}
	if c.KFolds < 2 {
		return errors.NewValueError("pipeline.Config", "k_folds must be at least 2")
	}
	if c.Candidates < 1 {
		return errors.NewValueError("pipeline.Config", "candidates must be at least 1")
	}
	if !c.SelectionMetric.Valid() {
		return errors.NewValueError("pipeline.Config", "unknown selection_metric: "+string(c.SelectionMetric))
	}
	if c.EnsembleSize < 1 {
		return errors.NewValueError("pipeline.Config", "ensemble_size must be at least 1")
	}
	return nil
}
