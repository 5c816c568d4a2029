package pipeline

import (
	"github.com/YuminosukeSato/emigo/boost"
	"github.com/YuminosukeSato/emigo/core/model"
	"github.com/YuminosukeSato/emigo/feature"
	"github.com/YuminosukeSato/emigo/impute"
	"github.com/YuminosukeSato/emigo/pkg/errors"
	"github.com/YuminosukeSato/emigo/tune"
)

// artifact is the gob-encoded form of a fitted pipeline. Fitted-state flags
// live in unexported fields and do not survive encoding, so Load re-marks
// every component as fitted.
type artifact struct {
	Config       Config
	RunID        string
	Imputer      *impute.Imputer
	Filter       *feature.CorrelationFilter
	Final        *boost.GBMRegressor
	Best         tune.Result
	HoldoutScore float64
}

// Save writes the fitted pipeline to path.
func (p *Pipeline) Save(path string) error {
	if !p.IsFitted() {
		return errors.NewNotFittedError("Pipeline", "Save")
	}
	art := artifact{
		Config:       p.cfg,
		RunID:        p.runID,
		Imputer:      p.imputer,
		Filter:       p.filter,
		Final:        p.final,
		Best:         p.bestResult,
		HoldoutScore: p.holdoutScore,
	}
	return model.SaveModel(&art, path)
}

// Load restores a fitted pipeline from path.
func Load(path string) (*Pipeline, error) {
	var art artifact
	if err := model.LoadModel(&art, path); err != nil {
		return nil, errors.Wrapf(err, "loading pipeline from %s", path)
	}
	if art.Imputer == nil || art.Filter == nil || art.Final == nil {
		return nil, errors.NewModelError("pipeline.Load", "artifact missing fitted components", nil)
	}

	p, err := NewPipeline(art.Config)
	if err != nil {
		return nil, err
	}
	p.runID = art.RunID
	p.imputer = art.Imputer
	p.filter = art.Filter
	p.final = art.Final
	p.bestResult = art.Best
	p.holdoutScore = art.HoldoutScore

	p.imputer.SetFitted()
	p.filter.SetFitted()
	p.final.SetFitted()
	p.SetFitted()
	p.stage = StageFinalFit
	return p, nil
}
