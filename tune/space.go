// Package tune implements hyperparameter search for the boosted regressor:
// a space-filling candidate design over the tuned parameters, cross-validated
// evaluation of each candidate, and deterministic selection of the best one.
package tune

import (
	"math"
	"math/rand/v2"
)

// Range is an inclusive bound for one hyperparameter.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// ParamSpace bounds the four tuned hyperparameters. Integer parameters are
// sampled continuously and rounded.
type ParamSpace struct {
	MinSamplesLeaf   Range `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxDepth         Range `json:"max_depth" yaml:"max_depth"`
	LearningRate     Range `json:"learning_rate" yaml:"learning_rate"`
	MinLossReduction Range `json:"min_loss_reduction" yaml:"min_loss_reduction"`
}

// DefaultParamSpace returns reasonable bounds for emission-level data.
func DefaultParamSpace() ParamSpace {
	return ParamSpace{
		MinSamplesLeaf:   Range{Min: 2, Max: 30},
		MaxDepth:         Range{Min: 2, Max: 8},
		LearningRate:     Range{Min: 0.01, Max: 0.3},
		MinLossReduction: Range{Min: 0, Max: 1},
	}
}

// Candidate is one hyperparameter configuration. Index is the generation
// order and serves as the deterministic tie-break during selection.
type Candidate struct {
	Index            int     `json:"index"`
	MinSamplesLeaf   int     `json:"min_samples_leaf"`
	MaxDepth         int     `json:"max_depth"`
	LearningRate     float64 `json:"learning_rate"`
	MinLossReduction float64 `json:"min_loss_reduction"`
}

const (
	numTunedParams = 4
	// Number of random Latin hypercube designs scored for the maximin
	// criterion before the best one is kept.
	designAttempts = 64
)

// GenerateCandidates produces n candidates via a maximin Latin hypercube
// design: each parameter's range is divided into n equal strata with one
// sample per stratum, and among designAttempts random designs the one with
// the largest minimum pairwise distance in the unit hypercube wins.
// Generation is deterministic for a given (space, n, seed).
func GenerateCandidates(space ParamSpace, n int, seed uint64) []Candidate {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	best := latinHypercube(rng, n)
	bestScore := minPairwiseDistance(best)
	for attempt := 1; attempt < designAttempts; attempt++ {
		design := latinHypercube(rng, n)
		if score := minPairwiseDistance(design); score > bestScore {
			best, bestScore = design, score
		}
	}

	candidates := make([]Candidate, n)
	for i, point := range best {
		candidates[i] = Candidate{
			Index:            i,
			MinSamplesLeaf:   scaleInt(point[0], space.MinSamplesLeaf),
			MaxDepth:         scaleInt(point[1], space.MaxDepth),
			LearningRate:     scale(point[2], space.LearningRate),
			MinLossReduction: scale(point[3], space.MinLossReduction),
		}
	}
	return candidates
}

// latinHypercube draws one n-point design in [0,1)^numTunedParams with one
// point per stratum per dimension.
func latinHypercube(rng *rand.Rand, n int) [][numTunedParams]float64 {
	points := make([][numTunedParams]float64, n)
	for d := 0; d < numTunedParams; d++ {
		perm := rng.Perm(n)
		for i := 0; i < n; i++ {
			points[i][d] = (float64(perm[i]) + rng.Float64()) / float64(n)
		}
	}
	return points
}

// minPairwiseDistance returns the smallest Euclidean distance between any
// two design points.
func minPairwiseDistance(points [][numTunedParams]float64) float64 {
	minimum := math.Inf(1)
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			dist := 0.0
			for d := 0; d < numTunedParams; d++ {
				diff := points[i][d] - points[j][d]
				dist += diff * diff
			}
			if dist < minimum {
				minimum = dist
			}
		}
	}
	return minimum
}

func scale(unit float64, r Range) float64 {
	return r.Min + unit*(r.Max-r.Min)
}

func scaleInt(unit float64, r Range) int {
	return int(math.Round(scale(unit, r)))
}
