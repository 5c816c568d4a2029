package tune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCandidatesBounds(t *testing.T) {
	space := DefaultParamSpace()
	candidates := GenerateCandidates(space, 20, 42)
	require.Len(t, candidates, 20)

	for _, c := range candidates {
		assert.GreaterOrEqual(t, c.MinSamplesLeaf, int(space.MinSamplesLeaf.Min))
		assert.LessOrEqual(t, c.MinSamplesLeaf, int(space.MinSamplesLeaf.Max))
		assert.GreaterOrEqual(t, c.MaxDepth, int(space.MaxDepth.Min))
		assert.LessOrEqual(t, c.MaxDepth, int(space.MaxDepth.Max))
		assert.GreaterOrEqual(t, c.LearningRate, space.LearningRate.Min)
		assert.LessOrEqual(t, c.LearningRate, space.LearningRate.Max)
		assert.GreaterOrEqual(t, c.MinLossReduction, space.MinLossReduction.Min)
		assert.LessOrEqual(t, c.MinLossReduction, space.MinLossReduction.Max)
	}
}

func TestGenerateCandidatesIndexOrder(t *testing.T) {
	candidates := GenerateCandidates(DefaultParamSpace(), 10, 7)
	for i, c := range candidates {
		assert.Equal(t, i, c.Index)
	}
}

func TestGenerateCandidatesDeterministic(t *testing.T) {
	a := GenerateCandidates(DefaultParamSpace(), 15, 99)
	b := GenerateCandidates(DefaultParamSpace(), 15, 99)
	assert.Equal(t, a, b)

	c := GenerateCandidates(DefaultParamSpace(), 15, 100)
	assert.NotEqual(t, a, c, "different seeds should give different designs")
}

func TestGenerateCandidatesStratification(t *testing.T) {
	// A Latin hypercube places exactly one sample per stratum, so the n
	// learning rates land in n distinct equal-width bins.
	space := DefaultParamSpace()
	n := 10
	candidates := GenerateCandidates(space, n, 3)

	seen := make(map[int]bool)
	width := (space.LearningRate.Max - space.LearningRate.Min) / float64(n)
	for _, c := range candidates {
		bin := int((c.LearningRate - space.LearningRate.Min) / width)
		if bin == n {
			bin = n - 1
		}
		assert.False(t, seen[bin], "learning rate stratum %d sampled twice", bin)
		seen[bin] = true
	}
	assert.Len(t, seen, n)
}

func TestGenerateCandidatesEmpty(t *testing.T) {
	assert.Nil(t, GenerateCandidates(DefaultParamSpace(), 0, 1))
	assert.Nil(t, GenerateCandidates(DefaultParamSpace(), -3, 1))
}
