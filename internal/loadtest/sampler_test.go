package loadtest

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampler_Validation(t *testing.T) {
	_, err := NewSampler[string]()
	assert.Error(t, err)

	_, err = NewSampler(WeightedChoice[string]{Value: "a", Weight: 0})
	assert.Error(t, err)

	_, err = NewSampler(WeightedChoice[string]{Value: "a", Weight: 1}, WeightedChoice[string]{Value: "b", Weight: -1})
	assert.Error(t, err)

	s, err := NewSampler(WeightedChoice[string]{Value: "a", Weight: 0}, WeightedChoice[string]{Value: "b", Weight: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total())
}

// TestSampler_ZeroWeightNeverPicked tests that a zero-weight row is never drawn
func TestSampler_ZeroWeightNeverPicked(t *testing.T) {
	s, err := NewSampler(WeightedChoice[string]{Value: "never", Weight: 0}, WeightedChoice[string]{Value: "always", Weight: 1})
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 1000 {
		assert.Equal(t, "always", s.Pick(rng))
	}
}

// TestSampler_DefaultMixDistribution tests that the mixed table follows its weights
func TestSampler_DefaultMixDistribution(t *testing.T) {
	s, err := NewSampler(DefaultMix...)
	require.NoError(t, err)
	require.Equal(t, 100, s.Total())

	const draws = 100000
	rng := rand.New(rand.NewPCG(42, 42))
	counts := map[Workload]int{}
	for range draws {
		counts[s.Pick(rng)]++
	}

	want := map[Workload]float64{
		WorkloadRead:   0.40,
		WorkloadWrite:  0.25,
		WorkloadTasks:  0.10,
		WorkloadBrowse: 0.25,
	}
	for w, p := range want {
		assert.InDelta(t, p, float64(counts[w])/draws, 0.01, "workload %s", w)
	}
	assert.Zero(t, counts[WorkloadMixed])
}

func TestSampler_SeededIsDeterministic(t *testing.T) {
	s, err := NewSampler(DefaultMix...)
	require.NoError(t, err)

	a := rand.New(rand.NewPCG(7, 0))
	b := rand.New(rand.NewPCG(7, 0))
	for range 100 {
		assert.Equal(t, s.Pick(a), s.Pick(b))
	}
}
