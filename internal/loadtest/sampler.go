package loadtest

import (
	"fmt"
	"math/rand/v2"
)

// WeightedChoice is one row of a discrete distribution table
type WeightedChoice[T any] struct {
	Value  T
	Weight int
}

// Sampler picks values from a fixed discrete distribution
type Sampler[T any] struct {
	choices []WeightedChoice[T]
	total   int
}

// NewSampler builds a sampler from a weight table. Weights must be
// non-negative and at least one must be positive.
func NewSampler[T any](choices ...WeightedChoice[T]) (*Sampler[T], error) {
	total := 0
	for i, c := range choices {
		if c.Weight < 0 {
			return nil, fmt.Errorf("choice %d: weight cannot be negative", i)
		}
		total += c.Weight
	}
	if total == 0 {
		return nil, fmt.Errorf("sampler needs at least one positive weight")
	}

	table := make([]WeightedChoice[T], len(choices))
	copy(table, choices)
	return &Sampler[T]{choices: table, total: total}, nil
}

// Pick draws one value using rng
func (s *Sampler[T]) Pick(rng *rand.Rand) T {
	r := rng.IntN(s.total)
	for _, c := range s.choices {
		if r < c.Weight {
			return c.Value
		}
		r -= c.Weight
	}
	// unreachable: r < total
	return s.choices[len(s.choices)-1].Value
}

// Total returns the sum of all weights
func (s *Sampler[T]) Total() int {
	return s.total
}

// DefaultMix is the mixed workload table: read 40, write 25, tasks 10, browse 25
var DefaultMix = []WeightedChoice[Workload]{
	{Value: WorkloadRead, Weight: 40},
	{Value: WorkloadWrite, Weight: 25},
	{Value: WorkloadTasks, Weight: 10},
	{Value: WorkloadBrowse, Weight: 25},
}
