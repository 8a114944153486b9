package dataset

import (
	"math/rand"
)

// Sampler yields the mini-batch order of successive epochs. Each epoch is a
// fresh permutation drawn from a source seeded once, so a run is
// reproducible from its seed.
type Sampler struct {
	n         int
	batchSize int
	rng       *rand.Rand
}

// NewSampler returns a sampler over n samples.
func NewSampler(n, batchSize int, seed int64) *Sampler {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Sampler{n: n, batchSize: batchSize, rng: rand.New(rand.NewSource(seed))}
}

// Epoch returns the batches of the next epoch. Every index in [0,n) appears
// exactly once; only the last batch may be short.
func (s *Sampler) Epoch() [][]int {
	return Batches(s.rng.Perm(s.n), s.batchSize)
}

// Batches cuts order into consecutive batches of batchSize.
func Batches(order []int, batchSize int) [][]int {
	if batchSize <= 0 {
		batchSize = 1
	}
	batches := make([][]int, 0, (len(order)+batchSize-1)/batchSize)
	for start := 0; start < len(order); start += batchSize {
		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		batches = append(batches, order[start:end])
	}
	return batches
}
