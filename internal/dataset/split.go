package dataset

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Split is a partition of a Dataset into training and test subsets. The
// index slices record which original sample landed where, in subset order.
type Split struct {
	Train        Dataset
	Test         Dataset
	TrainIndices []int
	TestIndices  []int
}

// TestSize returns the number of samples reserved for testing out of n:
// ceil(fraction * n), ignoring floating point noise so that 0.7 * 10 is 7.
func TestSize(n int, fraction float64) int {
	return int(math.Ceil(fraction*float64(n) - 1e-9))
}

// SplitDataset shuffles the sample indices of d with a source seeded by seed
// and assigns the first TestSize of them to the test subset, the rest to the
// training subset. The same seed and input order always give the same
// partition.
func SplitDataset(d Dataset, fraction float64, seed int64) (Split, error) {
	if !(fraction > 0 && fraction < 1) {
		return Split{}, errors.Wrapf(ErrInvalidFraction, "got %g", fraction)
	}
	if len(d.Images) != len(d.Labels) {
		return Split{}, errors.Wrapf(ErrShapeMismatch, "%d images but %d labels", len(d.Images), len(d.Labels))
	}
	n := d.Len()
	nTest := TestSize(n, fraction)
	if nTest < 1 || n-nTest < 1 {
		return Split{}, errors.Wrapf(ErrDatasetTooSmall, "%d samples with test fraction %g", n, fraction)
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	s := Split{
		TestIndices:  perm[:nTest],
		TrainIndices: perm[nTest:],
	}
	s.Test = d.Subset(s.TestIndices)
	s.Train = d.Subset(s.TrainIndices)
	return s, nil
}
