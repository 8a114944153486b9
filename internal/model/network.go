package model

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
)

// Channels is the number of color channels of every input image.
const Channels = 3

// NumStages is the number of convolution stages of the network.
const NumStages = 2

const poolSize = 2

var (
	// ErrInvalidArchitecture is returned when an Architecture cannot be built.
	ErrInvalidArchitecture = errors.New("model: invalid architecture")
	// ErrInvalidBatch is returned when a batch does not match the network.
	ErrInvalidBatch = errors.New("model: invalid batch")
)

// Architecture enumerates the topology of the classifier:
//
//	stage = conv(filters, ReLU) -> layer norm -> max pool 2x2 -> dropout
//	net   = stage x 2 -> flatten -> dense(hidden, ReLU) -> dropout -> dense(categories)
//
// The output layer emits raw scores; the loss applies the softmax.
type Architecture struct {
	Width         int
	Height        int
	NumCategories int
	Filters       []int
	KernelSize    int
	StageDropout  float64
	HiddenUnits   int
	HeadDropout   float64
	// LayerNorm enables the per-stage normalization after each convolution.
	LayerNorm bool
}

// DefaultArchitecture returns the tuned topology for 30x30 inputs.
func DefaultArchitecture(numCategories int) Architecture {
	return Architecture{
		Width:         30,
		Height:        30,
		NumCategories: numCategories,
		Filters:       []int{32, 64},
		KernelSize:    3,
		StageDropout:  0.2,
		HiddenUnits:   128,
		HeadDropout:   0.5,
		LayerNorm:     true,
	}
}

// Validate reports whether the architecture can be built.
func (a Architecture) Validate() error {
	if a.Width <= 0 || a.Height <= 0 {
		return errors.Wrapf(ErrInvalidArchitecture, "image size must be positive (got %dx%d)", a.Width, a.Height)
	}
	if a.NumCategories <= 0 {
		return errors.Wrapf(ErrInvalidArchitecture, "category count must be positive (got %d)", a.NumCategories)
	}
	if len(a.Filters) != NumStages {
		return errors.Wrapf(ErrInvalidArchitecture, "expected %d stage filter counts (got %d)", NumStages, len(a.Filters))
	}
	for i, f := range a.Filters {
		if f <= 0 {
			return errors.Wrapf(ErrInvalidArchitecture, "stage %d filters must be positive (got %d)", i+1, f)
		}
	}
	if a.KernelSize <= 0 {
		return errors.Wrapf(ErrInvalidArchitecture, "kernel size must be positive (got %d)", a.KernelSize)
	}
	if a.HiddenUnits <= 0 {
		return errors.Wrapf(ErrInvalidArchitecture, "hidden units must be positive (got %d)", a.HiddenUnits)
	}
	for _, rate := range []float64{a.StageDropout, a.HeadDropout} {
		if rate < 0 || rate >= 1 {
			return errors.Wrapf(ErrInvalidArchitecture, "dropout rate must be in [0,1) (got %g)", rate)
		}
	}
	if _, _, err := a.featureShape(); err != nil {
		return err
	}
	return nil
}

// featureShape returns the spatial size reaching the flatten layer.
func (a Architecture) featureShape() (int, int, error) {
	h, w := a.Height, a.Width
	for range a.Filters {
		h, w = (h-a.KernelSize+1)/poolSize, (w-a.KernelSize+1)/poolSize
		if h <= 0 || w <= 0 {
			return 0, 0, errors.Wrapf(ErrInvalidArchitecture,
				"input %dx%d too small for %d stages of %dx%d kernels",
				a.Width, a.Height, len(a.Filters), a.KernelSize, a.KernelSize)
		}
	}
	return h, w, nil
}

// InputSize is the flattened length of one input image.
func (a Architecture) InputSize() int {
	return a.Height * a.Width * Channels
}

// TrainOptions configures the optimizer and the random source shared by
// weight initialization and dropout.
type TrainOptions struct {
	Optimizer    string
	LearningRate float64
	Seed         int64
	// NormalizedInputs records that the network is fed intensities scaled
	// to [0,1] rather than raw [0,255] values. It is saved with the network.
	NormalizedInputs bool
}

// Network is the convolutional classifier. Parameters are mutated only by
// TrainStep; a Network must not be trained from several goroutines.
type Network struct {
	arch       Architecture
	normalized bool
	layers     []layer
	params     []*param
	opt        optimizer
}

// New builds a randomly initialized network. The same architecture and seed
// always produce the same initial parameters.
func New(arch Architecture, opts TrainOptions) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	opt, err := newOptimizer(opts.Optimizer, opts.LearningRate)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	n := &Network{arch: arch, normalized: opts.NormalizedInputs, opt: opt}
	h, w, c := arch.Height, arch.Width, Channels
	for s, filters := range arch.Filters {
		prefix := fmt.Sprintf("stage%d", s+1)
		conv := newConv2D(prefix+".conv", c, filters, arch.KernelSize, rng)
		conv.firstLayer = s == 0
		n.layers = append(n.layers, conv)
		if arch.LayerNorm {
			n.layers = append(n.layers, newBatchNorm(prefix+".norm", filters))
		}
		n.layers = append(n.layers, newMaxPool(poolSize), newDropout(arch.StageDropout, rng))
		h, w, c = (h-arch.KernelSize+1)/poolSize, (w-arch.KernelSize+1)/poolSize, filters
	}
	n.layers = append(n.layers,
		&flatten{},
		newDense("head.hidden", h*w*c, arch.HiddenUnits, true, rng),
		newDropout(arch.HeadDropout, rng),
		newDense("head.output", arch.HiddenUnits, arch.NumCategories, false, rng),
	)
	for _, l := range n.layers {
		n.params = append(n.params, l.params()...)
	}
	return n, nil
}

// Architecture returns the topology the network was built with.
func (n *Network) Architecture() Architecture {
	return n.arch
}

// NormalizedInputs reports whether the network expects intensities scaled to
// [0,1].
func (n *Network) NormalizedInputs() bool {
	return n.normalized
}

// ParamCount is the number of trainable scalars.
func (n *Network) ParamCount() int {
	total := 0
	for _, p := range n.params {
		total += len(p.value)
	}
	return total
}

// TrainStep implements Model.
func (n *Network) TrainStep(batch Batch) (StepResult, error) {
	x, err := n.inputs(batch, true)
	if err != nil {
		return StepResult{}, err
	}
	for _, p := range n.params {
		p.zeroGrad()
	}
	out := x
	for _, l := range n.layers {
		out = l.forward(out, true)
	}
	loss, grad, correct := softmaxCrossEntropy(out, batch.Labels)
	for i := len(n.layers) - 1; i >= 0 && grad != nil; i-- {
		grad = n.layers[i].backward(grad)
	}
	n.opt.update(n.params)
	return StepResult{Loss: loss, Correct: correct, Count: len(batch.Labels)}, nil
}

// Evaluate implements Model. Dropout is disabled and layer normalization uses
// its moving statistics; nothing is mutated.
func (n *Network) Evaluate(batch Batch) (StepResult, error) {
	x, err := n.inputs(batch, true)
	if err != nil {
		return StepResult{}, err
	}
	loss, _, correct := softmaxCrossEntropy(n.scores(x), batch.Labels)
	return StepResult{Loss: loss, Correct: correct, Count: len(batch.Labels)}, nil
}

// Predict returns one probability distribution over categories per input.
func (n *Network) Predict(inputs [][]float64) ([][]float64, error) {
	x, err := n.inputs(Batch{Inputs: inputs}, false)
	if err != nil {
		return nil, err
	}
	scores := n.scores(x)
	out := make([][]float64, scores.N)
	for i := range out {
		out[i] = softmax(scores.sample(i))
	}
	return out, nil
}

func (n *Network) scores(x *Tensor) *Tensor {
	out := x
	for _, l := range n.layers {
		out = l.forward(out, false)
	}
	return out
}

func (n *Network) inputs(batch Batch, labelled bool) (*Tensor, error) {
	if len(batch.Inputs) == 0 {
		return nil, errors.Wrap(ErrInvalidBatch, "empty batch")
	}
	if labelled && len(batch.Labels) != len(batch.Inputs) {
		return nil, errors.Wrapf(ErrInvalidBatch, "%d inputs but %d labels", len(batch.Inputs), len(batch.Labels))
	}
	size := n.arch.InputSize()
	x := newTensor(len(batch.Inputs), n.arch.Height, n.arch.Width, Channels)
	for i, in := range batch.Inputs {
		if len(in) != size {
			return nil, errors.Wrapf(ErrInvalidBatch, "input %d has %d values, want %d", i, len(in), size)
		}
		copy(x.sample(i), in)
		if labelled {
			if l := batch.Labels[i]; l < 0 || l >= n.arch.NumCategories {
				return nil, errors.Wrapf(ErrInvalidBatch, "label %d outside [0,%d)", l, n.arch.NumCategories)
			}
		}
	}
	return x, nil
}
