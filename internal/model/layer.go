package model

// layer is one differentiable stage of the network. forward caches what
// backward needs only when training is true; backward must follow a
// training forward and returns the gradient with respect to its input.
type layer interface {
	forward(x *Tensor, training bool) *Tensor
	backward(dy *Tensor) *Tensor
	params() []*param
}

// stateful layers carry non-trainable state that must be persisted.
type stateful interface {
	saveState(dst map[string][]float64)
	loadState(src map[string][]float64) error
}

type flatten struct {
	h, w, c int
}

func (f *flatten) forward(x *Tensor, training bool) *Tensor {
	f.h, f.w, f.c = x.H, x.W, x.C
	return x.reshape(1, 1, x.sampleSize())
}

func (f *flatten) backward(dy *Tensor) *Tensor {
	return dy.reshape(f.h, f.w, f.c)
}

func (f *flatten) params() []*param { return nil }
