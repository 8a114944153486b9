package model

import "math/rand"

// dropout zeroes each activation with probability rate during training and
// scales the survivors by 1/(1-rate), so inference is the identity.
type dropout struct {
	rate float64
	rng  *rand.Rand
	mask []float64
}

func newDropout(rate float64, rng *rand.Rand) *dropout {
	return &dropout{rate: rate, rng: rng}
}

func (d *dropout) params() []*param { return nil }

func (d *dropout) forward(x *Tensor, training bool) *Tensor {
	if !training || d.rate == 0 {
		d.mask = nil
		return x
	}
	keep := 1 / (1 - d.rate)
	out := newTensor(x.N, x.H, x.W, x.C)
	mask := make([]float64, len(x.Data))
	for j, v := range x.Data {
		if d.rng.Float64() >= d.rate {
			mask[j] = keep
			out.Data[j] = v * keep
		}
	}
	d.mask = mask
	return out
}

func (d *dropout) backward(dy *Tensor) *Tensor {
	if d.mask == nil {
		return dy
	}
	dx := newTensor(dy.N, dy.H, dy.W, dy.C)
	for j, g := range dy.Data {
		dx.Data[j] = g * d.mask[j]
	}
	return dx
}
