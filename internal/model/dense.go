package model

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// dense is a fully connected layer over flattened inputs, optionally
// followed by a ReLU. Weights are stored as out rows of in columns.
type dense struct {
	in, out int
	relu    bool
	w, b    *param

	x *Tensor
	y *Tensor
}

func newDense(name string, in, out int, relu bool, rng *rand.Rand) *dense {
	d := &dense{
		in:   in,
		out:  out,
		relu: relu,
		w:    newParam(name+".kernel", out*in),
		b:    newParam(name+".bias", out),
	}
	if relu {
		heUniform(d.w.value, in, rng)
	} else {
		glorotUniform(d.w.value, in, out, rng)
	}
	return d
}

func (d *dense) params() []*param { return []*param{d.w, d.b} }

func (d *dense) forward(x *Tensor, training bool) *Tensor {
	y := newTensor(x.N, 1, 1, d.out)
	xm := mat.NewDense(x.N, d.in, x.Data)
	wm := mat.NewDense(d.out, d.in, d.w.value)
	ym := mat.NewDense(x.N, d.out, y.Data)
	ym.Mul(xm, wm.T())
	for i := 0; i < x.N; i++ {
		row := y.sample(i)
		floats.Add(row, d.b.value)
		if d.relu {
			for j, v := range row {
				if v < 0 {
					row[j] = 0
				}
			}
		}
	}
	if training {
		d.x, d.y = x, y
	}
	return y
}

func (d *dense) backward(dy *Tensor) *Tensor {
	g := make([]float64, len(dy.Data))
	copy(g, dy.Data)
	if d.relu {
		for j := range g {
			if d.y.Data[j] <= 0 {
				g[j] = 0
			}
		}
	}
	for i := 0; i < dy.N; i++ {
		floats.Add(d.b.grad, g[i*d.out:(i+1)*d.out])
	}
	gm := mat.NewDense(dy.N, d.out, g)
	xm := mat.NewDense(dy.N, d.in, d.x.Data)
	var dw mat.Dense
	dw.Mul(gm.T(), xm)
	floats.Add(d.w.grad, dw.RawMatrix().Data)

	dx := newTensor(dy.N, 1, 1, d.in)
	wm := mat.NewDense(d.out, d.in, d.w.value)
	dxm := mat.NewDense(dy.N, d.in, dx.Data)
	dxm.Mul(gm, wm)
	d.x, d.y = nil, nil
	return dx
}
