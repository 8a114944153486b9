package model

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// conv2D is a valid-padding, stride 1 convolution followed by a ReLU.
// The kernel is stored as outC rows of k*k*inC weights in (ky, kx, c) order,
// which is the layout of an im2col patch over an HWC input.
type conv2D struct {
	inC, outC, k int
	w, b         *param
	// firstLayer skips the input gradient, nothing consumes it.
	firstLayer bool

	inH, inW int
	cols     []*mat.Dense
	out      *Tensor
}

func newConv2D(name string, inC, outC, k int, rng *rand.Rand) *conv2D {
	fanIn := k * k * inC
	c := &conv2D{
		inC:  inC,
		outC: outC,
		k:    k,
		w:    newParam(name+".kernel", outC*fanIn),
		b:    newParam(name+".bias", outC),
	}
	heUniform(c.w.value, fanIn, rng)
	return c
}

func (c *conv2D) params() []*param { return []*param{c.w, c.b} }

func (c *conv2D) patchSize() int { return c.k * c.k * c.inC }

func (c *conv2D) outputShape(h, w int) (int, int) {
	return h - c.k + 1, w - c.k + 1
}

func (c *conv2D) im2col(x []float64, h, w int) *mat.Dense {
	oh, ow := c.outputShape(h, w)
	patch := c.patchSize()
	span := c.k * c.inC
	data := make([]float64, oh*ow*patch)
	for y := 0; y < oh; y++ {
		for xx := 0; xx < ow; xx++ {
			row := data[(y*ow+xx)*patch:]
			for ky := 0; ky < c.k; ky++ {
				start := ((y+ky)*w + xx) * c.inC
				copy(row[ky*span:(ky+1)*span], x[start:start+span])
			}
		}
	}
	return mat.NewDense(oh*ow, patch, data)
}

func (c *conv2D) col2im(dcol []float64, dx []float64, h, w int) {
	oh, ow := c.outputShape(h, w)
	patch := c.patchSize()
	span := c.k * c.inC
	for y := 0; y < oh; y++ {
		for xx := 0; xx < ow; xx++ {
			row := dcol[(y*ow+xx)*patch:]
			for ky := 0; ky < c.k; ky++ {
				start := ((y+ky)*w + xx) * c.inC
				floats.Add(dx[start:start+span], row[ky*span:(ky+1)*span])
			}
		}
	}
}

func (c *conv2D) forward(x *Tensor, training bool) *Tensor {
	oh, ow := c.outputShape(x.H, x.W)
	out := newTensor(x.N, oh, ow, c.outC)
	kernel := mat.NewDense(c.outC, c.patchSize(), c.w.value)
	cols := make([]*mat.Dense, x.N)
	forEachSample(x.N, func(i int) {
		col := c.im2col(x.sample(i), x.H, x.W)
		y := out.sample(i)
		dst := mat.NewDense(oh*ow, c.outC, y)
		dst.Mul(col, kernel.T())
		for j := range y {
			v := y[j] + c.b.value[j%c.outC]
			if v < 0 {
				v = 0
			}
			y[j] = v
		}
		if training {
			cols[i] = col
		}
	})
	if training {
		c.inH, c.inW = x.H, x.W
		c.cols = cols
		c.out = out
	}
	return out
}

func (c *conv2D) backward(dy *Tensor) *Tensor {
	oh, ow := c.outputShape(c.inH, c.inW)
	kernel := mat.NewDense(c.outC, c.patchSize(), c.w.value)
	var dx *Tensor
	if !c.firstLayer {
		dx = newTensor(dy.N, c.inH, c.inW, c.inC)
	}
	kernelGrads := make([][]float64, dy.N)
	biasGrads := make([][]float64, dy.N)
	forEachSample(dy.N, func(i int) {
		g := dy.sample(i)
		y := c.out.sample(i)
		d := make([]float64, len(g))
		bg := make([]float64, c.outC)
		for j := range g {
			if y[j] > 0 {
				d[j] = g[j]
				bg[j%c.outC] += g[j]
			}
		}
		dOut := mat.NewDense(oh*ow, c.outC, d)
		var dw mat.Dense
		dw.Mul(dOut.T(), c.cols[i])
		kernelGrads[i] = dw.RawMatrix().Data
		biasGrads[i] = bg
		if dx != nil {
			var dcol mat.Dense
			dcol.Mul(dOut, kernel)
			c.col2im(dcol.RawMatrix().Data, dx.sample(i), c.inH, c.inW)
		}
	})
	// Reduced in sample order so results do not depend on scheduling.
	for i := range kernelGrads {
		floats.Add(c.w.grad, kernelGrads[i])
		floats.Add(c.b.grad, biasGrads[i])
	}
	c.cols = nil
	return dx
}
