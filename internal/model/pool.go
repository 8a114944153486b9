package model

import "math"

// maxPool takes the maximum over non-overlapping size x size windows.
// Trailing rows and columns that do not fill a window are dropped.
type maxPool struct {
	size   int
	inH    int
	inW    int
	argmax []int
}

func newMaxPool(size int) *maxPool {
	return &maxPool{size: size}
}

func (p *maxPool) params() []*param { return nil }

func (p *maxPool) forward(x *Tensor, training bool) *Tensor {
	oh, ow := x.H/p.size, x.W/p.size
	out := newTensor(x.N, oh, ow, x.C)
	argmax := make([]int, len(out.Data))
	j := 0
	for n := 0; n < x.N; n++ {
		base := n * x.sampleSize()
		for y := 0; y < oh; y++ {
			for xx := 0; xx < ow; xx++ {
				for c := 0; c < x.C; c++ {
					best := math.Inf(-1)
					bestIdx := -1
					for dy := 0; dy < p.size; dy++ {
						for dx := 0; dx < p.size; dx++ {
							idx := base + ((y*p.size+dy)*x.W+xx*p.size+dx)*x.C + c
							if v := x.Data[idx]; v > best || bestIdx < 0 {
								best, bestIdx = v, idx
							}
						}
					}
					out.Data[j] = best
					argmax[j] = bestIdx
					j++
				}
			}
		}
	}
	if training {
		p.inH, p.inW, p.argmax = x.H, x.W, argmax
	}
	return out
}

func (p *maxPool) backward(dy *Tensor) *Tensor {
	dx := newTensor(dy.N, p.inH, p.inW, dy.C)
	for j, g := range dy.Data {
		dx.Data[p.argmax[j]] += g
	}
	return dx
}
