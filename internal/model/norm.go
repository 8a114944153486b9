package model

import (
	"math"

	"github.com/pkg/errors"
)

const (
	normMomentum = 0.9
	normEpsilon  = 1e-3
)

// batchNorm normalizes every channel over the batch and spatial positions,
// then applies a learned scale and shift. Inference uses exponential moving
// averages of the batch statistics, bias corrected for the number of
// updates so a short run is not skewed toward the zero initial value.
type batchNorm struct {
	name        string
	c           int
	gamma, beta *param

	avgMean, avgVar []float64
	updates         int

	xhat   []float64
	invStd []float64
	count  int
}

func newBatchNorm(name string, channels int) *batchNorm {
	n := &batchNorm{
		name:    name,
		c:       channels,
		gamma:   newParam(name+".gamma", channels),
		beta:    newParam(name+".beta", channels),
		avgMean: make([]float64, channels),
		avgVar:  make([]float64, channels),
	}
	n.gamma.fill(1)
	return n
}

func (n *batchNorm) params() []*param { return []*param{n.gamma, n.beta} }

// running returns the bias corrected moving statistics.
func (n *batchNorm) running() (mean, variance []float64) {
	mean = make([]float64, n.c)
	variance = make([]float64, n.c)
	if n.updates == 0 {
		for i := range variance {
			variance[i] = 1
		}
		return mean, variance
	}
	correction := 1 - math.Pow(normMomentum, float64(n.updates))
	for i := 0; i < n.c; i++ {
		mean[i] = n.avgMean[i] / correction
		variance[i] = n.avgVar[i] / correction
	}
	return mean, variance
}

func (n *batchNorm) forward(x *Tensor, training bool) *Tensor {
	out := newTensor(x.N, x.H, x.W, x.C)
	count := len(x.Data) / n.c
	var mean, variance []float64
	if training {
		mean = make([]float64, n.c)
		variance = make([]float64, n.c)
		for j, v := range x.Data {
			mean[j%n.c] += v
		}
		for ch := range mean {
			mean[ch] /= float64(count)
		}
		for j, v := range x.Data {
			d := v - mean[j%n.c]
			variance[j%n.c] += d * d
		}
		for ch := range variance {
			variance[ch] /= float64(count)
			n.avgMean[ch] = normMomentum*n.avgMean[ch] + (1-normMomentum)*mean[ch]
			n.avgVar[ch] = normMomentum*n.avgVar[ch] + (1-normMomentum)*variance[ch]
		}
		n.updates++
	} else {
		mean, variance = n.running()
	}

	invStd := make([]float64, n.c)
	for ch := range invStd {
		invStd[ch] = 1 / math.Sqrt(variance[ch]+normEpsilon)
	}
	var xhat []float64
	if training {
		xhat = make([]float64, len(x.Data))
	}
	for j, v := range x.Data {
		ch := j % n.c
		h := (v - mean[ch]) * invStd[ch]
		if xhat != nil {
			xhat[j] = h
		}
		out.Data[j] = n.gamma.value[ch]*h + n.beta.value[ch]
	}
	if training {
		n.xhat, n.invStd, n.count = xhat, invStd, count
	}
	return out
}

func (n *batchNorm) backward(dy *Tensor) *Tensor {
	sumDy := make([]float64, n.c)
	sumDyXhat := make([]float64, n.c)
	for j, g := range dy.Data {
		ch := j % n.c
		sumDy[ch] += g
		sumDyXhat[ch] += g * n.xhat[j]
	}
	for ch := 0; ch < n.c; ch++ {
		n.gamma.grad[ch] += sumDyXhat[ch]
		n.beta.grad[ch] += sumDy[ch]
	}
	dx := newTensor(dy.N, dy.H, dy.W, dy.C)
	m := float64(n.count)
	for j, g := range dy.Data {
		ch := j % n.c
		scale := n.gamma.value[ch] * n.invStd[ch] / m
		dx.Data[j] = scale * (m*g - sumDy[ch] - n.xhat[j]*sumDyXhat[ch])
	}
	n.xhat = nil
	return dx
}

func (n *batchNorm) saveState(dst map[string][]float64) {
	dst[n.name+".moving_mean"] = append([]float64(nil), n.avgMean...)
	dst[n.name+".moving_variance"] = append([]float64(nil), n.avgVar...)
	dst[n.name+".updates"] = []float64{float64(n.updates)}
}

func (n *batchNorm) loadState(src map[string][]float64) error {
	mean, ok1 := src[n.name+".moving_mean"]
	variance, ok2 := src[n.name+".moving_variance"]
	updates, ok3 := src[n.name+".updates"]
	if !ok1 || !ok2 || !ok3 {
		return errors.Errorf("missing state for %s", n.name)
	}
	if len(mean) != n.c || len(variance) != n.c || len(updates) != 1 {
		return errors.Errorf("state for %s has wrong size", n.name)
	}
	copy(n.avgMean, mean)
	copy(n.avgVar, variance)
	n.updates = int(updates[0])
	return nil
}
