package model

import (
	"math"
	"math/rand"
)

// param is a trainable array together with its accumulated gradient.
type param struct {
	name  string
	value []float64
	grad  []float64
}

func newParam(name string, size int) *param {
	return &param{name: name, value: make([]float64, size), grad: make([]float64, size)}
}

func (p *param) zeroGrad() {
	for i := range p.grad {
		p.grad[i] = 0
	}
}

func (p *param) fill(v float64) {
	for i := range p.value {
		p.value[i] = v
	}
}

// heUniform draws from U(-l, l) with l = sqrt(6/fanIn), suited to ReLU layers.
func heUniform(values []float64, fanIn int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn))
	for i := range values {
		values[i] = (rng.Float64()*2 - 1) * limit
	}
}

// glorotUniform draws from U(-l, l) with l = sqrt(6/(fanIn+fanOut)).
func glorotUniform(values []float64, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range values {
		values[i] = (rng.Float64()*2 - 1) * limit
	}
}
