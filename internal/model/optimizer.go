package model

import (
	"math"

	"github.com/pkg/errors"
)

// Supported optimizer names.
const (
	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"
)

// DefaultLearningRate is the Adam step size the topology was tuned with.
const DefaultLearningRate = 0.001

type optimizer interface {
	update(params []*param)
}

func newOptimizer(name string, lr float64) (optimizer, error) {
	if lr <= 0 {
		return nil, errors.Errorf("learning rate must be > 0 (got %g)", lr)
	}
	switch name {
	case OptimizerAdam, "":
		return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}, nil
	case OptimizerSGD:
		return &sgd{lr: lr}, nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", name)
	}
}

type sgd struct {
	lr float64
}

func (o *sgd) update(params []*param) {
	for _, p := range params {
		for i, g := range p.grad {
			p.value[i] -= o.lr * g
		}
	}
}

// adam keeps first and second moment estimates per parameter, indexed by
// the parameter's position in the slice passed to update.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func (o *adam) update(params []*param) {
	if o.m == nil {
		o.m = make([][]float64, len(params))
		o.v = make([][]float64, len(params))
		for i, p := range params {
			o.m[i] = make([]float64, len(p.value))
			o.v[i] = make([]float64, len(p.value))
		}
	}
	o.t++
	c1 := 1 - math.Pow(o.beta1, float64(o.t))
	c2 := 1 - math.Pow(o.beta2, float64(o.t))
	for i, p := range params {
		m, v := o.m[i], o.v[i]
		for j, g := range p.grad {
			m[j] = o.beta1*m[j] + (1-o.beta1)*g
			v[j] = o.beta2*v[j] + (1-o.beta2)*g*g
			p.value[j] -= o.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.eps)
		}
	}
}
