package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// softmaxCrossEntropy scores raw logits against integer labels in one step,
// using log-sum-exp so large scores never overflow. It returns the mean loss,
// the gradient of that mean with respect to the logits and the number of
// rows whose highest score matches the label.
func softmaxCrossEntropy(logits *Tensor, labels []int) (float64, *Tensor, int) {
	grad := newTensor(logits.N, logits.H, logits.W, logits.C)
	total := 0.0
	correct := 0
	inv := 1 / float64(logits.N)
	for i := 0; i < logits.N; i++ {
		z := logits.sample(i)
		g := grad.sample(i)
		label := labels[i]

		maxLogit := floats.Max(z)
		sum := 0.0
		for j, v := range z {
			e := math.Exp(v - maxLogit)
			g[j] = e
			sum += e
		}
		total += maxLogit + math.Log(sum) - z[label]
		for j := range g {
			g[j] = g[j] / sum * inv
		}
		g[label] -= inv

		if argmax(z) == label {
			correct++
		}
	}
	return total * inv, grad, correct
}

// softmax converts raw scores to probabilities.
func softmax(logits []float64) []float64 {
	maxLogit := floats.Max(logits)
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	floats.Scale(1/sum, out)
	return out
}

// argmax returns the index of the largest score, the first one on ties.
// NaN scores never win.
func argmax(z []float64) int {
	best := 0
	for j := 1; j < len(z); j++ {
		if z[j] > z[best] || math.IsNaN(z[best]) {
			best = j
		}
	}
	return best
}
