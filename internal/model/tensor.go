package model

// Tensor is a batch of activations stored in N, H, W, C order.
type Tensor struct {
	N, H, W, C int
	Data       []float64
}

func newTensor(n, h, w, c int) *Tensor {
	return &Tensor{N: n, H: h, W: w, C: c, Data: make([]float64, n*h*w*c)}
}

func (t *Tensor) sampleSize() int {
	return t.H * t.W * t.C
}

func (t *Tensor) sample(i int) []float64 {
	s := t.sampleSize()
	return t.Data[i*s : (i+1)*s]
}

func (t *Tensor) reshape(h, w, c int) *Tensor {
	return &Tensor{N: t.N, H: h, W: w, C: c, Data: t.Data}
}
