package trainer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"traffic-forge/internal/dataset"
	"traffic-forge/internal/model"
)

// Evaluation is the aggregate loss and accuracy over a subset.
type Evaluation struct {
	Loss     float64
	Accuracy float64
	Count    int
}

// Evaluate scores m on every sample of d, batchSize at a time, using the
// training loss. The model is not modified.
func Evaluate(ctx context.Context, m model.Model, d dataset.Dataset, batchSize int) (Evaluation, error) {
	if d.Len() == 0 {
		return Evaluation{}, errors.New("evaluate: empty dataset")
	}
	if batchSize <= 0 {
		batchSize = d.Len()
	}
	order := make([]int, d.Len())
	for i := range order {
		order[i] = i
	}

	var lossSum float64
	var correct, count int
	for _, indices := range dataset.Batches(order, batchSize) {
		if err := ctx.Err(); err != nil {
			return Evaluation{}, err
		}
		inputs, labels := d.Inputs(indices)
		res, err := m.Evaluate(model.Batch{Inputs: inputs, Labels: labels})
		if err != nil {
			return Evaluation{}, errors.Wrap(err, "evaluate")
		}
		lossSum += res.Loss * float64(res.Count)
		correct += res.Correct
		count += res.Count
	}
	return Evaluation{
		Loss:     lossSum / float64(count),
		Accuracy: float64(correct) / float64(count),
		Count:    count,
	}, nil
}

// SavedModelOptions locates a saved classifier and the images to score it on.
type SavedModelOptions struct {
	Fs        afero.Fs
	ModelPath string
	DataDir   string
	Workers   int
	BatchSize int

	OnTotal func(total int)
	OnImage func()
}

// EvaluateSaved loads the classifier at opts.ModelPath and scores it on every
// image under opts.DataDir. Images are scaled the way the classifier was
// trained, whatever the current configuration says.
func EvaluateSaved(ctx context.Context, opts SavedModelOptions) (Evaluation, error) {
	net, err := LoadModel(opts.Fs, opts.ModelPath)
	if err != nil {
		return Evaluation{}, err
	}
	arch := net.Architecture()
	ds, err := dataset.Load(ctx, opts.Fs, opts.DataDir, dataset.LoadOptions{
		Width:         arch.Width,
		Height:        arch.Height,
		NumCategories: arch.NumCategories,
		Workers:       opts.Workers,
		OnTotal:       opts.OnTotal,
		OnImage:       opts.OnImage,
	})
	if err != nil {
		return Evaluation{}, err
	}
	if net.NormalizedInputs() {
		ds = dataset.Normalize(ds)
	}
	return Evaluate(ctx, net, ds, opts.BatchSize)
}
