package model

// Batch represents a minibatch of features and labels. Each input is one
// image flattened in height, width, channel order.
type Batch struct {
	Inputs [][]float64
	Labels []int
}

// StepResult aggregates the outcome of one pass over a batch.
type StepResult struct {
	Loss    float64 // mean loss over the batch
	Correct int
	Count   int
}

// Model defines the training functionality required by the trainer.
type Model interface {
	// TrainStep runs forward and backward passes and updates parameters.
	TrainStep(batch Batch) (StepResult, error)
	// Evaluate scores the batch without mutating any parameter.
	Evaluate(batch Batch) (StepResult, error)
}
