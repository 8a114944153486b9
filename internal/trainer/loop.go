package trainer

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"traffic-forge/internal/dataset"
	"traffic-forge/internal/logger"
	"traffic-forge/internal/metrics"
	"traffic-forge/internal/model"
)

// FitConfig captures the knobs required by the training loop.
type FitConfig struct {
	Epochs    int
	BatchSize int
	// Seed drives the per-epoch shuffling of the training subset.
	Seed int64
	// LogEvery emits a debug line every LogEvery batches.
	LogEvery int
	Recorder *metrics.Recorder
	Log      *logrus.Entry
}

// EpochMetrics is the observable outcome of one pass over the training set.
type EpochMetrics struct {
	Epoch        int
	Loss         float64
	Accuracy     float64
	Diverged     bool
	ImagesPerSec float64
	Duration     time.Duration
}

// History holds the metrics of every completed epoch in order.
type History []EpochMetrics

// Diverged reports whether any epoch produced a non-finite loss.
func (h History) Diverged() bool {
	for _, e := range h {
		if e.Diverged {
			return true
		}
	}
	return false
}

// Final returns the metrics of the last epoch.
func (h History) Final() EpochMetrics {
	if len(h) == 0 {
		return EpochMetrics{}
	}
	return h[len(h)-1]
}

// Fit trains m on train for cfg.Epochs passes. Each pass visits every
// sample exactly once in shuffled mini-batches. A non-finite loss does not
// stop training: it is flagged on the epoch so the caller can react.
func Fit(ctx context.Context, m model.Model, train dataset.Dataset, cfg FitConfig) (History, error) {
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("trainer: batch size must be > 0")
	}
	if train.Len() == 0 {
		return nil, errors.New("trainer: empty training set")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}
	log := cfg.Log
	if log == nil {
		log = logger.WithNamespace("trainer")
	}

	sampler := dataset.NewSampler(train.Len(), cfg.BatchSize, cfg.Seed)
	history := make(History, 0, cfg.Epochs)
	var window metrics.Window

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		for step, indices := range sampler.Epoch() {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			startData := time.Now()
			inputs, labels := train.Inputs(indices)
			dataTime := time.Since(startData)

			startCompute := time.Now()
			res, err := m.TrainStep(model.Batch{Inputs: inputs, Labels: labels})
			if err != nil {
				return history, errors.Wrapf(err, "epoch %d step %d", epoch, step+1)
			}
			computeTime := time.Since(startCompute)

			window.Record(res.Count, res.Correct, dataTime, computeTime, res.Loss)

			if (step+1)%cfg.LogEvery == 0 {
				log.WithFields(logrus.Fields{
					"epoch": epoch,
					"step":  step + 1,
				}).Debugf("loss=%.4f", res.Loss)
			}
		}

		snap := window.Snapshot()
		em := EpochMetrics{
			Epoch:        epoch,
			Loss:         snap.MeanLoss,
			Accuracy:     snap.Accuracy,
			Diverged:     math.IsNaN(snap.MeanLoss) || math.IsInf(snap.MeanLoss, 0),
			ImagesPerSec: snap.ImagesPerSec,
			Duration:     time.Since(start),
		}
		history = append(history, em)
		cfg.Recorder.ObserveEpoch(epoch, em.Loss, em.Accuracy, em.ImagesPerSec, em.Diverged)

		entry := log.WithFields(logrus.Fields{
			"epoch":          epoch,
			"loss":           em.Loss,
			"last_loss":      snap.LastLoss,
			"accuracy":       em.Accuracy,
			"images_per_sec": math.Round(em.ImagesPerSec),
			"data_ms":        snap.AvgDataMS,
			"compute_ms":     snap.AvgComputeMS,
		})
		if em.Diverged {
			entry.Warn("training loss is not finite")
		} else {
			entry.Info("epoch complete")
		}
	}
	return history, nil
}
