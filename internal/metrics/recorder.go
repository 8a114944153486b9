package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes training progress as Prometheus gauges on a private
// registry, so that a run can be dumped in the node exporter textfile
// format when it completes.
type Recorder struct {
	registry     *prometheus.Registry
	epoch        prometheus.Gauge
	epochLoss    prometheus.Gauge
	epochAcc     prometheus.Gauge
	throughput   prometheus.Gauge
	diverged     prometheus.Counter
	evalLoss     *prometheus.GaugeVec
	evalAccuracy *prometheus.GaugeVec
}

// NewRecorder registers the training collectors on a new registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic",
			Subsystem: "train",
			Name:      "epoch",
			Help:      "Last completed training epoch.",
		}),
		epochLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic",
			Subsystem: "train",
			Name:      "loss",
			Help:      "Mean training loss of the last completed epoch.",
		}),
		epochAcc: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic",
			Subsystem: "train",
			Name:      "accuracy",
			Help:      "Training accuracy of the last completed epoch.",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "traffic",
			Subsystem: "train",
			Name:      "images_per_second",
			Help:      "Training throughput of the last completed epoch.",
		}),
		diverged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "traffic",
			Subsystem: "train",
			Name:      "diverged_epochs_total",
			Help:      "Epochs whose training loss was not finite.",
		}),
		evalLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "traffic",
			Subsystem: "eval",
			Name:      "loss",
			Help:      "Evaluation loss, labelled by subset.",
		}, []string{"subset"}),
		evalAccuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "traffic",
			Subsystem: "eval",
			Name:      "accuracy",
			Help:      "Evaluation accuracy, labelled by subset.",
		}, []string{"subset"}),
	}
	r.registry.MustRegister(r.epoch, r.epochLoss, r.epochAcc, r.throughput, r.diverged, r.evalLoss, r.evalAccuracy)
	return r
}

// ObserveEpoch records the metrics of a completed epoch. A nil Recorder
// ignores the call.
func (r *Recorder) ObserveEpoch(epoch int, loss, accuracy, imagesPerSec float64, diverged bool) {
	if r == nil {
		return
	}
	r.epoch.Set(float64(epoch))
	r.epochLoss.Set(loss)
	r.epochAcc.Set(accuracy)
	r.throughput.Set(imagesPerSec)
	if diverged {
		r.diverged.Inc()
	}
}

// ObserveEvaluation records the result of evaluating one subset.
func (r *Recorder) ObserveEvaluation(subset string, loss, accuracy float64) {
	if r == nil {
		return
	}
	r.evalLoss.WithLabelValues(subset).Set(loss)
	r.evalAccuracy.WithLabelValues(subset).Set(accuracy)
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile dumps every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrap(err, "write metrics")
	}
	return nil
}
