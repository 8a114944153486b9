package trainer

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/uuid/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"traffic-forge/internal/dataset"
	"traffic-forge/internal/logger"
	"traffic-forge/internal/metrics"
	"traffic-forge/internal/model"
)

// RunConfig captures everything the pipeline needs, from the dataset root to
// where the fitted classifier is written.
type RunConfig struct {
	Fs      afero.Fs
	DataDir string
	Workers int
	// Normalize scales intensities to [0,1] before splitting. Disabling it
	// leaves raw [0,255] values, which is only useful to study training
	// stability.
	Normalize    bool
	TestFraction float64
	Seed         int64

	Architecture model.Architecture
	Train        model.TrainOptions
	Epochs       int
	BatchSize    int
	LogEvery     int

	// ModelOut, if set, receives the fitted classifier.
	ModelOut string
	Recorder *metrics.Recorder

	// OnTotal and OnImage report loading progress.
	OnTotal func(total int)
	OnImage func()
}

// Report summarizes a pipeline run.
type Report struct {
	RunID        string
	Samples      int
	TrainIndices []int
	TestIndices  []int
	History      History
	Train        Evaluation
	Test         Evaluation
}

// Validate checks the configuration before any file is read.
func (c RunConfig) Validate() error {
	if c.Fs == nil {
		return errors.New("run: filesystem is nil")
	}
	if c.DataDir == "" {
		return errors.New("run: data directory is required")
	}
	if !(c.TestFraction > 0 && c.TestFraction < 1) {
		return errors.Wrapf(dataset.ErrInvalidFraction, "got %g", c.TestFraction)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("run: epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("run: batch size must be > 0 (got %d)", c.BatchSize)
	}
	return c.Architecture.Validate()
}

// Run executes the pipeline: load, normalize, split, fit, evaluate and
// optionally save. Stages run strictly one after the other.
func Run(ctx context.Context, cfg RunConfig) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	runID := uuid.Must(uuid.NewV4()).String()
	log := logger.WithNamespace("trainer").WithField("run_id", runID)

	ds, err := dataset.Load(ctx, cfg.Fs, cfg.DataDir, dataset.LoadOptions{
		Width:         cfg.Architecture.Width,
		Height:        cfg.Architecture.Height,
		NumCategories: cfg.Architecture.NumCategories,
		Workers:       cfg.Workers,
		OnTotal:       cfg.OnTotal,
		OnImage:       cfg.OnImage,
	})
	if err != nil {
		return Report{}, err
	}
	if err := ds.Validate(); err != nil {
		return Report{}, err
	}
	if cfg.Normalize {
		ds = dataset.Normalize(ds)
	} else {
		log.Warn("pixel normalization disabled")
	}

	split, err := dataset.SplitDataset(ds, cfg.TestFraction, cfg.Seed)
	if err != nil {
		return Report{}, err
	}
	log.WithFields(logrus.Fields{
		"train": split.Train.Len(),
		"test":  split.Test.Len(),
	}).Info("dataset split")

	opts := cfg.Train
	opts.NormalizedInputs = cfg.Normalize
	net, err := model.New(cfg.Architecture, opts)
	if err != nil {
		return Report{}, err
	}
	log.Infof("classifier has %s parameters", humanize.Comma(int64(net.ParamCount())))

	history, err := Fit(ctx, net, split.Train, FitConfig{
		Epochs:    cfg.Epochs,
		BatchSize: cfg.BatchSize,
		Seed:      cfg.Seed,
		LogEvery:  cfg.LogEvery,
		Recorder:  cfg.Recorder,
		Log:       log,
	})
	if err != nil {
		return Report{}, err
	}

	report := Report{
		RunID:        runID,
		Samples:      ds.Len(),
		TrainIndices: split.TrainIndices,
		TestIndices:  split.TestIndices,
		History:      history,
	}
	if report.Train, err = Evaluate(ctx, net, split.Train, cfg.BatchSize); err != nil {
		return report, err
	}
	if report.Test, err = Evaluate(ctx, net, split.Test, cfg.BatchSize); err != nil {
		return report, err
	}
	cfg.Recorder.ObserveEvaluation("train", report.Train.Loss, report.Train.Accuracy)
	cfg.Recorder.ObserveEvaluation("test", report.Test.Loss, report.Test.Accuracy)
	log.WithFields(logrus.Fields{
		"loss":     report.Test.Loss,
		"accuracy": report.Test.Accuracy,
	}).Info("test evaluation")

	if cfg.ModelOut != "" {
		if err := SaveModel(cfg.Fs, cfg.ModelOut, net); err != nil {
			return report, err
		}
		log.WithField("path", cfg.ModelOut).Info("classifier saved")
	}
	return report, nil
}

// SaveModel writes net to path on fs.
func SaveModel(fs afero.Fs, path string, net *model.Network) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "save classifier")
	}
	if err := net.Save(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "save classifier")
}

// LoadModel reads a classifier saved by SaveModel.
func LoadModel(fs afero.Fs, path string) (*model.Network, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load classifier")
	}
	defer f.Close()
	return model.Load(f, model.TrainOptions{})
}
