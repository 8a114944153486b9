package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"traffic-forge/internal/config"
	"traffic-forge/internal/metrics"
	"traffic-forge/internal/trainer"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train DATA_DIR [MODEL_OUT]",
		Short: "Train a classifier and report its test accuracy",
		Long: `Load every image under DATA_DIR, split it into training and test
subsets, train the classifier and evaluate it on both subsets. When
MODEL_OUT is given the fitted classifier is written there.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runTrain,
	}
	flags := cmd.Flags()
	flags.Int("img-width", 30, "width images are resized to")
	flags.Int("img-height", 30, "height images are resized to")
	flags.Int("num-categories", 43, "number of categories, directories 0..N-1")
	flags.IntSlice("filters", []int{32, 64}, "filters of the two convolution stages")
	flags.Int("kernel-size", 3, "convolution kernel size")
	flags.Float64("stage-dropout", 0.2, "dropout rate after each convolution stage")
	flags.Int("hidden-units", 128, "units of the hidden dense layer")
	flags.Float64("head-dropout", 0.5, "dropout rate after the hidden dense layer")
	flags.Bool("layer-norm", true, "normalize activations after each convolution")
	flags.Bool("normalize", true, "scale pixel intensities to [0,1]")
	flags.String("optimizer", "adam", "optimizer (adam or sgd)")
	flags.Float64("learning-rate", 0.001, "optimizer learning rate")
	flags.Int("epochs", 10, "number of passes over the training subset")
	flags.Float64("test-fraction", 0.4, "fraction of samples held out for testing")
	flags.Int64("seed", 42, "seed of the split, the initialization and the shuffling")
	flags.Int("log-every", 50, "log the batch loss every N steps at debug level")
	flags.String("metrics-file", "", "write Prometheus metrics to this file when done")
	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	o := config.Overrides{DataDir: args[0]}
	if len(args) == 2 {
		o.ModelOut = args[1]
	}
	cfg, err := loadConfig(cmd, o)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	onTotal, onImage, finish := progress(cmd)
	defer finish()

	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.NewRecorder()
	}
	report, err := trainer.Run(cmd.Context(), trainer.RunConfig{
		Fs:           afero.NewOsFs(),
		DataDir:      cfg.DataDir,
		Workers:      cfg.Workers,
		Normalize:    cfg.Normalize,
		TestFraction: cfg.TestFraction,
		Seed:         cfg.Seed,
		Architecture: cfg.Architecture(),
		Train:        cfg.TrainOptions(),
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LogEvery:     cfg.LogEvery,
		ModelOut:     cfg.ModelOut,
		Recorder:     rec,
		OnTotal:      onTotal,
		OnImage:      onImage,
	})
	if err != nil {
		return err
	}
	if rec != nil {
		if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, e := range report.History {
		marker := ""
		if e.Diverged {
			marker = " (diverged)"
		}
		fmt.Fprintf(out, "epoch %d/%d loss=%.4f accuracy=%.4f%s\n", e.Epoch, cfg.Epochs, e.Loss, e.Accuracy, marker)
	}
	fmt.Fprintf(out, "train loss=%.4f accuracy=%.4f (%d images)\n", report.Train.Loss, report.Train.Accuracy, report.Train.Count)
	fmt.Fprintf(out, "test  loss=%.4f accuracy=%.4f (%d images)\n", report.Test.Loss, report.Test.Accuracy, report.Test.Count)
	if cfg.ModelOut != "" {
		fmt.Fprintf(out, "model saved to %s\n", cfg.ModelOut)
	}
	return nil
}
