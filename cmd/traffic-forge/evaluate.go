package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"traffic-forge/internal/config"
	"traffic-forge/internal/trainer"
)

func newEvaluateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate MODEL DATA_DIR",
		Short: "Score a saved classifier on every image of a directory",
		Long: `Load the classifier saved at MODEL and report its loss and accuracy on
every image under DATA_DIR. Pixels are scaled the way the classifier was
trained.`,
		Args: cobra.ExactArgs(2),
		RunE: runEvaluate,
	}
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, config.Overrides{DataDir: args[1]})
	if err != nil {
		return err
	}

	onTotal, onImage, finish := progress(cmd)
	ev, err := trainer.EvaluateSaved(cmd.Context(), trainer.SavedModelOptions{
		Fs:        afero.NewOsFs(),
		ModelPath: args[0],
		DataDir:   cfg.DataDir,
		Workers:   cfg.Workers,
		BatchSize: cfg.BatchSize,
		OnTotal:   onTotal,
		OnImage:   onImage,
	})
	finish()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loss=%.4f accuracy=%.4f (%d images)\n", ev.Loss, ev.Accuracy, ev.Count)
	return nil
}
