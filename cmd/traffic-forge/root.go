package main

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"traffic-forge/internal/config"
	"traffic-forge/internal/logger"
)

var (
	cfgFile      string
	flagJSONLogs bool
	flagProgress bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "traffic-forge",
		Short: "traffic-forge trains traffic sign classifiers",
		Long: `traffic-forge reads a directory of traffic sign images, one numbered
sub-directory per category, and trains a convolutional classifier on a
seeded train/test split of it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagJSONLogs, "log-json", false, "emit logs as JSON")
	root.PersistentFlags().BoolVar(&flagProgress, "progress", false, "show a progress bar while loading images")
	root.PersistentFlags().Int("workers", 0, "number of images decoded concurrently")
	root.PersistentFlags().Int("batch-size", 32, "mini-batch size")

	root.AddCommand(newTrainCmd(), newEvaluateCmd())
	return root
}

// loadConfig reads the configuration and sets up logging from it.
func loadConfig(cmd *cobra.Command, o config.Overrides) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(o)
	if err := logger.Init(logger.Options{
		Output: cmd.ErrOrStderr(),
		Level:  cfg.LogLevel,
		JSON:   flagJSONLogs,
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// progress returns loading callbacks driving a terminal progress bar, or
// nils when the bar is disabled. finish must be called once loading ends.
func progress(cmd *cobra.Command) (onTotal func(int), onImage func(), finish func()) {
	if !flagProgress {
		return nil, nil, func() {}
	}
	bar := pb.New(0)
	bar.SetWriter(cmd.ErrOrStderr())
	started := false
	onTotal = func(total int) {
		bar.SetTotal(int64(total))
		bar.Start()
		started = true
	}
	onImage = func() { bar.Increment() }
	finish = func() {
		if started {
			bar.Finish()
		}
	}
	return onTotal, onImage, finish
}
