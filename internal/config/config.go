package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"traffic-forge/internal/model"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "TRAFFIC"

// DefaultLogEvery is the default batch interval of the debug loss line.
const DefaultLogEvery = 50

// Config captures the runtime knobs for a training run.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	ImgWidth      int `mapstructure:"img_width"`
	ImgHeight     int `mapstructure:"img_height"`
	NumCategories int `mapstructure:"num_categories"`

	Filters      []int   `mapstructure:"filters"`
	KernelSize   int     `mapstructure:"kernel_size"`
	StageDropout float64 `mapstructure:"stage_dropout"`
	HiddenUnits  int     `mapstructure:"hidden_units"`
	HeadDropout  float64 `mapstructure:"head_dropout"`
	LayerNorm    bool    `mapstructure:"layer_norm"`

	Normalize    bool    `mapstructure:"normalize"`
	Optimizer    string  `mapstructure:"optimizer"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	TestFraction float64 `mapstructure:"test_fraction"`
	Seed         int64   `mapstructure:"seed"`

	Workers     int    `mapstructure:"workers"`
	LogLevel    string `mapstructure:"log_level"`
	LogEvery    int    `mapstructure:"log_every"`
	ModelOut    string `mapstructure:"model_out"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// Overrides captures CLI supplied positional values.
type Overrides struct {
	DataDir  string
	ModelOut string
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("model_out", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("img_width", 30)
	v.SetDefault("img_height", 30)
	v.SetDefault("num_categories", 43)
	v.SetDefault("filters", []int{32, 64})
	v.SetDefault("kernel_size", 3)
	v.SetDefault("stage_dropout", 0.2)
	v.SetDefault("hidden_units", 128)
	v.SetDefault("head_dropout", 0.5)
	v.SetDefault("layer_norm", true)
	v.SetDefault("normalize", true)
	v.SetDefault("optimizer", model.OptimizerAdam)
	v.SetDefault("learning_rate", 0.001)
	v.SetDefault("epochs", 10)
	v.SetDefault("batch_size", 32)
	v.SetDefault("test_fraction", 0.4)
	v.SetDefault("seed", 42)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("log_level", "info")
	v.SetDefault("log_every", DefaultLogEvery)
}

// Load builds a Config from defaults, the optional YAML file at path, the
// TRAFFIC_* environment and the flags that were explicitly set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config")
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !knownKeys[key] {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, errors.Wrap(bindErr, "bind flags")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	// Zero or negative values ask for the automatic setting.
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = DefaultLogEvery
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-empty override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.ModelOut != "" {
		c.ModelOut = o.ModelOut
	}
}

// Validate verifies the config is runnable. Every violation is reported and
// the config is left untouched.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs *multierror.Error
	add := func(format string, args ...interface{}) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	if c.ImgWidth <= 0 {
		add("img_width must be > 0 (got %d)", c.ImgWidth)
	}
	if c.ImgHeight <= 0 {
		add("img_height must be > 0 (got %d)", c.ImgHeight)
	}
	if c.NumCategories <= 0 {
		add("num_categories must be > 0 (got %d)", c.NumCategories)
	}
	if c.Epochs <= 0 {
		add("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		add("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		add("test_fraction must be in (0,1) (got %g)", c.TestFraction)
	}
	if c.LearningRate <= 0 {
		add("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	switch c.Optimizer {
	case model.OptimizerAdam, model.OptimizerSGD:
	default:
		add("optimizer must be %q or %q (got %q)", model.OptimizerAdam, model.OptimizerSGD, c.Optimizer)
	}
	if c.ImgWidth > 0 && c.ImgHeight > 0 && c.NumCategories > 0 {
		if err := c.Architecture().Validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Architecture returns the classifier topology described by the config.
func (c *Config) Architecture() model.Architecture {
	return model.Architecture{
		Width:         c.ImgWidth,
		Height:        c.ImgHeight,
		NumCategories: c.NumCategories,
		Filters:       append([]int(nil), c.Filters...),
		KernelSize:    c.KernelSize,
		StageDropout:  c.StageDropout,
		HiddenUnits:   c.HiddenUnits,
		HeadDropout:   c.HeadDropout,
		LayerNorm:     c.LayerNorm,
	}
}

// TrainOptions returns the optimizer settings described by the config.
func (c *Config) TrainOptions() model.TrainOptions {
	return model.TrainOptions{
		Optimizer:    c.Optimizer,
		LearningRate: c.LearningRate,
		Seed:         c.Seed,
	}
}

var knownKeys = map[string]bool{
	"data_dir": true, "img_width": true, "img_height": true, "num_categories": true,
	"filters": true, "kernel_size": true, "stage_dropout": true, "hidden_units": true,
	"head_dropout": true, "layer_norm": true, "normalize": true, "optimizer": true,
	"learning_rate": true, "epochs": true, "batch_size": true, "test_fraction": true,
	"seed": true, "workers": true, "log_level": true, "log_every": true,
	"model_out": true, "metrics_file": true,
}
