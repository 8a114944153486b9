package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-forge/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.ImgWidth)
	assert.Equal(t, 30, cfg.ImgHeight)
	assert.Equal(t, 43, cfg.NumCategories)
	assert.Equal(t, []int{32, 64}, cfg.Filters)
	assert.Equal(t, 0.4, cfg.TestFraction)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, model.OptimizerAdam, cfg.Optimizer)
	assert.True(t, cfg.Normalize)
	assert.True(t, cfg.LayerNorm)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	yaml := "num_categories: 3\nimg_width: 12\nimg_height: 12\nfilters: [8, 16]\nepochs: 4\nseed: 7\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("epochs", 0, "")
	flags.Int("batch-size", 0, "")
	flags.Bool("progress", false, "")
	require.NoError(t, flags.Parse([]string{"--batch-size=6"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.NumCategories)
	assert.Equal(t, []int{8, 16}, cfg.Filters)
	assert.Equal(t, 4, cfg.Epochs, "unset flag must not shadow the file")
	assert.Equal(t, 6, cfg.BatchSize)
	assert.Equal(t, int64(7), cfg.Seed)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("TRAFFIC_EPOCHS", "3")
	t.Setenv("TRAFFIC_DATA_DIR", "/data/gtsrb")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, "/data/gtsrb", cfg.DataDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{DataDir: "a", ModelOut: "m.bin"}
	cfg.ApplyOverrides(Overrides{DataDir: "b"})
	assert.Equal(t, "b", cfg.DataDir)
	assert.Equal(t, "m.bin", cfg.ModelOut)
}

func TestValidateReportsEveryViolation(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.ImgWidth = 0
	cfg.Epochs = -1
	cfg.TestFraction = 1
	cfg.Optimizer = "rmsprop"

	err = cfg.Validate()
	require.Error(t, err)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok, "expected a multierror, got %T", err)
	assert.Len(t, merr.Errors, 4)
}

func TestValidateArchitecture(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.ImgWidth = 4
	cfg.ImgHeight = 4

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestLoadFillsAutomaticKnobs(t *testing.T) {
	t.Setenv("TRAFFIC_WORKERS", "0")
	t.Setenv("TRAFFIC_LOG_EVERY", "-3")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, DefaultLogEvery, cfg.LogEvery)
}

func TestValidateLeavesConfigUntouched(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Workers = 0
	cfg.LogEvery = 0
	before := *cfg
	require.NoError(t, cfg.Validate())
	assert.Equal(t, before, *cfg)

	cfg.Epochs = 0
	before = *cfg
	require.Error(t, cfg.Validate())
	assert.Equal(t, before, *cfg)
}
