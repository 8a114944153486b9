package trainer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"traffic-forge/internal/dataset"
	"traffic-forge/internal/model"
)

// fakeModel records the batches it sees and returns a fixed loss.
type fakeModel struct {
	loss     float64
	batches  int
	samples  int
	seen     map[int]int
	failAt   int
	evaluate int
}

func (f *fakeModel) TrainStep(b model.Batch) (model.StepResult, error) {
	f.batches++
	if f.failAt > 0 && f.batches == f.failAt {
		return model.StepResult{}, model.ErrInvalidBatch
	}
	f.samples += len(b.Labels)
	if f.seen == nil {
		f.seen = map[int]int{}
	}
	for _, in := range b.Inputs {
		f.seen[int(in[0])]++
	}
	return model.StepResult{Loss: f.loss, Correct: len(b.Labels) / 2, Count: len(b.Labels)}, nil
}

func (f *fakeModel) Evaluate(b model.Batch) (model.StepResult, error) {
	f.evaluate += len(b.Labels)
	correct := 0
	for _, l := range b.Labels {
		if l == 0 {
			correct++
		}
	}
	return model.StepResult{Loss: float64(len(b.Labels)), Correct: correct, Count: len(b.Labels)}, nil
}

// indexedDataset holds n one-pixel images whose first value is their index.
func indexedDataset(n int) dataset.Dataset {
	var d dataset.Dataset
	for i := 0; i < n; i++ {
		img := dataset.NewImage(1, 1)
		img.Pix[0] = float64(i)
		d.Append(img, i%2)
	}
	return d
}

var categoryColors = []color.NRGBA{
	{R: 220, G: 40, B: 40, A: 255},
	{R: 40, G: 200, B: 60, A: 255},
	{R: 30, G: 60, B: 210, A: 255},
}

// writeColorTree writes perCategory solid images per category, each a
// slightly different shade of the category color.
func writeColorTree(t *testing.T, fs afero.Fs, root string, perCategory int) {
	t.Helper()
	for cat, base := range categoryColors {
		dir := filepath.Join(root, strconv.Itoa(cat))
		require.NoError(t, fs.MkdirAll(dir, 0o755))
		for i := 0; i < perCategory; i++ {
			c := base
			c.R += uint8(i)
			c.G += uint8(i)
			img := image.NewNRGBA(image.Rect(0, 0, 16+i, 14))
			for y := 0; y < img.Bounds().Dy(); y++ {
				for x := 0; x < img.Bounds().Dx(); x++ {
					img.SetNRGBA(x, y, c)
				}
			}
			buf := &bytes.Buffer{}
			require.NoError(t, png.Encode(buf, img))
			path := filepath.Join(dir, "sign"+strconv.Itoa(i)+".png")
			require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o644))
		}
	}
}

// smallRun is a pipeline over the three color categories sized to train in
// well under a second.
func smallRun(fs afero.Fs) RunConfig {
	return RunConfig{
		Fs:           fs,
		DataDir:      "/signs",
		Workers:      2,
		Normalize:    true,
		TestFraction: 0.4,
		Seed:         42,
		Architecture: model.Architecture{
			Width:         12,
			Height:        12,
			NumCategories: len(categoryColors),
			Filters:       []int{8, 16},
			KernelSize:    3,
			StageDropout:  0.2,
			HiddenUnits:   32,
			HeadDropout:   0.5,
			LayerNorm:     true,
		},
		Train: model.TrainOptions{
			Optimizer:    model.OptimizerAdam,
			LearningRate: 0.01,
			Seed:         42,
		},
		Epochs:    10,
		BatchSize: 6,
	}
}
