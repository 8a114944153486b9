package dataset

import (
	"context"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadShapesAndLabels(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 3, 4)

	var total int
	var decoded int64
	ds, err := Load(context.Background(), fs, "/data", LoadOptions{
		Width:         5,
		Height:        4,
		NumCategories: 3,
		Workers:       3,
		OnTotal:       func(n int) { total = n },
		OnImage:       func() { atomic.AddInt64(&decoded, 1) },
	})
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	assert.Equal(t, 12, ds.Len())
	assert.Equal(t, 12, total)
	assert.Equal(t, int64(12), decoded)
	assert.Equal(t, []int{0, 1, 2}, ds.LabelSet())
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2}, ds.Labels)
	for _, img := range ds.Images {
		assert.Equal(t, 4, img.Height)
		assert.Equal(t, 5, img.Width)
		assert.Len(t, img.Pix, 4*5*Channels)
	}
}

func TestLoadKeepsNativeRange(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWrite(t, fs, "/data/0/a.png", solidPNG(t, color.NRGBA{R: 255, G: 128, B: 0, A: 255}, 13, 9))

	ds, err := Load(context.Background(), fs, "/data", LoadOptions{Width: 6, Height: 6, NumCategories: 1})
	require.NoError(t, err)
	img := ds.Images[0]
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			assert.InDelta(t, 255, img.At(y, x, 0), 1)
			assert.InDelta(t, 128, img.At(y, x, 1), 1)
			assert.InDelta(t, 0, img.At(y, x, 2), 1)
		}
	}
}

func TestLoadIsDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 3, 5)
	opts := LoadOptions{Width: 4, Height: 4, NumCategories: 3, Workers: 4}

	a, err := Load(context.Background(), fs, "/data", opts)
	require.NoError(t, err)
	b, err := Load(context.Background(), fs, "/data", opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoadFailsOnCorruptImage(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 2, 2)
	mustWrite(t, fs, "/data/1/broken.png", []byte("not a png"))

	_, err := Load(context.Background(), fs, "/data", LoadOptions{Width: 4, Height: 4, NumCategories: 2, Workers: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.png")
}

func TestLoadFailsOnMissingCategory(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 2, 2)

	_, err := Load(context.Background(), fs, "/data", LoadOptions{Width: 4, Height: 4, NumCategories: 3})
	assert.True(t, errors.Is(err, ErrMissingCategory))
}

func TestLoadRejectsBadSize(t *testing.T) {
	_, err := Load(context.Background(), afero.NewMemMapFs(), "/data", LoadOptions{Width: 0, Height: 4, NumCategories: 1})
	assert.Error(t, err)
}

func TestLoadHonoursCancellation(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 2, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, fs, "/data", LoadOptions{Width: 4, Height: 4, NumCategories: 2})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadPPM(t *testing.T) {
	fs := afero.NewMemMapFs()
	ppm := append([]byte("P6\n# gtsrb\n2 1\n255\n"), 10, 20, 30, 10, 20, 30)
	mustWrite(t, fs, "/data/0/00000_00000.ppm", ppm)

	ds, err := Load(context.Background(), fs, "/data", LoadOptions{Width: 2, Height: 2, NumCategories: 1})
	require.NoError(t, err)
	img := ds.Images[0]
	assert.InDelta(t, 10, img.At(1, 1, 0), 1)
	assert.InDelta(t, 20, img.At(1, 1, 1), 1)
	assert.InDelta(t, 30, img.At(1, 1, 2), 1)
}

func TestLoadGraymapExpandsToRGB(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWrite(t, fs, "/data/0/a.pgm", append([]byte("P5 1 1 255\n"), 200))

	img, err := ReadImage(fs, "/data/0/a.pgm", 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 200, img.At(0, 0, 0), 1)
	assert.InDelta(t, 200, img.At(0, 0, 1), 1)
	assert.InDelta(t, 200, img.At(0, 0, 2), 1)
}

func TestReadImageRejectsOversizedHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	for name, raw := range map[string][]byte{
		"overflowing": append([]byte("P6 3037000500 3037000500 255\n"), 1, 2, 3),
		"too wide":    append([]byte("P6 20000 1 255\n"), 1, 2, 3),
		"too many":    append([]byte("P6 16000 16000 255\n"), 1, 2, 3),
	} {
		mustWrite(t, fs, "/img/"+name+".ppm", raw)
		assert.NotPanics(t, func() {
			_, err := ReadImage(fs, "/img/"+name+".ppm", 4, 4)
			assert.Error(t, err, name)
		}, name)
	}
}

func TestLoadOversizedHeaderFailsLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 1, 2)
	mustWrite(t, fs, "/data/0/zz.ppm", []byte("P6 3037000500 3037000500 255\n"))

	_, err := Load(context.Background(), fs, "/data", LoadOptions{Width: 4, Height: 4, NumCategories: 1, Workers: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zz.ppm")
}

func TestReadImageNegativeSampleStaysDark(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWrite(t, fs, "/img/neg.ppm", []byte("P3 1 1 255\n-5 0 0\n"))

	img, err := ReadImage(fs, "/img/neg.ppm", 1, 1)
	if err == nil {
		assert.Less(t, img.At(0, 0, 0), 128.0, "negative sample decoded as a bright pixel")
	}
}

func TestReadImageGarbage(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWrite(t, fs, "/img/bad.ppm", []byte("P6 x 1 255\n"))
	mustWrite(t, fs, "/img/trunc.png", []byte("\x89PNG\r\n\x1a\n"))

	_, err := ReadImage(fs, "/img/bad.ppm", 2, 2)
	assert.Error(t, err)
	_, err = ReadImage(fs, "/img/trunc.png", 2, 2)
	assert.Error(t, err)
}
