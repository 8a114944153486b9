package dataset

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
)

func mustWrite(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
}

func solidPNG(t *testing.T, c color.NRGBA, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

// buildTree writes perCategory solid images of distinct sizes into each
// category directory 0..numCategories-1.
func buildTree(t *testing.T, fs afero.Fs, root string, numCategories, perCategory int) {
	t.Helper()
	for cat := 0; cat < numCategories; cat++ {
		for i := 0; i < perCategory; i++ {
			c := color.NRGBA{R: uint8(40 * cat), G: uint8(10 * i), B: 200, A: 255}
			path := filepath.Join(root, strconv.Itoa(cat), "img"+strconv.Itoa(i)+".png")
			mustWrite(t, fs, path, solidPNG(t, c, 8+i, 6+cat))
		}
	}
}
