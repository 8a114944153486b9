package dataset

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	_ "github.com/spakin/netpbm"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"traffic-forge/internal/logger"
)

// Decoded images may not exceed these bounds. A corrupt header otherwise
// makes the decoders attempt a huge allocation.
const (
	MaxImageSide   = 1 << 14
	MaxImagePixels = 1 << 26
)

// LoadOptions configures Load.
type LoadOptions struct {
	Width         int
	Height        int
	NumCategories int
	// Workers bounds the number of files decoded concurrently.
	Workers int
	// OnTotal, if set, receives the number of files about to be decoded.
	OnTotal func(total int)
	// OnImage, if set, is called once per decoded file, possibly from
	// several goroutines.
	OnImage func()
}

// Load reads every category directory under root and returns the decoded
// images resized to Width x Height with their category labels. Images are
// ordered by category, then by file name; any unreadable image aborts the
// load.
func Load(ctx context.Context, fs afero.Fs, root string, opts LoadOptions) (Dataset, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return Dataset{}, errors.Errorf("load: image size must be positive (got %dx%d)", opts.Width, opts.Height)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	log := logger.WithNamespace("dataset")

	categories, err := DiscoverCategories(fs, root, opts.NumCategories)
	if err != nil {
		return Dataset{}, err
	}
	total := CountFiles(categories)
	if opts.OnTotal != nil {
		opts.OnTotal(total)
	}

	ds := Dataset{
		Images: make([]Image, total),
		Labels: make([]int, total),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	slot := 0
	for _, cat := range categories {
		log.WithField("category", cat.ID).Debugf("%d images", len(cat.Files))
		for _, path := range cat.Files {
			i, label := slot, cat.ID
			slot++
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				img, err := ReadImage(fs, path, opts.Width, opts.Height)
				if err != nil {
					return err
				}
				ds.Images[i] = img
				ds.Labels[i] = label
				if opts.OnImage != nil {
					opts.OnImage()
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	log.Infof("loaded %s images across %d categories", humanize.Comma(int64(total)), len(categories))
	return ds, nil
}

// ReadImage decodes the file at path and resizes it to width x height.
// Intensities are left in their native [0,255] range.
func ReadImage(fs afero.Fs, path string, width, height int) (Image, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Image{}, errors.Wrapf(err, "open image %s", path)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Image{}, errors.Wrapf(err, "decode image %s", path)
	}
	if err := checkImageSize(cfg.Width, cfg.Height); err != nil {
		return Image{}, errors.Wrapf(err, "decode image %s", path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Image{}, errors.Wrapf(err, "rewind image %s", path)
	}

	src, _, err := image.Decode(f)
	if err != nil {
		return Image{}, errors.Wrapf(err, "decode image %s", path)
	}
	if src.Bounds().Empty() {
		return Image{}, errors.Errorf("decode image %s: empty image", path)
	}
	return Resize(src, width, height), nil
}

func checkImageSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid size %dx%d", width, height)
	}
	if width > MaxImageSide || height > MaxImageSide || width*height > MaxImagePixels {
		return errors.Errorf("size %dx%d exceeds %dx%d", width, height, MaxImageSide, MaxImageSide)
	}
	return nil
}

// Resize scales src to width x height with bilinear interpolation and
// returns its RGB channels.
func Resize(src image.Image, width, height int) Image {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := NewImage(height, width)
	for p := 0; p < width*height; p++ {
		out.Pix[p*Channels] = float64(dst.Pix[p*4])
		out.Pix[p*Channels+1] = float64(dst.Pix[p*4+1])
		out.Pix[p*Channels+2] = float64(dst.Pix[p*4+2])
	}
	return out
}
