package dataset

import (
	"sort"

	"github.com/pkg/errors"
)

// Channels is the number of color channels kept per pixel.
const Channels = 3

var (
	// ErrMissingCategory is returned when a category directory is absent.
	ErrMissingCategory = errors.New("dataset: missing category directory")
	// ErrEmptyCategory is returned when a category yields no image.
	ErrEmptyCategory = errors.New("dataset: category has no images")
	// ErrShapeMismatch is returned when images and labels do not line up.
	ErrShapeMismatch = errors.New("dataset: shape mismatch")
	// ErrInvalidFraction is returned for a test fraction outside (0,1).
	ErrInvalidFraction = errors.New("dataset: test fraction must be in (0,1)")
	// ErrDatasetTooSmall is returned when a split would leave a side empty.
	ErrDatasetTooSmall = errors.New("dataset: too few samples to split")
)

// Image is a height x width x 3 array of pixel intensities stored in row,
// column, channel order.
type Image struct {
	Height int
	Width  int
	Pix    []float64
}

// NewImage allocates a zeroed image.
func NewImage(height, width int) Image {
	return Image{Height: height, Width: width, Pix: make([]float64, height*width*Channels)}
}

// At returns the intensity of channel c at row y, column x.
func (im Image) At(y, x, c int) float64 {
	return im.Pix[(y*im.Width+x)*Channels+c]
}

// Set assigns the intensity of channel c at row y, column x.
func (im Image) Set(y, x, c int, v float64) {
	im.Pix[(y*im.Width+x)*Channels+c] = v
}

// Dataset holds two parallel sequences: Images[i] is labelled Labels[i].
type Dataset struct {
	Images []Image
	Labels []int
}

// Len is the number of labelled images.
func (d Dataset) Len() int {
	return len(d.Images)
}

// Append adds one labelled image.
func (d *Dataset) Append(img Image, label int) {
	d.Images = append(d.Images, img)
	d.Labels = append(d.Labels, label)
}

// Validate checks that the sequences line up and every image shares the
// same dimensions.
func (d Dataset) Validate() error {
	if len(d.Images) != len(d.Labels) {
		return errors.Wrapf(ErrShapeMismatch, "%d images but %d labels", len(d.Images), len(d.Labels))
	}
	for i, img := range d.Images {
		if len(img.Pix) != img.Height*img.Width*Channels {
			return errors.Wrapf(ErrShapeMismatch, "image %d holds %d values for %dx%d", i, len(img.Pix), img.Width, img.Height)
		}
		if img.Height != d.Images[0].Height || img.Width != d.Images[0].Width {
			return errors.Wrapf(ErrShapeMismatch, "image %d is %dx%d, image 0 is %dx%d",
				i, img.Width, img.Height, d.Images[0].Width, d.Images[0].Height)
		}
	}
	return nil
}

// Subset returns the samples at indices, in that order. Pixel buffers are
// shared with d.
func (d Dataset) Subset(indices []int) Dataset {
	out := Dataset{
		Images: make([]Image, len(indices)),
		Labels: make([]int, len(indices)),
	}
	for i, idx := range indices {
		out.Images[i] = d.Images[idx]
		out.Labels[i] = d.Labels[idx]
	}
	return out
}

// Inputs returns the flattened pixel buffers at indices, ready to feed a
// classifier batch.
func (d Dataset) Inputs(indices []int) ([][]float64, []int) {
	inputs := make([][]float64, len(indices))
	labels := make([]int, len(indices))
	for i, idx := range indices {
		inputs[i] = d.Images[idx].Pix
		labels[i] = d.Labels[idx]
	}
	return inputs, labels
}

// LabelSet returns the distinct labels in ascending order.
func (d Dataset) LabelSet() []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range d.Labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}
