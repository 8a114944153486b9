package dataset

// MaxIntensity is the largest native 8-bit pixel intensity.
const MaxIntensity = 255.0

// NormalizeValue maps an intensity in [0,255] to [0,1].
func NormalizeValue(v float64) float64 {
	return v / MaxIntensity
}

// Normalize returns a copy of d with every intensity divided by 255. The
// input dataset is left untouched.
func Normalize(d Dataset) Dataset {
	out := Dataset{
		Images: make([]Image, len(d.Images)),
		Labels: append([]int(nil), d.Labels...),
	}
	for i, img := range d.Images {
		scaled := NewImage(img.Height, img.Width)
		for j, v := range img.Pix {
			scaled.Pix[j] = NormalizeValue(v)
		}
		out.Images[i] = scaled
	}
	return out
}
