package features

import (
	"fmt"
	"image"

	"github.com/crimson-sun/pilar/internal/engine/imgproc"
)

const (
	defaultDownsampleSize   = 16
	defaultDownsampleLength = 31
)

// downsampleExtractor samples raw grayscale pixels: Lanczos resize to a
// small square, float grayscale truncated to 8 bits, scale to [0,1], keep
// every stride-th pixel and zero-pad to Length.
type downsampleExtractor struct {
	size, length, stride int
	names                []string
}

func newDownsample(spec Spec, _ Deps) (Extractor, error) {
	size, length := spec.Size, spec.Length
	if size == 0 {
		size = defaultDownsampleSize
	}
	if length == 0 {
		length = defaultDownsampleLength
	}
	if size < 1 || length < 1 {
		return nil, fmt.Errorf("features: downsample size %d and length %d must be positive", size, length)
	}
	return &downsampleExtractor{
		size:   size,
		length: length,
		stride: max(1, size*size/length),
		names:  indexedNames("px", length),
	}, nil
}

func (d *downsampleExtractor) Name() string           { return Downsample }
func (d *downsampleExtractor) Len() int               { return d.length }
func (d *downsampleExtractor) FeatureNames() []string { return d.names }

func (d *downsampleExtractor) Extract(img image.Image) ([]float32, error) {
	m, err := imgproc.ResizeLanczos(img, d.size)
	if err != nil {
		return nil, resizeErr(err)
	}
	gray := m.GrayTruncated()

	out := make([]float32, d.length)
	for i, p := 0, 0; i < d.length && p < len(gray.Pix); i, p = i+1, p+d.stride {
		out[i] = float32(gray.Pix[p]) / 255
	}
	if err := Check(out, d.length); err != nil {
		return nil, err
	}
	return out, nil
}
