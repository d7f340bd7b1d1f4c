package imgproc

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Range is a half-open value range [Lo, Hi) for histogram binning.
type Range struct{ Lo, Hi float64 }

var (
	HueRange  = Range{0, 180}
	ByteRange = Range{0, 256}
)

// Mat copies the raster into an 8-bit, 3-channel Mat in R,G,B order.
// The caller closes it.
func (m *RGB) Mat() (gocv.Mat, error) {
	src, err := gocv.NewMatFromBytes(m.H, m.W, gocv.MatTypeCV8UC3, m.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("imgproc: wrapping raster: %w", err)
	}
	defer src.Close()
	return src.Clone(), nil
}

// Mat copies the raster into an 8-bit, single-channel Mat. The caller
// closes it.
func (g *Gray) Mat() (gocv.Mat, error) {
	src, err := gocv.NewMatFromBytes(g.H, g.W, gocv.MatTypeCV8UC1, g.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("imgproc: wrapping raster: %w", err)
	}
	defer src.Close()
	return src.Clone(), nil
}

// ResizeLinear loads img into an RGB Mat and scales it to size x size with
// INTER_LINEAR. The caller closes the result.
func ResizeLinear(img image.Image, size int) (gocv.Mat, error) {
	if err := checkInput(img, size); err != nil {
		return gocv.Mat{}, err
	}
	src, err := FromImage(img).Mat()
	if err != nil {
		return gocv.Mat{}, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	if dst.Rows() != size || dst.Cols() != size {
		dst.Close()
		return gocv.Mat{}, fmt.Errorf("imgproc: resize produced %dx%d, want %dx%d", dst.Cols(), dst.Rows(), size, size)
	}
	return dst, nil
}

// GrayMat converts an RGB Mat with COLOR_RGB2GRAY. The caller closes it.
func GrayMat(rgb gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.CvtColor(rgb, &dst, gocv.ColorRGBToGray)
	return dst
}

// HSVMat converts an RGB Mat with COLOR_RGB2HSV (H in [0,180)). The
// caller closes it.
func HSVMat(rgb gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.CvtColor(rgb, &dst, gocv.ColorRGBToHSV)
	return dst
}

// ToGray copies a single-channel 8-bit Mat into a Gray raster.
func ToGray(m gocv.Mat) (*Gray, error) {
	if m.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("imgproc: want an 8-bit single-channel Mat, got type %v", m.Type())
	}
	return &Gray{W: m.Cols(), H: m.Rows(), Pix: m.ToBytes()}, nil
}

// Canny returns the 0/255 edge map of an 8-bit gray Mat.
func Canny(gray gocv.Mat, low, high float32) (*Gray, error) {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, low, high)
	return ToGray(edges)
}

// Laplacian applies the aperture-1 Laplacian with float64 output and the
// default reflect-101 border.
func Laplacian(gray gocv.Mat) ([]float64, error) {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	data, err := lap.DataPtrFloat64()
	if err != nil {
		return nil, fmt.Errorf("imgproc: laplacian: %w", err)
	}
	out := make([]float64, len(data))
	copy(out, data)
	return out, nil
}

// Histogram runs calcHist over the given channels of src with uniform
// bins, then L2-normalises the counts the way cv::normalize does by
// default. An all-zero histogram stays zero. Multi-channel results are
// flattened with the first channel varying slowest.
func Histogram(src gocv.Mat, channels, bins []int, ranges []Range) ([]float64, error) {
	if len(channels) != len(bins) || len(channels) != len(ranges) {
		return nil, fmt.Errorf("imgproc: histogram needs one bin count and range per channel")
	}
	bounds := make([]float64, 0, 2*len(ranges))
	want := 1
	for i, r := range ranges {
		bounds = append(bounds, r.Lo, r.Hi)
		want *= bins[i]
	}

	mask := gocv.NewMat()
	defer mask.Close()
	hist := gocv.NewMat()
	defer hist.Close()
	gocv.CalcHist([]gocv.Mat{src}, channels, mask, &hist, bins, bounds, false)

	norm := gocv.NewMat()
	defer norm.Close()
	gocv.Normalize(hist, &norm, 1, 0, gocv.NormL2)

	data, err := norm.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("imgproc: histogram: %w", err)
	}
	if len(data) != want {
		return nil, fmt.Errorf("imgproc: histogram has %d bins, want %d", len(data), want)
	}
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out, nil
}
