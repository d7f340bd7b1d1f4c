// Package imgproc holds the raster operations behind feature extraction.
// Resizing, color conversion, edges and histograms run on OpenCV through
// gocv; GLCM and HOG have no OpenCV counterpart and are computed on Go
// rasters.
package imgproc

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// RGB is a packed 8-bit raster in R,G,B order.
type RGB struct {
	W, H int
	Pix  []uint8
}

// Gray is a single-channel 8-bit raster.
type Gray struct {
	W, H int
	Pix  []uint8
}

// At returns the intensity at (x, y).
func (g *Gray) At(x, y int) uint8 { return g.Pix[y*g.W+x] }

// Floats returns the gray intensities as float64 in row-major order.
func (g *Gray) Floats() []float64 {
	out := make([]float64, len(g.Pix))
	for i, v := range g.Pix {
		out[i] = float64(v)
	}
	return out
}

func checkInput(img image.Image, size int) error {
	if img == nil {
		return fmt.Errorf("imgproc: nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("imgproc: empty image %dx%d", b.Dx(), b.Dy())
	}
	if size <= 0 {
		return fmt.Errorf("imgproc: invalid target size %d", size)
	}
	return nil
}

// ResizeLanczos scales img to a size x size square with a Lanczos3 kernel
// that widens when shrinking, the way PIL's LANCZOS filter does.
func ResizeLanczos(img image.Image, size int) (*RGB, error) {
	if err := checkInput(img, size); err != nil {
		return nil, err
	}
	scaled := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	sb := scaled.Bounds()
	if sb.Dx() != size || sb.Dy() != size {
		return nil, fmt.Errorf("imgproc: resize produced %dx%d, want %dx%d", sb.Dx(), sb.Dy(), size, size)
	}
	return FromImage(scaled), nil
}

// FromImage unpacks any image.Image into an RGB raster without scaling.
// Alpha is dropped, not composited.
func FromImage(img image.Image) *RGB {
	b := img.Bounds()
	out := &RGB{W: b.Dx(), H: b.Dy(), Pix: make([]uint8, 3*b.Dx()*b.Dy())}
	i := 0
	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = row[4*x], row[4*x+1], row[4*x+2]
				i += 3
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.R, c.G, c.B
				i += 3
			}
		}
	}
	return out
}

// GrayTruncated converts with float32 0.299/0.587/0.114 weights and
// truncates toward zero, matching a numpy float32 -> uint8 cast.
func (m *RGB) GrayTruncated() *Gray {
	out := &Gray{W: m.W, H: m.H, Pix: make([]uint8, m.W*m.H)}
	for i := range out.Pix {
		r := float32(float32(0.299) * float32(m.Pix[3*i]))
		g := float32(float32(0.587) * float32(m.Pix[3*i+1]))
		b := float32(float32(0.114) * float32(m.Pix[3*i+2]))
		v := float32(r + g)
		v = float32(v + b)
		if v > 255 {
			v = 255
		}
		out.Pix[i] = uint8(v)
	}
	return out
}
