package features

import (
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/crimson-sun/pilar/internal/engine/imgproc"
	"github.com/crimson-sun/pilar/internal/errs"
)

const (
	handcraftedSize = 128
	handcraftedLen  = 38
	colorBins       = 8
	cannyLow        = 100
	cannyHigh       = 200
	brightLevel     = 240
)

var handcraftedNames = func() []string {
	var names []string
	for _, ch := range []string{"h", "s", "v"} {
		for i := 0; i < colorBins; i++ {
			names = append(names, "hist_"+ch+"_"+string(rune('0'+i)))
		}
	}
	return append(names,
		"glcm_contrast", "glcm_dissimilarity", "glcm_homogeneity", "glcm_energy", "glcm_correlation",
		"hog_mean", "hog_std",
		"edge_mean", "edge_std", "edge_ratio",
		"laplacian_var", "laplacian_mean_abs",
		"bright_ratio", "gray_std",
	)
}()

// handcraftedExtractor concatenates color, texture, shape and edge
// statistics computed on a 128x128 bilinear resize.
type handcraftedExtractor struct{}

func newHandcrafted(Spec, Deps) (Extractor, error) { return handcraftedExtractor{}, nil }

func (handcraftedExtractor) Name() string           { return Handcrafted }
func (handcraftedExtractor) Len() int               { return handcraftedLen }
func (handcraftedExtractor) FeatureNames() []string { return handcraftedNames }

func (handcraftedExtractor) Extract(img image.Image) ([]float32, error) {
	rgb, err := imgproc.ResizeLinear(img, handcraftedSize)
	if err != nil {
		return nil, resizeErr(err)
	}
	defer rgb.Close()
	hsv := imgproc.HSVMat(rgb)
	defer hsv.Close()
	grayMat := imgproc.GrayMat(rgb)
	defer grayMat.Close()

	gray, err := imgproc.ToGray(grayMat)
	if err != nil {
		return nil, errs.E(errs.Processing, "features", err)
	}

	out := make([]float32, 0, handcraftedLen)
	hists, err := colorHistograms(hsv)
	if err != nil {
		return nil, errs.E(errs.Processing, "features", err)
	}
	out = toFloat32(out, hists...)

	tex := imgproc.GLCM(gray)
	out = toFloat32(out, tex.Contrast, tex.Dissimilarity, tex.Homogeneity, tex.Energy, tex.Correlation)

	hogMean, hogStd := stat.PopMeanStdDev(imgproc.HOG(gray, imgproc.DefaultHOG), nil)
	out = toFloat32(out, hogMean, hogStd)

	edges, err := imgproc.Canny(grayMat, cannyLow, cannyHigh)
	if err != nil {
		return nil, errs.E(errs.Processing, "features", err)
	}
	edgeMean, edgeStd := stat.PopMeanStdDev(edges.Floats(), nil)
	out = toFloat32(out, edgeMean, edgeStd, fraction(edges.Pix, 0))

	lap, err := imgproc.Laplacian(grayMat)
	if err != nil {
		return nil, errs.E(errs.Processing, "features", err)
	}
	_, lapVar := stat.PopMeanVariance(lap, nil)
	var absSum float64
	for _, v := range lap {
		absSum += math.Abs(v)
	}
	out = toFloat32(out, lapVar, absSum/float64(len(lap)))

	_, grayStd := stat.PopMeanStdDev(gray.Floats(), nil)
	out = toFloat32(out, fraction(gray.Pix, brightLevel), grayStd)

	if err := Check(out, handcraftedLen); err != nil {
		return nil, err
	}
	return out, nil
}

// colorHistograms returns the H, S and V histograms, each L2-normalised on
// its own, concatenated.
func colorHistograms(hsv gocv.Mat) ([]float64, error) {
	ranges := [3]imgproc.Range{imgproc.HueRange, imgproc.ByteRange, imgproc.ByteRange}
	out := make([]float64, 0, 3*colorBins)
	for ch, r := range ranges {
		h, err := imgproc.Histogram(hsv, []int{ch}, []int{colorBins}, []imgproc.Range{r})
		if err != nil {
			return nil, err
		}
		out = append(out, h...)
	}
	return out, nil
}

// fraction returns the share of pixels strictly above level.
func fraction(pix []uint8, level uint8) float64 {
	if len(pix) == 0 {
		return 0
	}
	n := 0
	for _, p := range pix {
		if p > level {
			n++
		}
	}
	return float64(n) / float64(len(pix))
}
