package features

import (
	"errors"
	"image"

	"github.com/crimson-sun/pilar/internal/engine/imgproc"
	"github.com/crimson-sun/pilar/internal/engine/quantizer"
	"github.com/crimson-sun/pilar/internal/errs"
)

const (
	bovwSize  = 128
	jointBins = 8
)

// bagOfWordsExtractor emits a visual-word histogram over local keypoint
// descriptors followed by a joint 8x8x8 HSV color histogram.
type bagOfWordsExtractor struct {
	vocab  *quantizer.Vocabulary
	source DescriptorSource
	names  []string
}

func newBagOfWords(_ Spec, deps Deps) (Extractor, error) {
	if deps.Vocabulary == nil {
		return nil, errors.New("features: bovw requires a vocabulary")
	}
	if deps.Descriptors == nil {
		return nil, errs.Errorf(errs.Capability, "features", "bovw requires a keypoint descriptor source")
	}
	names := append(indexedNames("word", deps.Vocabulary.Size()), indexedNames("hsv", jointBins*jointBins*jointBins)...)
	return &bagOfWordsExtractor{vocab: deps.Vocabulary, source: deps.Descriptors, names: names}, nil
}

func (b *bagOfWordsExtractor) Name() string           { return BagOfWords }
func (b *bagOfWordsExtractor) Len() int               { return len(b.names) }
func (b *bagOfWordsExtractor) FeatureNames() []string { return b.names }

func (b *bagOfWordsExtractor) Extract(img image.Image) ([]float32, error) {
	rgb, err := imgproc.ResizeLinear(img, bovwSize)
	if err != nil {
		return nil, resizeErr(err)
	}
	defer rgb.Close()
	grayMat := imgproc.GrayMat(rgb)
	defer grayMat.Close()
	gray, err := imgproc.ToGray(grayMat)
	if err != nil {
		return nil, errs.E(errs.Processing, "features", err)
	}

	descs, err := b.source.Descriptors(gray)
	if err != nil {
		return nil, errs.E(errs.Processing, "keypoints", err)
	}
	words := make([]float64, b.vocab.Size())
	if len(descs) > 0 {
		labels, err := quantizer.Assign(b.vocab, descs)
		if err != nil {
			return nil, errs.E(errs.Shape, "quantizer", err)
		}
		if words, err = b.vocab.Histogram(labels); err != nil {
			return nil, errs.E(errs.Processing, "quantizer", err)
		}
	}

	hsv := imgproc.HSVMat(rgb)
	defer hsv.Close()
	color, err := imgproc.Histogram(hsv, []int{0, 1, 2}, []int{jointBins, jointBins, jointBins},
		[]imgproc.Range{imgproc.HueRange, imgproc.ByteRange, imgproc.ByteRange})
	if err != nil {
		return nil, errs.E(errs.Processing, "features", err)
	}

	out := make([]float32, 0, b.Len())
	out = toFloat32(out, words...)
	out = toFloat32(out, color...)
	if err := Check(out, b.Len()); err != nil {
		return nil, err
	}
	return out, nil
}
