// Package features turns a decoded image into the fixed-length vector a
// trained classifier expects. Each variant is a separate Extractor with its
// own canonical feature order; an artifact names the one it was trained on.
package features

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/crimson-sun/pilar/internal/engine/imgproc"
	"github.com/crimson-sun/pilar/internal/engine/quantizer"
	"github.com/crimson-sun/pilar/internal/errs"
)

// Variant ids as they appear in the artifact bundle.
const (
	Downsample  = "downsample"
	Handcrafted = "handcrafted"
	BagOfWords  = "bovw"
)

// Extractor produces a feature vector from a decoded image. Implementations
// are deterministic and safe for concurrent use.
type Extractor interface {
	Name() string
	Len() int
	FeatureNames() []string
	Extract(img image.Image) ([]float32, error)
}

// DescriptorSource finds local keypoints on a grayscale raster and returns
// one binary descriptor per keypoint. No keypoints is not an error.
type DescriptorSource interface {
	Descriptors(g *imgproc.Gray) ([][]byte, error)
}

// Spec selects and parameterises a variant.
type Spec struct {
	Variant string
	Size    int // downsample: square side before sampling
	Length  int // downsample: output length
}

// Deps carries the collaborators some variants need.
type Deps struct {
	Vocabulary  *quantizer.Vocabulary
	Descriptors DescriptorSource
}

// Constructor builds an extractor for a spec.
type Constructor func(Spec, Deps) (Extractor, error)

var registry = map[string]Constructor{}

// Register adds a variant constructor under the given name.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// New builds the extractor for spec.Variant.
func New(spec Spec, deps Deps) (Extractor, error) {
	ctor, ok := registry[spec.Variant]
	if !ok {
		return nil, fmt.Errorf("features: unknown variant %q", spec.Variant)
	}
	return ctor(spec, deps)
}

// Variants returns the registered variant names, sorted.
func Variants() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(Downsample, newDownsample)
	Register(Handcrafted, newHandcrafted)
	Register(BagOfWords, newBagOfWords)
}

// Check verifies a vector has exactly want entries and no NaN or Inf.
func Check(vec []float32, want int) error {
	if len(vec) != want {
		return errs.ShapeMismatch("features", want, len(vec))
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errs.Errorf(errs.Shape, "features", "non-finite value %v at index %d", v, i)
		}
	}
	return nil
}

func toFloat32(dst []float32, src ...float64) []float32 {
	for _, v := range src {
		dst = append(dst, float32(v))
	}
	return dst
}

func indexedNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s_%03d", prefix, i)
	}
	return names
}

func resizeErr(err error) error {
	return errs.E(errs.Processing, "features", err)
}
