package pilar

import "github.com/crimson-sun/pilar/internal/engine/features"

type options struct {
	artifactPath string
	fallbackPath string
	ortLibrary   string
	descriptors  features.DescriptorSource
}

// Option configures a Pilar instance.
type Option func(*options)

// WithArtifactPath sets the model artifact file. Default: models/artifact.json.
func WithArtifactPath(path string) Option {
	return func(o *options) {
		o.artifactPath = path
	}
}

// WithFallbackPath sets a second artifact file tried once when the primary
// cannot be read or decoded.
func WithFallbackPath(path string) Option {
	return func(o *options) {
		o.fallbackPath = path
	}
}

// WithORTLibrary sets the ONNX Runtime shared library, needed only for
// artifacts with an ONNX classifier.
func WithORTLibrary(path string) Option {
	return func(o *options) {
		o.ortLibrary = path
	}
}

// DescriptorSource finds keypoint descriptors for bag-of-visual-words
// artifacts. Implementations receive a grayscale raster.
type DescriptorSource = features.DescriptorSource

// WithDescriptorSource supplies the keypoint detector for
// bag-of-visual-words artifacts. Other variants ignore it.
func WithDescriptorSource(src DescriptorSource) Option {
	return func(o *options) {
		o.descriptors = src
	}
}

func defaultOptions() options {
	return options{
		artifactPath: "models/artifact.json",
		ortLibrary:   "models/libonnxruntime.so",
	}
}
