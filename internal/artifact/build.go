package artifact

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crimson-sun/pilar/internal/engine"
	"github.com/crimson-sun/pilar/internal/engine/classifier"
	"github.com/crimson-sun/pilar/internal/engine/features"
	"github.com/crimson-sun/pilar/internal/engine/labels"
	"github.com/crimson-sun/pilar/internal/engine/quantizer"
	"github.com/crimson-sun/pilar/internal/engine/scaler"
	"github.com/crimson-sun/pilar/internal/errs"
)

// BuildOptions supplies the runtime collaborators a bundle may need.
type BuildOptions struct {
	ORTLibrary  string
	Descriptors features.DescriptorSource
}

// Manifest is the descriptive part of a validated bundle.
type Manifest struct {
	FormatVersion  int               `json:"format_version"`
	Version        string            `json:"version,omitempty"`
	Variant        string            `json:"variant"`
	FeatureLength  int               `json:"feature_length"`
	VocabularySize int               `json:"vocabulary_size,omitempty"`
	Threshold      float64           `json:"threshold"`
	Classes        []string          `json:"classes"`
	CategoryMap    map[string]string `json:"category_map"`
	// Categories is the resolved category of every class, after key
	// normalisation and the inorganic fallback.
	Categories     map[string]string `json:"categories"`
}

type variantParams struct {
	Size   int `json:"size"`
	Length int `json:"length"`
}

type labelEncoder struct {
	Classes []string `json:"classes"`
}

type clusterer struct {
	Centroids [][]float64 `json:"centroids"`
}

// Build checks that b has every required component with the required
// capabilities and wires them into an engine. Any failure is fatal for
// the bundle.
func Build(b *Bundle, opts BuildOptions) (*engine.Engine, Manifest, error) {
	if missing := b.Missing(); len(missing) > 0 {
		return nil, Manifest{}, errs.Errorf(errs.ArtifactLoad, "validate", "bundle missing required keys: %s", strings.Join(missing, ", "))
	}

	m := Manifest{FormatVersion: FormatVersion, Threshold: DefaultThreshold}
	var (
		params   variantParams
		clsSpec  classifier.Spec
		encoder  labelEncoder
		clusters clusterer
	)
	decodeErr := errors.Join(
		b.field(KeyFormatVersion, &m.FormatVersion),
		b.field(KeyVersion, &m.Version),
		b.field(KeyVariant, &m.Variant),
		b.field(KeyVariantParams, &params),
		b.field(KeyFeatureLength, &m.FeatureLength),
		b.field(KeyVocabularySize, &m.VocabularySize),
		b.field(KeyThreshold, &m.Threshold),
		b.field(KeyClassifier, &clsSpec),
		b.field(KeyLabelEncoder, &encoder),
		b.field(KeyCategoryMap, &m.CategoryMap),
		b.field(KeyClusterer, &clusters),
	)
	if decodeErr != nil {
		return nil, Manifest{}, errs.E(errs.ArtifactLoad, "validate", decodeErr)
	}
	if m.FormatVersion < 1 || m.FormatVersion > FormatVersion {
		return nil, Manifest{}, errs.Errorf(errs.ArtifactLoad, "validate", "unsupported format_version %d", m.FormatVersion)
	}
	if m.Threshold < 0 || m.Threshold > 1 {
		return nil, Manifest{}, errs.Errorf(errs.ArtifactLoad, "validate", "threshold %v outside [0,1]", m.Threshold)
	}
	if m.Variant == "" {
		m.Variant = inferVariant(m.FeatureLength, b.Has(KeyClusterer))
		slog.Warn("bundle has no variant field, inferred from feature length",
			"variant", m.Variant, "feature_length", m.FeatureLength)
	}
	if m.Variant == features.Downsample && params.Length == 0 {
		params.Length = m.FeatureLength
	}

	res, err := labels.New(encoder.Classes, m.CategoryMap)
	if err != nil {
		return nil, Manifest{}, errs.E(errs.ArtifactLoad, "validate", err)
	}
	m.Classes = res.Classes()
	m.Categories = make(map[string]string, len(m.Classes))
	for _, class := range m.Classes {
		m.Categories[class] = string(res.Category(class))
	}

	deps := features.Deps{Descriptors: opts.Descriptors}
	if m.Variant == features.BagOfWords {
		if !b.Has(KeyClusterer) {
			return nil, Manifest{}, errs.Errorf(errs.ArtifactLoad, "validate", "variant %s needs a %s", features.BagOfWords, KeyClusterer)
		}
		vocab, err := quantizer.New(clusters.Centroids)
		if err != nil {
			return nil, Manifest{}, errs.E(errs.ArtifactLoad, "validate", err)
		}
		if m.VocabularySize != 0 && m.VocabularySize != vocab.Size() {
			return nil, Manifest{}, errs.Errorf(errs.Shape, "validate", "vocabulary_size %d but clusterer has %d centroids", m.VocabularySize, vocab.Size())
		}
		m.VocabularySize = vocab.Size()
		deps.Vocabulary = vocab
	}

	ext, err := features.New(features.Spec{Variant: m.Variant, Size: params.Size, Length: params.Length}, deps)
	if err != nil {
		if errs.Is(err, errs.Capability) {
			return nil, Manifest{}, errs.Wrap("validate", err)
		}
		return nil, Manifest{}, errs.E(errs.ArtifactLoad, "validate", err)
	}
	if m.FeatureLength == 0 {
		m.FeatureLength = ext.Len()
	}
	if m.FeatureLength != ext.Len() {
		return nil, Manifest{}, errs.Errorf(errs.Shape, "validate", "feature_length %d but %s extractor yields %d", m.FeatureLength, m.Variant, ext.Len())
	}

	sc, err := scaler.Parse(b.entries[KeyScaler])
	if err != nil {
		return nil, Manifest{}, errs.E(errs.ArtifactLoad, "validate", err)
	}
	if err := matchNames(sc.FeatureNames(), ext.FeatureNames()); err != nil {
		return nil, Manifest{}, errs.E(errs.Shape, "validate", err)
	}

	// Trees may split on named features; training names win over ours.
	if clsSpec.FeatureNames == nil {
		clsSpec.FeatureNames = sc.FeatureNames()
	}
	if clsSpec.FeatureNames == nil {
		clsSpec.FeatureNames = ext.FeatureNames()
	}
	cls, err := classifier.New(clsSpec, classifier.Options{ORTLibrary: opts.ORTLibrary})
	if err != nil {
		if errs.Is(err, errs.Capability) {
			return nil, Manifest{}, errs.Wrap("validate", err)
		}
		return nil, Manifest{}, errs.E(errs.ArtifactLoad, "validate", err)
	}

	eng, err := engine.New(ext, sc, cls, res, m.Threshold)
	if err != nil {
		cls.Close()
		return nil, Manifest{}, errs.Wrap("validate", err)
	}
	if err := eng.SelfCheck(); err != nil {
		eng.Close()
		return nil, Manifest{}, errs.Wrap("validate", fmt.Errorf("self-check prediction failed: %w", err))
	}
	return eng, m, nil
}

// matchNames checks the scaler's training feature order against the
// extractor's. A scaler without names is accepted as is.
func matchNames(scalerNames, extNames []string) error {
	if scalerNames == nil {
		return nil
	}
	if len(scalerNames) != len(extNames) {
		return fmt.Errorf("scaler has %d feature names, extractor yields %d", len(scalerNames), len(extNames))
	}
	for i := range scalerNames {
		if scalerNames[i] != extNames[i] {
			return fmt.Errorf("feature %d is %q in the scaler but %q in the extractor", i, scalerNames[i], extNames[i])
		}
	}
	return nil
}

// inferVariant binds legacy bundles without a variant field by feature
// length: 38 is the handcrafted set, a clusterer means bag of words, and
// anything else is raw pixel sampling.
func inferVariant(length int, hasClusterer bool) string {
	switch {
	case hasClusterer:
		return features.BagOfWords
	case length == 38:
		return features.Handcrafted
	default:
		return features.Downsample
	}
}
