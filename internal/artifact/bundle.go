// Package artifact loads, validates and publishes the trained model bundle
// that drives the prediction engine.
package artifact

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/crimson-sun/pilar/internal/errs"
)

// Bundle keys.
const (
	KeyFormatVersion  = "format_version"
	KeyVariant        = "variant"
	KeyVariantParams  = "variant_params"
	KeyFeatureLength  = "feature_length"
	KeyClassifier     = "classifier"
	KeyScaler         = "scaler"
	KeyClusterer      = "clusterer"
	KeyVocabularySize = "vocabulary_size"
	KeyLabelEncoder   = "label_encoder"
	KeyCategoryMap    = "category_map"
	KeyThreshold      = "threshold"
	KeyVersion        = "version"
)

// RequiredKeys must be present in every bundle.
var RequiredKeys = []string{KeyClassifier, KeyScaler, KeyLabelEncoder, KeyCategoryMap}

// FormatVersion is the newest bundle layout this build understands.
const FormatVersion = 1

// DefaultThreshold applies when a bundle carries no threshold.
const DefaultThreshold = 0.6

// Bundle is a deserialised artifact whose sub-objects have not been
// checked yet.
type Bundle struct {
	entries map[string]json.RawMessage
}

// Decode parses a bundle. Gzip-compressed input is detected by its magic
// bytes. The document must be a JSON object.
func Decode(data []byte) (*Bundle, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errs.E(errs.ArtifactLoad, "decode", fmt.Errorf("gzip: %w", err))
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, errs.E(errs.ArtifactLoad, "decode", fmt.Errorf("gzip: %w", err))
		}
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errs.E(errs.ArtifactLoad, "decode", fmt.Errorf("bundle is not a JSON object: %w", err))
	}
	if entries == nil {
		return nil, errs.Errorf(errs.ArtifactLoad, "decode", "bundle is null")
	}
	return &Bundle{entries: entries}, nil
}

// Keys lists the top-level keys, sorted.
func (b *Bundle) Keys() []string {
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is present and not null.
func (b *Bundle) Has(key string) bool {
	raw, ok := b.entries[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Missing returns the required keys the bundle lacks.
func (b *Bundle) Missing() []string {
	var missing []string
	for _, k := range RequiredKeys {
		if !b.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// field unmarshals key into dst. Absent keys leave dst untouched.
func (b *Bundle) field(key string, dst any) error {
	if !b.Has(key) {
		return nil
	}
	if err := json.Unmarshal(b.entries[key], dst); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
