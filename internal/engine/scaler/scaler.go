// Package scaler applies the per-feature transform fitted at training time.
package scaler

import (
	"encoding/json"
	"fmt"

	"github.com/crimson-sun/pilar/internal/errs"
)

// Scaler maps a feature vector to the space the classifier was trained in.
type Scaler interface {
	Kind() string
	Len() int
	FeatureNames() []string
	Transform(vec []float32) ([]float32, error)
}

// Spec is the serialised form stored in an artifact bundle.
type Spec struct {
	Type         string    `json:"type"`
	Mean         []float64 `json:"mean,omitempty"`
	Min          []float64 `json:"min,omitempty"`
	Scale        []float64 `json:"scale"`
	FeatureNames []string  `json:"feature_names,omitempty"`
}

// Kinds.
const (
	Standard = "standard"
	MinMax   = "minmax"
)

// affine computes (x - shift) / div for standard scaling and x*mul + add for
// min-max scaling, matching sklearn's StandardScaler and MinMaxScaler.
type affine struct {
	kind  string
	shift []float64
	scale []float64
	names []string
}

// New builds a scaler from its serialised form.
func New(spec Spec) (Scaler, error) {
	var shift []float64
	switch spec.Type {
	case Standard:
		shift = spec.Mean
	case MinMax:
		shift = spec.Min
	default:
		return nil, fmt.Errorf("scaler: unknown type %q", spec.Type)
	}
	if len(spec.Scale) == 0 {
		return nil, fmt.Errorf("scaler: %s scaler has no parameters", spec.Type)
	}
	if len(shift) != len(spec.Scale) {
		return nil, fmt.Errorf("scaler: %s parameter lengths differ (%d vs %d)", spec.Type, len(shift), len(spec.Scale))
	}
	if spec.FeatureNames != nil && len(spec.FeatureNames) != len(spec.Scale) {
		return nil, fmt.Errorf("scaler: %d feature names for %d features", len(spec.FeatureNames), len(spec.Scale))
	}

	scale := make([]float64, len(spec.Scale))
	copy(scale, spec.Scale)
	if spec.Type == Standard {
		// sklearn stores 1 for constant features; older dumps carry the raw 0.
		for i, s := range scale {
			if s == 0 {
				scale[i] = 1
			}
		}
	}
	return &affine{
		kind:  spec.Type,
		shift: append([]float64(nil), shift...),
		scale: scale,
		names: spec.FeatureNames,
	}, nil
}

// Parse decodes a JSON scaler spec and builds the scaler.
func Parse(data []byte) (Scaler, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("scaler: decoding spec: %w", err)
	}
	return New(spec)
}

func (a *affine) Kind() string           { return a.kind }
func (a *affine) Len() int               { return len(a.scale) }
func (a *affine) FeatureNames() []string { return a.names }

func (a *affine) Transform(vec []float32) ([]float32, error) {
	if len(vec) != len(a.scale) {
		return nil, errs.ShapeMismatch("scaler", len(a.scale), len(vec))
	}
	out := make([]float32, len(vec))
	for i, x := range vec {
		v := float64(x)
		if a.kind == Standard {
			v = (v - a.shift[i]) / a.scale[i]
		} else {
			v = v*a.scale[i] + a.shift[i]
		}
		out[i] = float32(v)
	}
	return out, nil
}
