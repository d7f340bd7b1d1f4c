// Package classifier scores scaled feature vectors with a trained model.
// Two backends exist: a gradient-boosted tree ensemble evaluated in Go from
// an XGBoost JSON dump, and an arbitrary ONNX graph run through ONNX Runtime.
package classifier

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/crimson-sun/pilar/internal/errs"
)

// Classifier is a trained model over a fixed number of classes.
type Classifier interface {
	// Kind names the backend, e.g. "gbtree/multi:softprob".
	Kind() string
	NumClasses() int
	// NumFeatures is the input length the model declares, or 0 when the
	// model does not record it.
	NumFeatures() int
	// HasProbabilities reports whether PredictProbabilities is supported.
	HasProbabilities() bool
	Predict(vec []float32) (int, error)
	PredictProbabilities(vec []float32) ([]float64, error)
	Close() error
}

// Backend types.
const (
	TypeGBTree = "gbtree"
	TypeONNX   = "onnx"
)

// Objectives understood by the tree backend.
const (
	BinaryLogistic = "binary:logistic"
	MultiSoftprob  = "multi:softprob"
	MultiSoftmax   = "multi:softmax"
)

// Spec is the serialised classifier stored in an artifact bundle.
type Spec struct {
	Type         string            `json:"type"`
	Objective    string            `json:"objective,omitempty"`
	NumClass     int               `json:"num_class,omitempty"`
	NumFeature   int               `json:"num_feature,omitempty"`
	BaseScore    *float64          `json:"base_score,omitempty"`
	FeatureNames []string          `json:"feature_names,omitempty"`
	Trees        []json.RawMessage `json:"trees,omitempty"`
	Model        []byte            `json:"model,omitempty"`
}

// Options carries process-level settings for backends that need them.
type Options struct {
	// ORTLibrary is the path of the ONNX Runtime shared library.
	ORTLibrary string
}

// New builds a classifier from its serialised form.
func New(spec Spec, opts Options) (Classifier, error) {
	switch spec.Type {
	case TypeGBTree:
		return newEnsemble(spec)
	case TypeONNX:
		return newONNX(spec, opts)
	default:
		return nil, fmt.Errorf("classifier: unknown type %q", spec.Type)
	}
}

// Confidence is the largest class probability as a percentage.
func Confidence(probs []float64) float64 {
	if len(probs) == 0 {
		return 0
	}
	return floats.Max(probs) * 100
}

// Argmax returns the index of the largest value; ties go to the lowest index.
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

// softmax converts margins to probabilities in place.
func softmax(m []float64) []float64 {
	lse := floats.LogSumExp(m)
	for i, v := range m {
		m[i] = math.Exp(v - lse)
	}
	return m
}

func noProbabilities(kind string) error {
	return errs.Errorf(errs.Capability, "classifier", "%s does not produce class probabilities", kind)
}
