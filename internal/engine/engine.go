// Package engine runs the prediction pipeline: feature extraction, scaling,
// classification and label resolution for a single decoded image.
package engine

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/crimson-sun/pilar/internal/engine/classifier"
	"github.com/crimson-sun/pilar/internal/engine/features"
	"github.com/crimson-sun/pilar/internal/engine/labels"
	"github.com/crimson-sun/pilar/internal/engine/scaler"
	"github.com/crimson-sun/pilar/internal/errs"
	"github.com/crimson-sun/pilar/internal/model"
)

// Engine orchestrates the extract → scale → classify → resolve pipeline.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	extractor  features.Extractor
	scaler     scaler.Scaler
	classifier classifier.Classifier
	labels     *labels.Resolver
	threshold  float64
}

// New wires the components and checks that they agree with each other:
// vector lengths line up, the classifier covers every label, and class
// probabilities are available.
func New(ext features.Extractor, sc scaler.Scaler, cls classifier.Classifier, res *labels.Resolver, threshold float64) (*Engine, error) {
	if ext == nil || sc == nil || cls == nil || res == nil {
		return nil, errs.Errorf(errs.ArtifactLoad, "engine", "missing pipeline component")
	}
	if ext.Len() != sc.Len() {
		return nil, errs.Errorf(errs.Shape, "engine", "extractor %s yields %d features, scaler expects %d", ext.Name(), ext.Len(), sc.Len())
	}
	if n := cls.NumFeatures(); n > 0 && n != sc.Len() {
		return nil, errs.Errorf(errs.Shape, "engine", "classifier expects %d features, scaler yields %d", n, sc.Len())
	}
	if cls.NumClasses() != res.Len() {
		return nil, errs.Errorf(errs.Shape, "engine", "classifier has %d classes, label encoder has %d", cls.NumClasses(), res.Len())
	}
	if !cls.HasProbabilities() {
		return nil, errs.Errorf(errs.Capability, "engine", "classifier %s cannot produce class probabilities", cls.Kind())
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("engine: threshold %v outside [0,1]", threshold)
	}
	return &Engine{extractor: ext, scaler: sc, classifier: cls, labels: res, threshold: threshold}, nil
}

// Process classifies one decoded image.
func (e *Engine) Process(img image.Image) (model.Prediction, error) {
	vec, err := e.extractor.Extract(img)
	if err != nil {
		return model.Prediction{}, errs.Wrap("extract", err)
	}
	return e.classify(vec)
}

// ProcessBatch classifies a slice of images, stopping at the first failure.
func (e *Engine) ProcessBatch(imgs []image.Image) ([]model.Prediction, error) {
	preds := make([]model.Prediction, 0, len(imgs))
	for i, img := range imgs {
		p, err := e.Process(img)
		if err != nil {
			return nil, fmt.Errorf("engine: image %d: %w", i, err)
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// SelfCheck pushes an all-zero feature vector through scaling, classification
// and label resolution, and checks that the classifier's own decision
// agrees with its most probable class. A bundle that cannot score a
// trivial input is not fit to serve.
func (e *Engine) SelfCheck() error {
	vec := make([]float32, e.extractor.Len())
	p, err := e.classify(vec)
	if err != nil {
		return err
	}
	scaled, err := e.scaler.Transform(vec)
	if err != nil {
		return errs.Wrap("scale", err)
	}
	idx, err := e.classifier.Predict(scaled)
	if err != nil {
		return errs.Wrap("classify", err)
	}
	if idx != p.ClassIndex {
		return errs.Errorf(errs.ArtifactLoad, "classify", "classifier predicts class %d but its probabilities peak at class %d", idx, p.ClassIndex)
	}
	return nil
}

func (e *Engine) classify(vec []float32) (model.Prediction, error) {
	if err := features.Check(vec, e.extractor.Len()); err != nil {
		return model.Prediction{}, errs.Wrap("extract", err)
	}
	scaled, err := e.scaler.Transform(vec)
	if err != nil {
		return model.Prediction{}, errs.Wrap("scale", err)
	}
	probs, err := e.classifier.PredictProbabilities(scaled)
	if err != nil {
		return model.Prediction{}, errs.Wrap("classify", err)
	}
	if len(probs) != e.labels.Len() {
		return model.Prediction{}, errs.Errorf(errs.Shape, "classify", "classifier returned %d probabilities for %d classes", len(probs), e.labels.Len())
	}
	idx := classifier.Argmax(probs)
	lbl, err := e.labels.Resolve(idx)
	if err != nil {
		return model.Prediction{}, errs.Wrap("resolve", err)
	}
	if !e.labels.Mapped(lbl.Class) {
		slog.Warn("class has no category mapping, using inorganic", "class", lbl.Class)
	}
	return model.Prediction{
		WasteClass:    lbl.Class,
		WasteType:     lbl.Display,
		Category:      lbl.Category,
		Confidence:    classifier.Confidence(probs),
		ClassIndex:    idx,
		Probabilities: probs,
	}, nil
}

// Threshold is the confidence below which a prediction is flagged as
// uncertain in diagnostics. It never changes the predicted class.
func (e *Engine) Threshold() float64 { return e.threshold }

// Labels exposes the resolver for callers that render per-class output.
func (e *Engine) Labels() *labels.Resolver { return e.labels }

// Components describes the wired pipeline for status and diagnostics.
func (e *Engine) Components() Components {
	return Components{
		Extractor:    e.extractor.Name(),
		FeatureCount: e.extractor.Len(),
		Scaler:       e.scaler.Kind(),
		Classifier:   e.classifier.Kind(),
		Classes:      e.labels.Len(),
	}
}

// Components names the pieces of a wired pipeline.
type Components struct {
	Extractor    string `json:"extractor"`
	FeatureCount int    `json:"feature_count"`
	Scaler       string `json:"scaler"`
	Classifier   string `json:"classifier"`
	Classes      int    `json:"classes"`
}

// Close releases classifier resources.
func (e *Engine) Close() error {
	return e.classifier.Close()
}
