package engine

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/crimson-sun/pilar/internal/model"
)

// Diagnosis is the debugging view of one prediction.
type Diagnosis struct {
	Prediction     model.Prediction         `json:"-"`
	Steps          []string                 `json:"steps"`
	Probabilities  []model.ClassProbability `json:"probabilities"`
	Components     Components               `json:"components"`
	Threshold      float64                  `json:"threshold"`
	BelowThreshold bool                     `json:"below_threshold"`
}

// Diagnose classifies img and reports the intermediate pipeline details.
func (e *Engine) Diagnose(img image.Image) (Diagnosis, error) {
	pred, err := e.Process(img)
	if err != nil {
		return Diagnosis{}, err
	}
	c := e.Components()
	steps := []string{
		fmt.Sprintf("extract: %s, %d features", c.Extractor, c.FeatureCount),
		fmt.Sprintf("scale: %s", c.Scaler),
		fmt.Sprintf("classify: %s over %d classes", c.Classifier, c.Classes),
		fmt.Sprintf("resolve: %s -> %s", pred.WasteClass, pred.Category),
	}

	classes := e.labels.Classes()
	rows := make([]model.ClassProbability, len(pred.Probabilities))
	for i, p := range pred.Probabilities {
		lbl, _ := e.labels.Resolve(i)
		rows[i] = model.ClassProbability{
			Class:       classes[i],
			WasteType:   lbl.Display,
			Probability: Round2(p * 100),
			Category:    string(lbl.Category),
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Probability > rows[j].Probability })

	return Diagnosis{
		Prediction:     pred,
		Steps:          steps,
		Probabilities:  rows,
		Components:     c,
		Threshold:      e.threshold,
		BelowThreshold: pred.Confidence < e.threshold*100,
	}, nil
}

// Round2 rounds to two decimals, the precision confidences are reported in.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
