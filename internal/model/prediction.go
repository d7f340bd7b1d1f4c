package model

// Category is the coarse output shown to end users.
type Category string

const (
	Organic   Category = "organic"
	Inorganic Category = "inorganic"
)

// Label returns the user-facing category name.
func (c Category) Label() string {
	if c == Organic {
		return "Sampah Organik"
	}
	return "Sampah Anorganik"
}

// Prediction is the pipeline's output for a single image. Created per
// request and never mutated after it is returned.
type Prediction struct {
	WasteClass    string    `json:"waste_class"` // class name from the label encoder (e.g. "food_waste")
	WasteType     string    `json:"waste_type"`  // display form of WasteClass
	Category      Category  `json:"category"`
	Confidence    float64   `json:"confidence"` // max class probability x 100, unrounded
	ClassIndex    int       `json:"class_index"`
	Probabilities []float64 `json:"probabilities,omitempty"` // per class, label encoder order; diagnostics only
}

// Tip is a short piece of handling advice shown with a result.
type Tip struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

// ClassProbability is one row of the diagnostic per-class breakdown.
type ClassProbability struct {
	Class       string  `json:"class"`
	WasteType   string  `json:"wasteType"`
	Probability float64 `json:"probability"` // percent, 2 decimals
	Category    string  `json:"category"`
}
