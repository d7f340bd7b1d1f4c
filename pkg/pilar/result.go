package pilar

// Tip is a short piece of handling advice.
type Tip struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

// Result is the classification of one image.
// This is the stable public type; internal representations may change
// without breaking consumers.
type Result struct {
	WasteClass    string  `json:"waste_class"`    // Raw class name, e.g. "sisa_makanan"
	WasteType     string  `json:"waste_type"`     // Display name, e.g. "Sisa Makanan"
	Category      string  `json:"category"`       // "organic" or "inorganic"
	CategoryLabel string  `json:"category_label"` // "Sampah Organik" or "Sampah Anorganik"
	Confidence    float64 `json:"confidence"`     // Percent, two decimals
	Tips          []Tip   `json:"tips"`
	Description   string  `json:"description"`
}
