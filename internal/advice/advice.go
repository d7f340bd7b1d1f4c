// Package advice holds the static handling tips returned with each result.
package advice

import "github.com/crimson-sun/pilar/internal/model"

var organicTips = []model.Tip{
	{Title: "Pisahkan sampah organik dari anorganik", Color: "#10B981"},
	{Title: "Buat kompos dari sisa makanan", Color: "#4DB8AC"},
	{Title: "Gunakan untuk pakan ternak jika memungkinkan", Color: "#F59E0B"},
	{Title: "Hindari mencampur dengan sampah lain", Color: "#8B5CF6"},
	{Title: "Proses dalam waktu 24 jam untuk menghindari bau", Color: "#EF4444"},
}

var inorganicTips = []model.Tip{
	{Title: "Bersihkan sampah anorganik sebelum dibuang", Color: "#4DB8AC"},
	{Title: "Pisahkan berdasarkan jenis material", Color: "#F59E0B"},
	{Title: "Gunakan ulang wadah yang masih layak", Color: "#8B5CF6"},
	{Title: "Tekan untuk hemat ruang penyimpanan", Color: "#EF4444"},
	{Title: "Setorkan ke bank sampah terdekat", Color: "#10B981"},
}

// Tips returns a copy of the tips for a category. Anything that is not
// organic gets the inorganic list.
func Tips(c model.Category) []model.Tip {
	src := inorganicTips
	if c == model.Organic {
		src = organicTips
	}
	out := make([]model.Tip, len(src))
	copy(out, src)
	return out
}

// Description is the one-line summary shown under the waste type.
func Description(wasteType string) string {
	return wasteType + " adalah kategori sampah yang perlu dikelola dengan baik"
}
