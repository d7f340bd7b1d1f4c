package quantizer

import (
	"testing"
)

func testVocab(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := New([][]float64{
		{0, 0},
		{10, 10},
		{255, 255},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return v
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		centroids [][]float64
	}{
		{"empty", nil},
		{"zero dim", [][]float64{{}}},
		{"ragged", [][]float64{{1, 2}, {1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.centroids); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	in := [][]float64{{1, 1}}
	v, err := New(in)
	if err != nil {
		t.Fatal(err)
	}
	in[0][0] = 100
	labels, _ := Assign(v, [][]float64{{1, 1}})
	if labels[0] != 0 || v.centroids[0][0] != 1 {
		t.Fatal("vocabulary must not alias caller slices")
	}
}

func TestAssignAcrossTypes(t *testing.T) {
	v := testVocab(t)

	bytesLabels, err := Assign(v, [][]uint8{{1, 2}, {9, 12}, {250, 251}})
	if err != nil {
		t.Fatalf("Assign(uint8) error: %v", err)
	}
	floatLabels, err := Assign(v, [][]float32{{1, 2}, {9, 12}, {250, 251}})
	if err != nil {
		t.Fatalf("Assign(float32) error: %v", err)
	}
	want := []int{0, 1, 2}
	for i := range want {
		if bytesLabels[i] != want[i] || floatLabels[i] != want[i] {
			t.Errorf("label[%d] = %d/%d, want %d", i, bytesLabels[i], floatLabels[i], want[i])
		}
	}
}

func TestAssignTieGoesToLowestIndex(t *testing.T) {
	v, _ := New([][]float64{{0}, {2}})
	labels, err := Assign(v, [][]float64{{1}})
	if err != nil {
		t.Fatal(err)
	}
	if labels[0] != 0 {
		t.Errorf("tie label = %d, want 0", labels[0])
	}
}

func TestAssignDimensionMismatch(t *testing.T) {
	v := testVocab(t)
	if _, err := Assign(v, [][]uint8{{1, 2, 3}}); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestHistogram(t *testing.T) {
	v := testVocab(t)
	h, err := v.Histogram([]int{0, 0, 2, 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.5, 0.25, 0.25}
	for i := range want {
		if h[i] != want[i] {
			t.Errorf("h[%d] = %v, want %v", i, h[i], want[i])
		}
	}

	empty, err := v.Histogram(nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range empty {
		if x != 0 {
			t.Errorf("empty[%d] = %v, want 0", i, x)
		}
	}

	if _, err := v.Histogram([]int{3}); err == nil {
		t.Error("expected error for out-of-range label")
	}
}
