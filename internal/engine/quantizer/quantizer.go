// Package quantizer maps local descriptors onto a fixed visual vocabulary
// by nearest-centroid assignment. The vocabulary is read-only once built.
package quantizer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Number is the set of descriptor element types Assign accepts. Elements
// are cast to float64 before distances are computed.
type Number interface {
	~uint8 | ~float32 | ~float64
}

// Vocabulary holds the trained cluster centroids.
type Vocabulary struct {
	centroids [][]float64
	dim       int
}

// New builds a vocabulary from centroids, which must be non-empty and share
// a dimension. The input is copied.
func New(centroids [][]float64) (*Vocabulary, error) {
	if len(centroids) == 0 {
		return nil, fmt.Errorf("quantizer: no centroids")
	}
	dim := len(centroids[0])
	if dim == 0 {
		return nil, fmt.Errorf("quantizer: centroid dimension is zero")
	}
	cs := make([][]float64, len(centroids))
	for i, c := range centroids {
		if len(c) != dim {
			return nil, fmt.Errorf("quantizer: centroid %d has dimension %d, want %d", i, len(c), dim)
		}
		if floats.HasNaN(c) {
			return nil, fmt.Errorf("quantizer: centroid %d contains NaN", i)
		}
		cs[i] = append([]float64(nil), c...)
	}
	return &Vocabulary{centroids: cs, dim: dim}, nil
}

// Size is the number of visual words.
func (v *Vocabulary) Size() int { return len(v.centroids) }

// Dim is the descriptor dimension the vocabulary expects.
func (v *Vocabulary) Dim() int { return v.dim }

// Assign returns, for every descriptor, the index of the nearest centroid
// by Euclidean distance. Ties go to the lowest index.
func Assign[T Number](v *Vocabulary, descs [][]T) ([]int, error) {
	labels := make([]int, len(descs))
	buf := make([]float64, v.dim)
	for i, d := range descs {
		if len(d) != v.dim {
			return nil, fmt.Errorf("quantizer: descriptor %d has dimension %d, want %d", i, len(d), v.dim)
		}
		for j, x := range d {
			buf[j] = float64(x)
		}
		best, bestDist := 0, floats.Distance(buf, v.centroids[0], 2)
		for c := 1; c < len(v.centroids); c++ {
			if dist := floats.Distance(buf, v.centroids[c], 2); dist < bestDist {
				best, bestDist = c, dist
			}
		}
		labels[i] = best
	}
	return labels, nil
}

// Histogram counts labels per word and normalises the counts to sum to 1.
// No labels yields an all-zero histogram.
func (v *Vocabulary) Histogram(labels []int) ([]float64, error) {
	h := make([]float64, len(v.centroids))
	for _, l := range labels {
		if l < 0 || l >= len(h) {
			return nil, fmt.Errorf("quantizer: label %d outside vocabulary of %d", l, len(h))
		}
		h[l]++
	}
	if len(labels) > 0 {
		floats.Scale(1/float64(len(labels)), h)
	}
	return h, nil
}
