package imgproc

import "math"

// HOGParams fixes the descriptor geometry. The handcrafted extractor uses
// DefaultHOG; changing it changes the feature values.
type HOGParams struct {
	Orientations  int
	PixelsPerCell int
	CellsPerBlock int
}

var DefaultHOG = HOGParams{Orientations: 9, PixelsPerCell: 8, CellsPerBlock: 2}

// HOG computes a histogram-of-oriented-gradients descriptor with L2-Hys
// block normalisation. Gradients are central differences with zeroed
// borders, orientations are unsigned in [0,180).
func HOG(g *Gray, p HOGParams) []float64 {
	w, h := g.W, g.H
	mag := make([]float64, w*h)
	ori := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var gr, gc float64
			if y > 0 && y < h-1 {
				gr = float64(g.At(x, y+1)) - float64(g.At(x, y-1))
			}
			if x > 0 && x < w-1 {
				gc = float64(g.At(x+1, y)) - float64(g.At(x-1, y))
			}
			i := y*w + x
			mag[i] = math.Hypot(gc, gr)
			o := math.Mod(math.Atan2(gr, gc)*180/math.Pi, 180)
			if o < 0 {
				o += 180
			}
			ori[i] = o
		}
	}

	cell := p.PixelsPerCell
	cellsX, cellsY := w/cell, h/cell
	nb := p.Orientations
	hist := make([]float64, cellsY*cellsX*nb)
	binWidth := 180.0 / float64(nb)
	area := float64(cell * cell)
	for cy := 0; cy < cellsY; cy++ {
		for cx := 0; cx < cellsX; cx++ {
			base := (cy*cellsX + cx) * nb
			for y := cy * cell; y < (cy+1)*cell; y++ {
				for x := cx * cell; x < (cx+1)*cell; x++ {
					i := y*w + x
					bin := int(ori[i] / binWidth)
					if bin >= nb {
						bin = nb - 1
					}
					hist[base+bin] += mag[i]
				}
			}
			for b := 0; b < nb; b++ {
				hist[base+b] /= area
			}
		}
	}

	bpb := p.CellsPerBlock
	blocksX, blocksY := cellsX-bpb+1, cellsY-bpb+1
	if blocksX <= 0 || blocksY <= 0 {
		return nil
	}
	blockLen := bpb * bpb * nb
	out := make([]float64, 0, blocksX*blocksY*blockLen)
	block := make([]float64, blockLen)
	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			k := 0
			for cy := by; cy < by+bpb; cy++ {
				for cx := bx; cx < bx+bpb; cx++ {
					base := (cy*cellsX + cx) * nb
					copy(block[k:k+nb], hist[base:base+nb])
					k += nb
				}
			}
			out = append(out, l2Hys(block)...)
		}
	}
	return out
}

func l2Hys(block []float64) []float64 {
	const eps = 1e-5
	out := make([]float64, len(block))
	var ss float64
	for _, v := range block {
		ss += v * v
	}
	n := math.Sqrt(ss + eps*eps)
	ss = 0
	for i, v := range block {
		v = math.Min(v/n, 0.2)
		out[i] = v
		ss += v * v
	}
	n = math.Sqrt(ss + eps*eps)
	for i := range out {
		out[i] /= n
	}
	return out
}
