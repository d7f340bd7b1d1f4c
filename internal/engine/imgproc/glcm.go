package imgproc

import "math"

// Texture holds the gray-level co-occurrence statistics in the order the
// handcrafted extractor emits them.
type Texture struct {
	Contrast      float64
	Dissimilarity float64
	Homogeneity   float64
	Energy        float64
	Correlation   float64
}

// GLCM computes a symmetric, normalised 256-level co-occurrence matrix for
// the horizontal neighbour (distance 1, angle 0) and derives its texture
// properties. Correlation is 1 when either marginal deviation vanishes.
func GLCM(g *Gray) Texture {
	const levels = 256
	p := make([]float64, levels*levels)
	var total float64
	for y := 0; y < g.H; y++ {
		row := g.Pix[y*g.W : (y+1)*g.W]
		for x := 0; x+1 < g.W; x++ {
			i, j := int(row[x]), int(row[x+1])
			p[i*levels+j]++
			p[j*levels+i]++
			total += 2
		}
	}
	if total == 0 {
		return Texture{Correlation: 1}
	}

	var t Texture
	var asm, meanI, meanJ float64
	for i := 0; i < levels; i++ {
		for j := 0; j < levels; j++ {
			v := p[i*levels+j]
			if v == 0 {
				continue
			}
			v /= total
			p[i*levels+j] = v
			d := float64(i - j)
			t.Contrast += v * d * d
			t.Dissimilarity += v * math.Abs(d)
			t.Homogeneity += v / (1 + d*d)
			asm += v * v
			meanI += float64(i) * v
			meanJ += float64(j) * v
		}
	}
	t.Energy = math.Sqrt(asm)

	var varI, varJ, cov float64
	for i := 0; i < levels; i++ {
		for j := 0; j < levels; j++ {
			v := p[i*levels+j]
			if v == 0 {
				continue
			}
			di, dj := float64(i)-meanI, float64(j)-meanJ
			varI += v * di * di
			varJ += v * dj * dj
			cov += v * di * dj
		}
	}
	stdI, stdJ := math.Sqrt(varI), math.Sqrt(varJ)
	if stdI < 1e-15 || stdJ < 1e-15 {
		t.Correlation = 1
	} else {
		t.Correlation = cov / (stdI * stdJ)
	}
	return t
}
