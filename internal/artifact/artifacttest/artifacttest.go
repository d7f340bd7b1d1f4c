// Package artifacttest builds small, deterministic model bundles for tests.
package artifacttest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
)

// Bundle is a mutable bundle document.
type Bundle map[string]any

// Handcrafted is a two-class bundle for the 38-feature extractor. Images
// that are mostly bright (bright_ratio >= 0.5) classify as "daun"
// (organic); everything else is "kardus" (inorganic).
func Handcrafted() Bundle {
	return Bundle{
		"format_version": 1,
		"version":        "test-handcrafted",
		"variant":        "handcrafted",
		"feature_length": 38,
		"scaler":         Identity(38),
		"classifier": map[string]any{
			"type":      "gbtree",
			"objective": "binary:logistic",
			"trees":     []any{Stump(36, 0.5, -2, 2)},
		},
		"label_encoder": map[string]any{"classes": []string{"kardus", "daun"}},
		"category_map":  map[string]string{"kardus": "anorganik", "daun": "organik"},
		"threshold":     0.6,
	}
}

// Downsample is a three-class bundle for raw pixel sampling of the given
// length. Bright images (first sample >= 0.5) classify as "sisa_makanan".
func Downsample(length int) Bundle {
	return Bundle{
		"format_version": 1,
		"version":        "test-downsample",
		"variant":        "downsample",
		"variant_params": map[string]int{"size": 16, "length": length},
		"feature_length": length,
		"scaler":         Identity(length),
		"classifier": map[string]any{
			"type":      "gbtree",
			"objective": "multi:softprob",
			"num_class": 3,
			"trees": []any{
				Stump(0, 0.5, 1, 0),
				Stump(0, 0.5, 0, 2),
				Leaf(0),
			},
		},
		"label_encoder": map[string]any{"classes": []string{"plastik", "sisa_makanan", "baterai"}},
		"category_map":  map[string]string{"plastik": "anorganik", "sisa_makanan": "organik", "baterai": "B3"},
	}
}

// BagOfWords is a two-class bundle for the visual-word extractor with a
// vocabulary of the given size over 32-byte descriptors. A histogram
// dominated by word 0 classifies as "daun".
func BagOfWords(vocab int) Bundle {
	centroids := make([][]float64, vocab)
	for i := range centroids {
		c := make([]float64, 32)
		for j := range c {
			c[j] = float64(i * 255 / max(1, vocab-1))
		}
		centroids[i] = c
	}
	n := vocab + 512
	return Bundle{
		"format_version":  1,
		"version":         "test-bovw",
		"variant":         "bovw",
		"feature_length":  n,
		"vocabulary_size": vocab,
		"clusterer":       map[string]any{"centroids": centroids},
		"scaler":          Identity(n),
		"classifier": map[string]any{
			"type":      "gbtree",
			"objective": "binary:logistic",
			"trees":     []any{Stump(0, 0.5, -1, 1)},
		},
		"label_encoder": map[string]any{"classes": []string{"kardus", "daun"}},
		"category_map":  map[string]string{"kardus": "anorganik", "daun": "organik"},
	}
}

// Identity is a standard scaler that leaves n features unchanged.
func Identity(n int) map[string]any {
	mean, scale := make([]float64, n), make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	return map[string]any{"type": "standard", "mean": mean, "scale": scale}
}

// Stump is a depth-1 tree in XGBoost dump form: feature < cond yields
// yes, otherwise no.
func Stump(feature int, cond, yes, no float64) map[string]any {
	return map[string]any{
		"nodeid": 0, "depth": 0, "split": "f" + strconv.Itoa(feature), "split_condition": cond,
		"yes": 1, "no": 2, "missing": 1,
		"children": []any{
			map[string]any{"nodeid": 1, "leaf": yes},
			map[string]any{"nodeid": 2, "leaf": no},
		},
	}
}

// Leaf is a single-leaf tree.
func Leaf(v float64) map[string]any {
	return map[string]any{"nodeid": 0, "leaf": v}
}

// Without returns a copy of b minus keys.
func (b Bundle) Without(keys ...string) Bundle {
	out := b.clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// With returns a copy of b with key set to v.
func (b Bundle) With(key string, v any) Bundle {
	out := b.clone()
	out[key] = v
	return out
}

func (b Bundle) clone() Bundle {
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// JSON encodes the bundle.
func (b Bundle) JSON() []byte {
	data, err := json.Marshal(b)
	if err != nil {
		panic(err)
	}
	return data
}

// Gzip encodes the bundle and compresses it.
func (b Bundle) Gzip() []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(b.JSON())
	zw.Close()
	return buf.Bytes()
}

// WriteFile stores the bundle as JSON under dir and returns the path.
func WriteFile(t testing.TB, dir, name string, b Bundle) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.JSON(), 0o644); err != nil {
		t.Fatalf("writing bundle: %v", err)
	}
	return path
}

// Source serves fixed bytes or a fixed error and counts fetches.
type Source struct {
	Label string
	Data  []byte
	Err   error
	calls atomic.Int32
}

func (s *Source) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s *Source) Fetch(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Data, s.Err
}

// Calls is the number of Fetch calls so far.
func (s *Source) Calls() int { return int(s.calls.Load()) }
