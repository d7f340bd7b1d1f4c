package classifier

import (
	"os"
	"testing"
)

// The ONNX backend needs a runtime library and an exported graph; point
// PILAR_TEST_ONNX_MODEL and PILAR_ORT_LIB at them to run these tests.
func onnxFixture(t *testing.T) ([]byte, string) {
	t.Helper()
	path := os.Getenv("PILAR_TEST_ONNX_MODEL")
	if path == "" {
		t.Skip("PILAR_TEST_ONNX_MODEL not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Skipf("reading ONNX model: %v", err)
	}
	lib := os.Getenv("PILAR_ORT_LIB")
	if lib == "" {
		lib = "../../../models/libonnxruntime.so"
	}
	if _, err := os.Stat(lib); os.IsNotExist(err) {
		t.Skip("ONNX Runtime library not found")
	}
	return data, lib
}

func TestONNXInference(t *testing.T) {
	data, lib := onnxFixture(t)

	c, err := New(Spec{Type: TypeONNX, Model: data}, Options{ORTLibrary: lib})
	if err != nil {
		t.Fatalf("failed to load ONNX classifier: %v", err)
	}
	defer c.Close()

	if c.NumFeatures() <= 0 {
		t.Skip("model input has a dynamic feature dimension")
	}
	p, err := c.PredictProbabilities(make([]float32, c.NumFeatures()))
	if err != nil {
		t.Fatalf("inference failed: %v", err)
	}
	if len(p) != c.NumClasses() {
		t.Fatalf("len(probabilities) = %d, want %d", len(p), c.NumClasses())
	}
	var sum float64
	for _, v := range p {
		sum += v
	}
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("probabilities sum to %v, want ~1", sum)
	}
	t.Logf("classes: %d, features: %d", c.NumClasses(), c.NumFeatures())
}
