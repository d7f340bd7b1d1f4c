package classifier

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/pilar/internal/errs"
)

// onnxProbsOutput is the probability tensor written by skl2onnx and
// onnxmltools classifier converters.
const onnxProbsOutput = "probabilities"

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// onnxModel runs an exported classifier graph with a single [1, n] float
// input. Sessions are not assumed to be reentrant, so Run is serialised.
type onnxModel struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	numFeature int
	numClass   int
}

func newONNX(spec Spec, opts Options) (*onnxModel, error) {
	if len(spec.Model) == 0 {
		return nil, fmt.Errorf("onnx: empty model")
	}
	if err := initORT(opts.ORTLibrary); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(spec.Model)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected one input tensor, got %d", len(inputs))
	}
	in := inputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("onnx: input %q has type %v, want float", in.Name, in.DataType)
	}
	numFeature := spec.NumFeature
	if dims := in.Dimensions; len(dims) == 2 && dims[1] > 0 {
		numFeature = int(dims[1])
	}

	var probs *ort.InputOutputInfo
	for i := range outputs {
		if outputs[i].Name == onnxProbsOutput {
			probs = &outputs[i]
		}
	}
	if probs == nil || probs.OrtValueType != ort.ONNXTypeTensor {
		// ZipMap outputs (sequence of maps) are not tensors and cannot be read back.
		return nil, errs.Errorf(errs.Capability, "classifier",
			"onnx graph has no %q tensor output; export with zipmap disabled", onnxProbsOutput)
	}
	numClass := spec.NumClass
	if dims := probs.Dimensions; len(dims) == 2 && dims[1] > 0 {
		numClass = int(dims[1])
	}
	if numClass < 2 {
		return nil, fmt.Errorf("onnx: cannot determine class count from output shape %v", probs.Dimensions)
	}

	sopts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer sopts.Destroy()
	sopts.SetIntraOpNumThreads(1)
	sopts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(spec.Model, []string{in.Name}, []string{onnxProbsOutput}, sopts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}
	return &onnxModel{session: session, inputName: in.Name, numFeature: numFeature, numClass: numClass}, nil
}

func (m *onnxModel) Kind() string           { return TypeONNX }
func (m *onnxModel) NumClasses() int        { return m.numClass }
func (m *onnxModel) NumFeatures() int       { return m.numFeature }
func (m *onnxModel) HasProbabilities() bool { return true }

func (m *onnxModel) Predict(vec []float32) (int, error) {
	p, err := m.PredictProbabilities(vec)
	if err != nil {
		return 0, err
	}
	return Argmax(p), nil
}

func (m *onnxModel) PredictProbabilities(vec []float32) ([]float64, error) {
	if m.numFeature > 0 && len(vec) != m.numFeature {
		return nil, errs.ShapeMismatch("classifier", m.numFeature, len(vec))
	}
	in, err := ort.NewTensor(ort.NewShape(1, int64(len(vec))), vec)
	if err != nil {
		return nil, errs.E(errs.Processing, "classifier", fmt.Errorf("onnx: failed to create input tensor: %w", err))
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(m.numClass)))
	if err != nil {
		return nil, errs.E(errs.Processing, "classifier", fmt.Errorf("onnx: failed to create output tensor: %w", err))
	}
	defer out.Destroy()

	m.mu.Lock()
	err = m.session.Run([]ort.Value{in}, []ort.Value{out})
	m.mu.Unlock()
	if err != nil {
		return nil, errs.E(errs.Processing, "classifier", fmt.Errorf("onnx: inference failed: %w", err))
	}

	data := out.GetData()
	probs := make([]float64, len(data))
	for i, v := range data {
		probs[i] = float64(v)
	}
	return probs, nil
}

// Close releases the ONNX session resources.
func (m *onnxModel) Close() error {
	return m.session.Destroy()
}
