//go:build cgo_onnx

package model

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/floats"

	"github.com/kartoza/stunting-risk/internal/inference"
)

// ONNXClassifier runs a classifier exported with skl2onnx (zipmap disabled),
// which takes "float_input" of shape [1, n] and yields "label" and
// "probabilities".
type ONNXClassifier struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	label   *ort.Tensor[int64]
	proba   *ort.Tensor[float32]
	classes []int
	mu      sync.Mutex
}

var ortOnce sync.Once
var ortErr error

func initRuntime() error {
	ortOnce.Do(func() {
		if lib := os.Getenv("ONNXRUNTIME_LIB"); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		if !ort.IsInitialized() {
			ortErr = ort.InitializeEnvironment()
		}
	})
	return ortErr
}

// LoadONNXClassifier opens an ONNX session for the model at path
func LoadONNXClassifier(path string, classes []int) (*ONNXClassifier, error) {
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(inference.ModelFeatures))))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	label, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create label tensor: %w", err)
	}
	proba, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(classes))))
	if err != nil {
		input.Destroy()
		label.Destroy()
		return nil, fmt.Errorf("failed to create probability tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{"float_input"}, []string{"label", "probabilities"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{label, proba},
		nil)
	if err != nil {
		input.Destroy()
		label.Destroy()
		proba.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		session: session,
		input:   input,
		label:   label,
		proba:   proba,
		classes: append([]int(nil), classes...),
	}, nil
}

// Classes returns the class labels in probability order
func (c *ONNXClassifier) Classes() []int {
	return append([]int(nil), c.classes...)
}

// PredictProba runs the session and returns the probabilities output
func (c *ONNXClassifier) PredictProba(features []float64) ([]float64, error) {
	if len(features) != len(inference.ModelFeatures) {
		return nil, fmt.Errorf("onnx model expects %d features, got %d", len(inference.ModelFeatures), len(features))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, fmt.Errorf("onnx classifier is closed")
	}
	data := c.input.GetData()
	for i, v := range features {
		data[i] = float32(v)
	}
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := c.proba.GetData()
	result := make([]float64, len(out))
	for i, v := range out {
		result[i] = float64(v)
	}
	return result, nil
}

// Predict returns the most probable class
func (c *ONNXClassifier) Predict(features []float64) (int, error) {
	proba, err := c.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return c.classes[floats.MaxIdx(proba)], nil
}

// Close destroys the session and its tensors
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.input != nil {
		c.input.Destroy()
	}
	if c.label != nil {
		c.label.Destroy()
	}
	if c.proba != nil {
		c.proba.Destroy()
	}
	return nil
}
