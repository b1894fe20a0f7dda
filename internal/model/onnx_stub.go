//go:build !cgo_onnx

package model

import "errors"

// Stub implementation when onnxruntime is not available.
// Build with -tags cgo_onnx to enable the real implementation.

var errNoONNX = errors.New("built without cgo_onnx tag. Rebuild with: go build -tags cgo_onnx")

// ONNXClassifier is a stub when built without cgo_onnx tag
type ONNXClassifier struct{}

// LoadONNXClassifier always fails without onnxruntime
func LoadONNXClassifier(_ string, _ []int) (*ONNXClassifier, error) {
	return nil, errNoONNX
}

// Classes returns nothing without onnxruntime
func (c *ONNXClassifier) Classes() []int {
	return nil
}

// PredictProba is unavailable without onnxruntime
func (c *ONNXClassifier) PredictProba(_ []float64) ([]float64, error) {
	return nil, errNoONNX
}

// Predict is unavailable without onnxruntime
func (c *ONNXClassifier) Predict(_ []float64) (int, error) {
	return 0, errNoONNX
}

// Close is a no-op
func (c *ONNXClassifier) Close() error {
	return nil
}
