//go:build !cgo
// +build !cgo

package ner

import (
	"context"
	"errors"
)

// ONNXRecognizer stub type when built without CGO (see onnx.go for real implementation).
type ONNXRecognizer struct{}

// NewONNXRecognizer returns an error when built without CGO (ONNX not available).
func NewONNXRecognizer(_ string, _ map[string]int64, _ int) (*ONNXRecognizer, error) {
	return nil, errors.New("ONNX recognizer requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Name returns the recognizer name.
func (r *ONNXRecognizer) Name() string { return "onnx" }

// Recognize always fails without CGO.
func (r *ONNXRecognizer) Recognize(_ context.Context, _ string) ([]Entity, error) {
	return nil, errors.New("ONNX recognizer requires CGO")
}

// Close is a no-op.
func (r *ONNXRecognizer) Close() error { return nil }
