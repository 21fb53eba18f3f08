//go:build cgo
// +build cgo

package ner

import (
	"context"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXRecognizer runs a BERT token-classification model with ONNX Runtime.
// It requires CGO and the onnxruntime shared library.
type ONNXRecognizer struct {
	session   *ort.AdvancedSession
	tokenizer *WordPieceTokenizer
	labels    []string
	maxTokens int
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	logitsTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXRecognizer loads the model at modelPath and initializes the ONNX Runtime environment.
func NewONNXRecognizer(modelPath string, vocab map[string]int64, maxTokens int) (*ONNXRecognizer, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = 128
	}
	labels := DefaultLabels
	shape := ort.NewShape(1, int64(maxTokens))

	inputIDsTensor, err := ort.NewTensor(shape, make([]int64, maxTokens))
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	attentionMaskTensor, err := ort.NewTensor(shape, make([]int64, maxTokens))
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(shape, make([]int64, maxTokens))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	logitsTensor, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens), int64(len(labels))), make([]float32, maxTokens*len(labels)))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, fmt.Errorf("failed to create logits tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{logitsTensor},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		logitsTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXRecognizer{
		session:             session,
		tokenizer:           NewWordPieceTokenizer(vocab),
		labels:              labels,
		maxTokens:           maxTokens,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		logitsTensor:        logitsTensor,
	}, nil
}

// Name returns the recognizer name.
func (r *ONNXRecognizer) Name() string { return "onnx" }

// Recognize runs the model over text and groups BIO labels into entities.
func (r *ONNXRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	enc := r.tokenizer.Encode(text, r.maxTokens)
	copy(r.inputIDsTensor.GetData(), enc.InputIDs)
	copy(r.attentionMaskTensor.GetData(), enc.AttentionMask)
	copy(r.tokenTypeIDsTensor.GetData(), enc.TokenTypeIDs)

	if err := r.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	logits := r.logitsTensor.GetData()
	numLabels := len(r.labels)
	wordLabels := make([]string, len(enc.Words))
	wordScores := make([]float64, len(enc.Words))
	seen := make([]bool, len(enc.Words))
	for tok, wi := range enc.WordIndex {
		if wi < 0 || seen[wi] {
			continue
		}
		seen[wi] = true
		best, conf := argmaxSoftmax(logits[tok*numLabels : (tok+1)*numLabels])
		wordLabels[wi] = r.labels[best]
		wordScores[wi] = conf
	}
	return groupBIO(text, enc.Words, wordLabels, wordScores), nil
}

// Close destroys the session and tensors.
func (r *ONNXRecognizer) Close() error {
	var err error
	if r.session != nil {
		err = r.session.Destroy()
		r.session = nil
	}
	if r.inputIDsTensor != nil {
		_ = r.inputIDsTensor.Destroy()
		r.inputIDsTensor = nil
	}
	if r.attentionMaskTensor != nil {
		_ = r.attentionMaskTensor.Destroy()
		r.attentionMaskTensor = nil
	}
	if r.tokenTypeIDsTensor != nil {
		_ = r.tokenTypeIDsTensor.Destroy()
		r.tokenTypeIDsTensor = nil
	}
	if r.logitsTensor != nil {
		_ = r.logitsTensor.Destroy()
		r.logitsTensor = nil
	}
	return err
}

func argmaxSoftmax(logits []float32) (int, float64) {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v - logits[best]))
	}
	return best, 1 / sum
}
