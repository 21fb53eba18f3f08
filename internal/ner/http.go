package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRecognizer calls a model server: POST <baseURL>/detect with {"text": ...},
// expecting {"entities": [{text, label, start_pos, end_pos, confidence}]}.
type HTTPRecognizer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRecognizer returns a recognizer for the model server at baseURL.
func NewHTTPRecognizer(baseURL string, timeout time.Duration) *HTTPRecognizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRecognizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the recognizer name.
func (r *HTTPRecognizer) Name() string { return "http" }

type detectResponse struct {
	Entities []Entity `json:"entities"`
}

// Recognize sends text to the model server.
func (r *HTTPRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("ner server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ner response: %w", err)
	}
	return out.Entities, nil
}

// Close is a no-op.
func (r *HTTPRecognizer) Close() error { return nil }
