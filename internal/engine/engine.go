// Package engine calls the PII/PHI analysis engine for a chunk of text, either a remote
// analysis service over HTTP or the built-in regex analyzer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/kakushi/internal/config"
	"github.com/hyperjump/kakushi/internal/models"
	"go.uber.org/zap"
)

// ErrNoEngineURL is returned when no analyze URL is configured for a language.
var ErrNoEngineURL = errors.New("no engine url configured for language")

// Analyzer analyzes one chunk of text in the given language.
type Analyzer interface {
	Analyze(ctx context.Context, text, lang string, threshold float64) (*models.EngineResult, error)
}

// ExtractionError reports a failed call to the remote engine: a non-2xx status, a
// non-JSON response, or a body that could not be decoded.
type ExtractionError struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        string // excerpt
	Err         error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pii extraction failed: %s status=%d content_type=%q", e.URL, e.StatusCode, e.ContentType)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, " body=%q", e.Body)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Option configures an analyzer built by New.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets a logger for request debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds the analyzer selected by cfg.Mode.
func New(cfg config.EngineConfig, opts ...Option) (Analyzer, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	switch strings.ToLower(cfg.Mode) {
	case "", "local":
		return NewLocal(cfg.Weights, cfg.CollectionType, cfg.CollectionName, cfg.FilterDetection), nil
	case "remote":
		return NewRemote(cfg, o.logger), nil
	default:
		return nil, fmt.Errorf("unknown engine mode %q", cfg.Mode)
	}
}
