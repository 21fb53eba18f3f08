// Package ner provides the secondary named-entity recognizers used to confirm PERSON hits.
package ner

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kakushi/internal/config"
	"go.uber.org/zap"
)

// Entity is a recognized named entity. Start and End are character offsets into the input.
type Entity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Start int     `json:"start_pos"`
	End   int     `json:"end_pos"`
	Score float64 `json:"confidence"`
}

// Recognizer finds named entities in a short text.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, text string) ([]Entity, error)
	Close() error
}

// IsPersonLabel reports whether label denotes a person (PERSON, PER, B-PER, I-PER).
func IsPersonLabel(label string) bool {
	l := strings.ToUpper(strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-"))
	return l == "PERSON" || l == "PER"
}

// ConfirmsPerson reports whether entities contain text exactly, labelled as a person.
func ConfirmsPerson(entities []Entity, text string) bool {
	text = strings.TrimSpace(text)
	for _, e := range entities {
		if IsPersonLabel(e.Label) && strings.TrimSpace(e.Text) == text {
			return true
		}
	}
	return false
}

// Option configures a recognizer built by New.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets a logger for recognizer debug output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds the recognizer selected by cfg.Mode.
func New(cfg config.NERConfig, opts ...Option) (Recognizer, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	switch strings.ToLower(cfg.Mode) {
	case "", "heuristic":
		return NewHeuristic(), nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("ner mode http requires ner.url")
		}
		return NewHTTPRecognizer(cfg.URL, cfg.Timeout), nil
	case "onnx":
		vocab, err := LoadVocab(cfg.VocabPath)
		if err != nil {
			return nil, err
		}
		o.logger.Debug("loading onnx ner model", zap.String("model", cfg.ModelPath), zap.Int("vocab", len(vocab)))
		r, err := NewONNXRecognizer(cfg.ModelPath, vocab, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown ner mode %q", cfg.Mode)
	}
}
