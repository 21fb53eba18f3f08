package ner

import (
	"context"
	"unicode"
)

const heuristicScore = 0.85

// Heuristic recognizes runs of capitalized alphabetic words as persons.
// It needs no model and is the default recognizer.
type Heuristic struct{}

// NewHeuristic returns a heuristic recognizer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Name returns the recognizer name.
func (h *Heuristic) Name() string { return "heuristic" }

// Recognize returns one PERSON entity per maximal run of capitalized words.
func (h *Heuristic) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Entity
	runes := []rune(text)
	runStart, runEnd := -1, -1
	flush := func() {
		if runStart >= 0 {
			out = append(out, Entity{
				Text:  string(runes[runStart:runEnd]),
				Label: "PERSON",
				Start: runStart,
				End:   runEnd,
				Score: heuristicScore,
			})
		}
		runStart, runEnd = -1, -1
	}
	for _, w := range wordSpans(runes) {
		if !isNameWord(runes[w.start:w.end]) {
			flush()
			continue
		}
		if runStart < 0 {
			runStart = w.start
		}
		runEnd = w.end
	}
	flush()
	return out, nil
}

// Close is a no-op.
func (h *Heuristic) Close() error { return nil }

// isNameWord reports whether w looks like a name part: an upper-case letter followed by
// letters, apostrophes or hyphens.
func isNameWord(w []rune) bool {
	if len(w) < 2 || !unicode.IsUpper(w[0]) {
		return false
	}
	hasLower := false
	for _, r := range w[1:] {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsLetter(r), r == '\'', r == '-':
		default:
			return false
		}
	}
	return hasLower
}
