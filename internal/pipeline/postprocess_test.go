package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/internal/ner"
)

// stubRecognizer returns fixed entities and counts calls.
type stubRecognizer struct {
	entities []ner.Entity
	err      error
	calls    int
}

func (s *stubRecognizer) Name() string { return "stub" }

func (s *stubRecognizer) Recognize(ctx context.Context, text string) ([]ner.Entity, error) {
	s.calls++
	return s.entities, s.err
}

func (s *stubRecognizer) Close() error { return nil }

func confirming(text string) *stubRecognizer {
	return &stubRecognizer{entities: []ner.Entity{{Text: text, Label: "PER", Score: 0.99}}}
}

func TestClassify_Person(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		hit   models.EntityHit
		rec   *stubRecognizer
		want  Verdict
		calls int
	}{
		{"confirmed", models.EntityHit{EntityType: "PERSON", Text: "John", Score: 0.9}, confirming("John"), KeepConfirmed, 1},
		{"low score", models.EntityHit{EntityType: "PERSON", Text: "John", Score: 0.3}, confirming("John"), Discard, 0},
		{"score at threshold", models.EntityHit{EntityType: "PERSON", Text: "John", Score: 0.5}, confirming("John"), Discard, 0},
		{"too short", models.EntityHit{EntityType: "PERSON", Text: "Jon", Score: 0.9}, confirming("Jon"), Discard, 0},
		{"not recognized", models.EntityHit{EntityType: "PERSON", Text: "John", Score: 0.9}, &stubRecognizer{}, Discard, 1},
		{"different text", models.EntityHit{EntityType: "PERSON", Text: "John Smith", Score: 0.9}, confirming("John"), Discard, 1},
		{"non-person label", models.EntityHit{EntityType: "PERSON", Text: "Paris", Score: 0.9},
			&stubRecognizer{entities: []ner.Entity{{Text: "Paris", Label: "LOC"}}}, Discard, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPostProcessor(tt.rec, 0.5)
			got, err := p.Classify(ctx, tt.hit)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
			if tt.rec.calls != tt.calls {
				t.Errorf("recognizer called %d times, want %d", tt.rec.calls, tt.calls)
			}
		})
	}
}

func TestClassify_Rules(t *testing.T) {
	p := NewPostProcessor(&stubRecognizer{}, 0.5)
	tests := []struct {
		hit  models.EntityHit
		want Verdict
	}{
		{models.EntityHit{EntityType: "CREDIT_CARD", Text: "4111111111111111", Score: 0.9}, KeepConfirmed},
		{models.EntityHit{EntityType: "CREDIT_CARD", Text: "9111111111111111", Score: 0.9}, Discard},
		{models.EntityHit{EntityType: "CREDIT_CARD_NUMBER", Text: "5500000000000004", Score: 0.9}, KeepConfirmed},
		{models.EntityHit{EntityType: "CREDIT_CARD_NUMBER", Text: "340000000000009", Score: 0.9}, KeepConfirmed},
		{models.EntityHit{EntityType: "US_DRIVER_LICENSE", Text: "D1234567", Score: 0.9}, KeepConfirmed},
		{models.EntityHit{EntityType: "US_DRIVERS_LICENSE_NUMBER", Text: "D1234567", Score: 0.85}, Discard},
		{models.EntityHit{EntityType: "EMAIL_ADDRESS", Text: "a@b.io", Score: 0.1}, KeepUnconditional},
		{models.EntityHit{EntityType: "EMAIL_ADDRESS", Text: "ab", Score: 1}, Discard},
		{models.EntityHit{EntityType: "CREDIT_CARD", Text: "", Score: 1}, Discard},
	}
	for _, tt := range tests {
		got, err := p.Classify(context.Background(), tt.hit)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Classify(%s %q %.2f) = %v, want %v", tt.hit.EntityType, tt.hit.Text, tt.hit.Score, got, tt.want)
		}
	}
}

func TestClassify_RecognizerErrorPropagates(t *testing.T) {
	boom := errors.New("ner unavailable")
	p := NewPostProcessor(&stubRecognizer{err: boom}, 0.5)
	_, err := p.Classify(context.Background(), models.EntityHit{EntityType: "PERSON", Text: "John", Score: 0.9})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want %v", err, boom)
	}

	_, err = p.Apply(context.Background(), []models.EntityHit{{EntityType: "PERSON", Text: "John", Score: 0.9}})
	if !errors.Is(err, boom) {
		t.Errorf("Apply: got %v, want wrapped %v", err, boom)
	}
}

func TestApply_KeepsOrder(t *testing.T) {
	p := NewPostProcessor(confirming("Jane Doe"), 0.5)
	hits := []models.EntityHit{
		{Start: 0, End: 8, EntityType: "PERSON", Text: "Jane Doe", Score: 0.9},
		{Start: 10, End: 26, EntityType: "CREDIT_CARD", Text: "9999999999999999", Score: 0.9},
		{Start: 30, End: 40, EntityType: "EMAIL_ADDRESS", Text: "jd@mail.io", Score: 0.7},
	}
	kept, err := p.Apply(context.Background(), hits)
	if err != nil {
		t.Fatal(err)
	}
	if len(kept) != 2 || kept[0].EntityType != "PERSON" || kept[1].EntityType != "EMAIL_ADDRESS" {
		t.Errorf("got %+v", kept)
	}
}

func TestNewPostProcessor_Defaults(t *testing.T) {
	p := NewPostProcessor(nil, 0)
	if p.personThreshold != 0.5 {
		t.Errorf("default person threshold = %v", p.personThreshold)
	}
	got, err := p.Classify(context.Background(), models.EntityHit{EntityType: "PERSON", Text: "Ada Lovelace", Score: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	if got != KeepConfirmed {
		t.Errorf("heuristic recognizer should confirm a capitalized name, got %v", got)
	}
}

func TestVerdictString(t *testing.T) {
	if KeepUnconditional.String() != "keep" || KeepConfirmed.String() != "confirmed" || Discard.String() != "discard" {
		t.Error("unexpected verdict names")
	}
	if int(KeepUnconditional) != 0 || int(KeepConfirmed) != 1 || int(Discard) != 2 {
		t.Error("verdict values must be 0, 1, 2")
	}
}
