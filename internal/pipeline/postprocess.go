package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/internal/ner"
)

// Verdict is the post-processing decision for one hit.
type Verdict int

const (
	KeepUnconditional Verdict = iota
	KeepConfirmed
	Discard
)

// Keep reports whether the hit survives.
func (v Verdict) Keep() bool { return v != Discard }

func (v Verdict) String() string {
	switch v {
	case KeepUnconditional:
		return "keep"
	case KeepConfirmed:
		return "confirmed"
	case Discard:
		return "discard"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

const (
	minEntityChars         = 3
	minPersonChars         = 3 // person text must be longer than this
	driverLicenseMinScore  = 0.85
	defaultPersonThreshold = 0.5
)

// PostProcessor applies per-entity rules to filtered hits. PERSON hits are confirmed
// with a secondary named-entity recognizer.
type PostProcessor struct {
	recognizer      ner.Recognizer
	personThreshold float64
}

// NewPostProcessor returns a post-processor. A nil recognizer uses the heuristic one;
// a non-positive threshold uses 0.5.
func NewPostProcessor(recognizer ner.Recognizer, personThreshold float64) *PostProcessor {
	if recognizer == nil {
		recognizer = ner.NewHeuristic()
	}
	if personThreshold <= 0 {
		personThreshold = defaultPersonThreshold
	}
	return &PostProcessor{recognizer: recognizer, personThreshold: personThreshold}
}

// Classify returns the verdict for hit. The first matching rule wins. Recognizer
// errors are returned as-is.
func (p *PostProcessor) Classify(ctx context.Context, hit models.EntityHit) (Verdict, error) {
	n := utf8.RuneCountInString(hit.Text)
	if n < minEntityChars {
		return Discard, nil
	}
	switch hit.EntityType {
	case models.EntityPerson:
		if n <= minPersonChars || hit.Score <= p.personThreshold {
			return Discard, nil
		}
		entities, err := p.recognizer.Recognize(ctx, hit.Text)
		if err != nil {
			return Discard, err
		}
		if ner.ConfirmsPerson(entities, hit.Text) {
			return KeepConfirmed, nil
		}
		return Discard, nil
	case models.EntityCreditCardNumber, models.EntityCreditCard:
		switch hit.Text[0] {
		case '5', '4', '3':
			return KeepConfirmed, nil
		}
		return Discard, nil
	case models.EntityUSDriversLicenseNumber, models.EntityUSDriverLicense:
		if hit.Score > driverLicenseMinScore {
			return KeepConfirmed, nil
		}
		return Discard, nil
	default:
		return KeepUnconditional, nil
	}
}

// Apply returns the hits whose verdict keeps them, in order.
func (p *PostProcessor) Apply(ctx context.Context, hits []models.EntityHit) ([]models.EntityHit, error) {
	kept := make([]models.EntityHit, 0, len(hits))
	for _, h := range hits {
		v, err := p.Classify(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("post-process %s at %d:%d: %w", h.EntityType, h.Start, h.End, err)
		}
		if v.Keep() {
			kept = append(kept, h)
		}
	}
	return kept, nil
}
