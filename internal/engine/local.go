package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/pkg/utils"
)

// gdprWeights are GDPR risk levels (0-10) per entity type; special-category and
// national identifiers weigh most.
var gdprWeights = map[string]float64{
	"PERSON":            6,
	"EMAIL_ADDRESS":     5,
	"PHONE_NUMBER":      5,
	"CREDIT_CARD":       7,
	"IBAN_CODE":         7,
	"US_SSN":            9,
	"US_DRIVER_LICENSE": 8,
	"IP_ADDRESS":        4,
	"DATE_TIME":         3,
	"MEDICAL_LICENSE":   9,
	"LOCATION":          3,
}

const defaultWeight = 1

// Local is the built-in regex analyzer. It needs no external service.
type Local struct {
	patterns        []pattern
	piiWeights      map[string]float64
	collectionType  string
	collectionName  string
	filterDetection bool
}

// NewLocal returns a local analyzer using piiWeights for PII risk statistics.
func NewLocal(piiWeights map[string]float64, collectionType, collectionName string, filterDetection bool) *Local {
	return &Local{
		patterns:        defaultPatterns,
		piiWeights:      piiWeights,
		collectionType:  collectionType,
		collectionName:  collectionName,
		filterDetection: filterDetection,
	}
}

// Analyze analyzes a single text with the analyzer's configured collection settings.
func (l *Local) Analyze(ctx context.Context, text, lang string, threshold float64) (*models.EngineResult, error) {
	return l.AnalyzeCollection(ctx, []string{text}, lang, l.collectionType, l.collectionName, threshold, l.filterDetection)
}

// AnalyzeCollection analyzes texts and returns one analysis per text plus risk statistics
// and a detection summary over all hits. With filter set, hits scoring below threshold
// are dropped.
func (l *Local) AnalyzeCollection(ctx context.Context, texts []string, lang, collectionType, collectionName string, threshold float64, filter bool) (*models.EngineResult, error) {
	switch collectionType {
	case "", "document", "text":
	default:
		return nil, fmt.Errorf("collection %q: unsupported collection type %q", collectionName, collectionType)
	}
	res := &models.EngineResult{Analyses: make([]models.Analysis, 0, len(texts))}
	var all []models.EntityHit
	sanitized := make([]string, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hits := l.detect(text)
		if filter {
			kept := hits[:0]
			for _, h := range hits {
				if h.Score >= threshold {
					kept = append(kept, h)
				}
			}
			hits = kept
		}
		res.Analyses = append(res.Analyses, models.Analysis{Text: text, Analysis: hits})
		all = append(all, hits...)
		sanitized = append(sanitized, models.Summarize(text, hits).SanitizedText)
	}
	res.DetectionSummary = models.Summarize("", all)
	res.SanitizedText = strings.Join(sanitized, "\n")
	res.RiskScores = l.riskScores(all)
	return res, nil
}

func (l *Local) detect(text string) []models.EntityHit {
	var hits []models.EntityHit
	lower := strings.ToLower(text)
	for _, p := range l.patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			if len(m) >= 4 && m[2] >= 0 {
				start, end = m[2], m[3]
			}
			match := text[start:end]
			score := p.score
			if p.validate != nil && !p.validate(match) {
				score = p.invalidScore
			} else if hasContext(lower, m[0], p.context) {
				score = math.Min(1, score+p.contextBoost)
			}
			hits = append(hits, models.EntityHit{
				Start:      utf8.RuneCountInString(text[:start]),
				End:        utf8.RuneCountInString(text[:end]),
				EntityType: p.entity,
				Score:      score,
			})
		}
	}
	return hits
}

// hasContext reports whether any context word occurs in the window before byte offset at.
func hasContext(lower string, at int, words []string) bool {
	if len(words) == 0 {
		return false
	}
	if at > len(lower) {
		at = len(lower)
	}
	from := at - contextWindow
	if from < 0 {
		from = 0
	}
	window := lower[from:at]
	for _, w := range words {
		if strings.Contains(window, w) {
			return true
		}
	}
	return false
}

func (l *Local) riskScores(hits []models.EntityHit) models.RiskScores {
	if len(hits) == 0 {
		return models.RiskScores{}
	}
	gdpr := make([]float64, len(hits))
	pii := make([]float64, len(hits))
	for i, h := range hits {
		gdpr[i] = weight(gdprWeights, h.EntityType)
		pii[i] = weight(l.piiWeights, h.EntityType)
	}
	return models.RiskScores{
		GDPRRiskMean:     int(math.Round(utils.Mean(gdpr))),
		GDPRRiskMode:     int(utils.Mode(gdpr)),
		GDPRRiskMedian:   int(math.Round(utils.Median(gdpr))),
		GDPRRiskStdev:    utils.Stdev(gdpr),
		GDPRRiskVariance: utils.Variance(gdpr),
		PIIRiskMean:      int(math.Round(utils.Mean(pii))),
		PIIRiskMode:      int(utils.Mode(pii)),
		PIIRiskMedian:    int(math.Round(utils.Median(pii))),
		PIIRiskStdev:     utils.Stdev(pii),
		PIIRiskVariance:  utils.Variance(pii),
	}
}

func weight(weights map[string]float64, entity string) float64 {
	if w, ok := weights[entity]; ok {
		return w
	}
	return defaultWeight
}
