package pipeline

import (
	"strings"

	"github.com/hyperjump/kakushi/internal/models"
)

// MergeChunks folds per-chunk records into one document record. Identifying fields come
// from the first record. Counts and frequencies are summed, types are unioned in
// first-seen order, entities are concatenated and sanitized texts are joined by "\n".
//
// Risk fields use a running pairwise mean: each record is averaged with the accumulator,
// so with more than two chunks later chunks weigh more. Historical records depend on
// this, so it is kept as is. A zero value counts as absent.
//
// Returns nil for no records.
func MergeChunks(records []*models.ClassificationRecord) *models.ClassificationRecord {
	if len(records) == 0 {
		return nil
	}
	first := records[0]
	out := &models.ClassificationRecord{
		DocumentID:         first.DocumentID,
		FileName:           first.FileName,
		FileType:           first.FileType,
		FileURI:            first.FileURI,
		Language:           first.Language,
		LanguageConfidence: first.LanguageConfidence,
		ContentWordCount:   first.ContentWordCount,
		RecordVersion:      first.RecordVersion,
		ProcessedAt:        first.ProcessedAt,
		Entities:           []models.EntityHit{},
		DetectionSummary: models.DetectionSummary{
			DetectedPIITypes:           []string{},
			DetectedPIITypeFrequencies: make(map[string]int),
		},
	}
	seen := make(map[string]bool)
	sanitized := make([]string, 0, len(records))
	for _, rec := range records {
		out.Entities = append(out.Entities, rec.Entities...)
		out.RawTextLength += rec.RawTextLength
		out.DetectionCount += rec.DetectionCount
		for _, t := range rec.DetectedPIITypes {
			if !seen[t] {
				seen[t] = true
				out.DetectedPIITypes = append(out.DetectedPIITypes, t)
			}
		}
		for k, v := range rec.DetectedPIITypeFrequencies {
			out.DetectedPIITypeFrequencies[k] += v
		}
		sanitized = append(sanitized, rec.SanitizedText)
		mergeRisk(&out.RiskScores, &rec.RiskScores)
	}
	out.SanitizedText = strings.Join(sanitized, "\n")
	return out
}

func mergeRisk(acc, r *models.RiskScores) {
	acc.GDPRRiskMean = pairMean(acc.GDPRRiskMean, r.GDPRRiskMean)
	acc.GDPRRiskMode = pairMean(acc.GDPRRiskMode, r.GDPRRiskMode)
	acc.GDPRRiskMedian = pairMean(acc.GDPRRiskMedian, r.GDPRRiskMedian)
	acc.GDPRRiskStdev = pairMeanFloat(acc.GDPRRiskStdev, r.GDPRRiskStdev)
	acc.GDPRRiskVariance = pairMeanFloat(acc.GDPRRiskVariance, r.GDPRRiskVariance)
	acc.PIIRiskMean = pairMean(acc.PIIRiskMean, r.PIIRiskMean)
	acc.PIIRiskMode = pairMean(acc.PIIRiskMode, r.PIIRiskMode)
	acc.PIIRiskMedian = pairMean(acc.PIIRiskMedian, r.PIIRiskMedian)
	acc.PIIRiskStdev = pairMeanFloat(acc.PIIRiskStdev, r.PIIRiskStdev)
	acc.PIIRiskVariance = pairMeanFloat(acc.PIIRiskVariance, r.PIIRiskVariance)
}

// pairMean is floor((a+b)/2) when both are set, else whichever is set.
func pairMean(a, b int) int {
	switch {
	case a != 0 && b != 0:
		return (a + b) / 2 // risk levels are non-negative
	case a != 0:
		return a
	default:
		return b
	}
}

func pairMeanFloat(a, b float64) float64 {
	switch {
	case a != 0 && b != 0:
		return (a + b) / 2
	case a != 0:
		return a
	default:
		return b
	}
}
