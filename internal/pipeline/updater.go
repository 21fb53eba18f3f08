package pipeline

import "github.com/hyperjump/kakushi/internal/models"

// UpdateClassification copies the engine's aggregate risk scores and detection summary
// onto doc. A nil result resets them to zero values.
func UpdateClassification(doc models.ClassifiedDocument, res *models.EngineResult) {
	scores, det := doc.Scores(), doc.Detection()
	if res == nil {
		*scores = models.RiskScores{}
		*det = models.DetectionSummary{
			DetectedPIITypes:           []string{},
			DetectedPIITypeFrequencies: map[string]int{},
		}
		return
	}
	*scores = res.RiskScores
	det.SanitizedText = res.SanitizedText
	det.DetectionCount = res.DetectionCount
	det.DetectedPIITypes = append([]string{}, res.DetectedPIITypes...)
	det.DetectedPIITypeFrequencies = make(map[string]int, len(res.DetectedPIITypeFrequencies))
	for k, v := range res.DetectedPIITypeFrequencies {
		det.DetectedPIITypeFrequencies[k] = v
	}
}
