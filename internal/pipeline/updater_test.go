package pipeline

import (
	"reflect"
	"testing"

	"github.com/hyperjump/kakushi/internal/models"
)

func TestUpdateClassification(t *testing.T) {
	doc := models.NewClassifiedDocument(models.RecordV1, models.DocumentMeta{DocumentID: "d"}, "text")
	res := &models.EngineResult{
		RiskScores: models.RiskScores{GDPRRiskMean: 3, GDPRRiskVariance: 0.5, PIIRiskMode: 6, PIIRiskStdev: 1.25},
		DetectionSummary: models.DetectionSummary{
			SanitizedText:              "<PERSON>",
			DetectionCount:             1,
			DetectedPIITypes:           []string{"PERSON"},
			DetectedPIITypeFrequencies: map[string]int{"PERSON": 1},
		},
	}
	UpdateClassification(doc, res)
	if *doc.Scores() != res.RiskScores {
		t.Errorf("scores = %+v", *doc.Scores())
	}
	det := doc.Detection()
	if det.SanitizedText != "<PERSON>" || det.DetectionCount != 1 {
		t.Errorf("detection = %+v", det)
	}
	if !reflect.DeepEqual(det.DetectedPIITypes, []string{"PERSON"}) || det.DetectedPIITypeFrequencies["PERSON"] != 1 {
		t.Errorf("types = %v %v", det.DetectedPIITypes, det.DetectedPIITypeFrequencies)
	}

	res.DetectedPIITypeFrequencies["PERSON"] = 5
	if det.DetectedPIITypeFrequencies["PERSON"] != 1 {
		t.Error("document must not share the engine's frequency map")
	}
}

func TestUpdateClassification_Defaults(t *testing.T) {
	doc := models.NewClassifiedDocument(models.RecordV2, models.DocumentMeta{}, "text")
	doc.Scores().PIIRiskMean = 9
	UpdateClassification(doc, &models.EngineResult{})
	if doc.Scores().PIIRiskMean != 0 {
		t.Error("absent fields should default to zero")
	}
	det := doc.Detection()
	if det.DetectedPIITypes == nil || det.DetectedPIITypeFrequencies == nil {
		t.Error("absent collections should default to empty, not nil")
	}

	UpdateClassification(doc, nil)
	if doc.Detection().DetectionCount != 0 || doc.Detection().DetectedPIITypes == nil {
		t.Errorf("nil result: got %+v", doc.Detection())
	}
}
