package models

// Entity types with dedicated post-processing rules.
const (
	EntityPerson                 = "PERSON"
	EntityCreditCardNumber       = "CREDIT_CARD_NUMBER"
	EntityCreditCard             = "CREDIT_CARD"
	EntityUSDriversLicenseNumber = "US_DRIVERS_LICENSE_NUMBER"
	EntityUSDriverLicense        = "US_DRIVER_LICENSE"
)

// EntityHit is a single PII/PHI detection inside a chunk. Start and End are
// character (code point) offsets into the chunk text, as reported by the engine.
type EntityHit struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
	Text       string  `json:"pii_text,omitempty"`
}

// Analysis is the engine's per-text result: the analyzed text and its hits.
type Analysis struct {
	Text     string      `json:"text,omitempty"`
	Analysis []EntityHit `json:"analysis"`
}

// RiskScores are the aggregate GDPR and PII risk statistics of a chunk or document.
// Mean, mode and median are integer risk levels; stdev and variance are floats.
type RiskScores struct {
	GDPRRiskMean     int     `json:"gdpr_risk_mean"`
	GDPRRiskMode     int     `json:"gdpr_risk_mode"`
	GDPRRiskMedian   int     `json:"gdpr_risk_median"`
	GDPRRiskStdev    float64 `json:"gdpr_risk_stdev"`
	GDPRRiskVariance float64 `json:"gdpr_risk_variance"`
	PIIRiskMean      int     `json:"pii_risk_mean"`
	PIIRiskMode      int     `json:"pii_risk_mode"`
	PIIRiskMedian    int     `json:"pii_risk_median"`
	PIIRiskStdev     float64 `json:"pii_risk_stdev"`
	PIIRiskVariance  float64 `json:"pii_risk_variance"`
}

// DetectionSummary summarizes the hits of a chunk or document.
type DetectionSummary struct {
	SanitizedText              string         `json:"sanitized_text"`
	DetectionCount             int            `json:"detection_count"`
	DetectedPIITypes           []string       `json:"detected_pii_types"`
	DetectedPIITypeFrequencies map[string]int `json:"detected_pii_type_frequencies"`
}

// EngineResult is the raw output of the PII analysis engine for one request.
type EngineResult struct {
	Analyses []Analysis `json:"analyses"`
	RiskScores
	DetectionSummary
}

// Hits returns the hit list of the first analysis, or nil when there is none.
func (r *EngineResult) Hits() []EntityHit {
	if r == nil || len(r.Analyses) == 0 {
		return nil
	}
	return r.Analyses[0].Analysis
}

// SetHits replaces the hit list of the first analysis, creating it when absent.
func (r *EngineResult) SetHits(hits []EntityHit) {
	if len(r.Analyses) == 0 {
		r.Analyses = []Analysis{{}}
	}
	r.Analyses[0].Analysis = hits
}
