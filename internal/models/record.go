package models

import "time"

// ClassificationRecord is the per-document output of the pipeline. Per-chunk records
// have the same shape and are merged into one record per document.
type ClassificationRecord struct {
	DocumentID         string      `json:"document_id"`
	FileName           string      `json:"file_name"`
	FileType           string      `json:"file_type"`
	FileURI            string      `json:"file_uri,omitempty"`
	Language           string      `json:"language"`
	LanguageConfidence float64     `json:"language_confidence,omitempty"`
	Entities           []EntityHit `json:"entities"`
	RiskScores
	DetectionSummary
	RawTextLength    int           `json:"raw_text_length,omitempty"`
	ContentWordCount int           `json:"content_word_count,omitempty"`
	RecordVersion    RecordVersion `json:"record_version"`
	ProcessedAt      time.Time     `json:"processed_at,omitempty"`
}

// SkipReason explains why a document was not treated.
type SkipReason string

// Reasons reported for non-treated documents.
const (
	ReasonInvalidFileType     SkipReason = "File type not valid"
	ReasonProcessingFailed    SkipReason = "Processing failed"
	ReasonUnsupportedMime     SkipReason = "Mime type not supported"
	ReasonExtractionFailed    SkipReason = "Text extraction failed"
	ReasonEmptyContent        SkipReason = "Empty content"
	ReasonUnsupportedLanguage SkipReason = "Language not supported"
)

// NonTreated records a document excluded from analysis.
type NonTreated struct {
	DocumentID string     `json:"document_id"`
	Reason     SkipReason `json:"reason"`
}

// Outcome is the result of processing one document: exactly one of Record and Skip is set.
type Outcome struct {
	Record *ClassificationRecord
	Skip   *NonTreated
}

// Treated returns an outcome carrying a record.
func Treated(rec *ClassificationRecord) Outcome {
	return Outcome{Record: rec}
}

// Skipped returns an outcome carrying a skip reason.
func Skipped(docID string, reason SkipReason) Outcome {
	return Outcome{Skip: &NonTreated{DocumentID: docID, Reason: reason}}
}

// BatchResult collects the outcomes of a batch into two sequences.
type BatchResult struct {
	Documents  []*ClassificationRecord `json:"documents"`
	NonTreated []NonTreated            `json:"non_treated"`
}

// Add appends an outcome to the matching sequence.
func (b *BatchResult) Add(o Outcome) {
	switch {
	case o.Record != nil:
		b.Documents = append(b.Documents, o.Record)
	case o.Skip != nil:
		b.NonTreated = append(b.NonTreated, *o.Skip)
	}
}

// NewBatchResult returns an empty result with non-nil slices so it encodes as [] not null.
func NewBatchResult() *BatchResult {
	return &BatchResult{
		Documents:  []*ClassificationRecord{},
		NonTreated: []NonTreated{},
	}
}
