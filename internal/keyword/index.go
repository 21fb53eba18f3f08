// Package keyword provides keyword search over processed classification records.
package keyword

import (
	"context"

	"github.com/hyperjump/kakushi/internal/models"
)

// Query selects records. All set criteria must match; an empty query matches every record.
type Query struct {
	// Text is matched against the sanitized text and the file name.
	Text string `json:"query,omitempty"`
	// Types lists entity types the record must all contain.
	Types []string `json:"types,omitempty"`
	// Language restricts results to one ISO 639-1 code.
	Language string `json:"language,omitempty"`
	// MinPIIRisk is the inclusive lower bound of pii_risk_mean. Zero disables it.
	MinPIIRisk int `json:"min_pii_risk,omitempty"`
	// Fuzzy enables typo-tolerant text matching with the given edit distance (1 or 2).
	Fuzzy     bool `json:"fuzzy,omitempty"`
	Fuzziness int  `json:"fuzziness,omitempty"`
	Limit     int  `json:"limit,omitempty"`
	Offset    int  `json:"offset,omitempty"`
}

// Result is a single record search hit.
type Result struct {
	ID       string   `json:"document_id"`
	Score    float64  `json:"score"`
	FileName string   `json:"file_name,omitempty"`
	Types    []string `json:"detected_pii_types,omitempty"`
}

// RecordIndex indexes and searches classification records.
type RecordIndex interface {
	IndexRecord(ctx context.Context, rec *models.ClassificationRecord) error
	Search(ctx context.Context, q Query) ([]*Result, uint64, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}
