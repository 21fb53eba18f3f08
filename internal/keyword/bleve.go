package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kakushi/internal/models"
)

const (
	defaultLimit     = 20
	fileNameBoost    = 2.0
	defaultFuzziness = 2
)

// recordDoc is the indexed projection of a record.
type recordDoc struct {
	Name           string   `json:"name"`
	FileName       string   `json:"file_name"`
	FileType       string   `json:"file_type"`
	Language       string   `json:"language"`
	SanitizedText  string   `json:"sanitized_text"`
	Types          []string `json:"types"`
	DetectionCount float64  `json:"detection_count"`
	PIIRiskMean    float64  `json:"pii_risk_mean"`
	GDPRRiskMean   float64  `json:"gdpr_risk_mean"`
}

// BleveIndex implements RecordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, recordMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryIndex returns an index that lives only in memory.
func NewMemoryIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(recordMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func recordMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) keeps placeholders like
	// <EMAIL_ADDRESS> and file names matchable word by word.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("sanitized_text", text)
	doc.AddFieldMappingsAt("file_name", text)

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	doc.AddFieldMappingsAt("name", stored)

	kw := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt("types", kw)
	doc.AddFieldMappingsAt("language", kw)
	doc.AddFieldMappingsAt("file_type", kw)

	num := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt("detection_count", num)
	doc.AddFieldMappingsAt("pii_risk_mean", num)
	doc.AddFieldMappingsAt("gdpr_risk_mean", num)

	im.AddDocumentMapping("record", doc)
	im.DefaultType = "record"
	im.DefaultMapping = doc
	return im
}

// IndexRecord indexes rec under its document id, replacing any previous version.
func (b *BleveIndex) IndexRecord(ctx context.Context, rec *models.ClassificationRecord) error {
	doc := recordDoc{
		Name: rec.FileName,
		// underscores as spaces so "patient_intake_form.pdf" matches "intake form"
		FileName:       strings.ReplaceAll(rec.FileName, "_", " "),
		FileType:       rec.FileType,
		Language:       rec.Language,
		SanitizedText:  rec.SanitizedText,
		Types:          rec.DetectedPIITypes,
		DetectionCount: float64(rec.DetectionCount),
		PIIRiskMean:    float64(rec.PIIRiskMean),
		GDPRRiskMean:   float64(rec.GDPRRiskMean),
	}
	if err := b.index.Index(rec.DocumentID, doc); err != nil {
		return fmt.Errorf("failed to index record %s: %w", rec.DocumentID, err)
	}
	return nil
}

// Search runs q and returns one page of hits with the total match count.
func (b *BleveIndex) Search(ctx context.Context, q Query) ([]*Result, uint64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	req := bleve.NewSearchRequestOptions(buildQuery(q), limit, q.Offset, false)
	req.Fields = []string{"name", "types"}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{
			ID:       hit.ID,
			Score:    hit.Score,
			FileName: fieldString(hit.Fields["name"]),
			Types:    fieldStrings(hit.Fields["types"]),
		}
	}
	return out, results.Total, nil
}

func buildQuery(q Query) blevequery.Query {
	var must []blevequery.Query
	if text := strings.TrimSpace(q.Text); text != "" {
		if q.Fuzzy {
			fuzziness := q.Fuzziness
			if fuzziness <= 0 {
				fuzziness = defaultFuzziness
			}
			must = append(must, bleve.NewDisjunctionQuery(
				buildFuzzyQuery(text, fuzziness, "sanitized_text", 1),
				buildFuzzyQuery(text, fuzziness, "file_name", fileNameBoost),
			))
		} else {
			content := bleve.NewMatchQuery(text)
			content.SetField("sanitized_text")
			name := bleve.NewMatchQuery(text)
			name.SetField("file_name")
			name.SetBoost(fileNameBoost)
			must = append(must, bleve.NewDisjunctionQuery(content, name))
		}
	}
	for _, t := range q.Types {
		tq := bleve.NewTermQuery(strings.ToUpper(strings.TrimSpace(t)))
		tq.SetField("types")
		must = append(must, tq)
	}
	if q.Language != "" {
		lq := bleve.NewTermQuery(strings.ToLower(q.Language))
		lq.SetField("language")
		must = append(must, lq)
	}
	if q.MinPIIRisk > 0 {
		lo, inclusive := float64(q.MinPIIRisk), true
		rq := bleve.NewNumericRangeInclusiveQuery(&lo, nil, &inclusive, nil)
		rq.SetField("pii_risk_mean")
		must = append(must, rq)
	}
	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per term, restricted to field.
func buildFuzzyQuery(text string, fuzziness int, field string, boost float64) blevequery.Query {
	terms := strings.Fields(strings.ToLower(text))
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func fieldString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// fieldStrings reads a stored multi-value field: bleve returns a plain string for one value.
func fieldStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Delete removes a record from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed records.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
