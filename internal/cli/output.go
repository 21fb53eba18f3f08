// Package cli renders batch results, jobs and search hits for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kakushi/internal/jobs"
	"github.com/hyperjump/kakushi/internal/keyword"
	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per document.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const excerptLen = 200

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteBatchResult writes the records and non-treated documents of a batch.
func WriteBatchResult(w io.Writer, res *models.BatchResult, format OutputFormat) error {
	if res == nil {
		res = models.NewBatchResult()
	}
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		for _, rec := range res.Documents {
			fmt.Fprintf(w, "%s\t%s\t%s\tdetections=%d\tpii=%d\tgdpr=%d\t%s\n",
				rec.DocumentID, rec.FileName, rec.Language, rec.DetectionCount,
				rec.PIIRiskMean, rec.GDPRRiskMean, strings.Join(rec.DetectedPIITypes, ","))
		}
		for _, nt := range res.NonTreated {
			fmt.Fprintf(w, "%s\tskipped\t%s\n", nt.DocumentID, nt.Reason)
		}
		return nil
	default:
		writeBatchText(w, res)
		return nil
	}
}

func writeBatchText(w io.Writer, res *models.BatchResult) {
	total := len(res.Documents) + len(res.NonTreated)
	fmt.Fprintf(w, "\nTreated %d of %d documents (%d not treated)\n\n", len(res.Documents), total, len(res.NonTreated))
	for _, rec := range res.Documents {
		writeRecord(w, rec)
	}
	if len(res.NonTreated) > 0 {
		fmt.Fprintln(w, "--- Not treated ---")
		for _, nt := range res.NonTreated {
			fmt.Fprintf(w, "%s: %s\n", nt.DocumentID, nt.Reason)
		}
	}
}

func writeRecord(w io.Writer, rec *models.ClassificationRecord) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	name := rec.FileName
	if name == "" {
		name = rec.DocumentID
	}
	fmt.Fprintf(w, "%s [%s]\n", name, rec.Language)
	fmt.Fprintf(w, "ID: %s\n", rec.DocumentID)
	fmt.Fprintf(w, "Detections: %d | PII risk: mean %d, median %d | GDPR risk: mean %d\n",
		rec.DetectionCount, rec.PIIRiskMean, rec.PIIRiskMedian, rec.GDPRRiskMean)
	if len(rec.DetectedPIITypes) > 0 {
		fmt.Fprintf(w, "Types: %s\n", typeFrequencies(rec))
	}
	if rec.SanitizedText != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(rec.SanitizedText, excerptLen))
	}
	fmt.Fprintln(w)
}

// typeFrequencies renders "TYPE=n" pairs in detection order.
func typeFrequencies(rec *models.ClassificationRecord) string {
	parts := make([]string, 0, len(rec.DetectedPIITypes))
	for _, t := range rec.DetectedPIITypes {
		parts = append(parts, fmt.Sprintf("%s=%d", t, rec.DetectedPIITypeFrequencies[t]))
	}
	return strings.Join(parts, ", ")
}

// WriteJob writes the progress of one job.
func WriteJob(w io.Writer, job *jobs.Job, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, job)
	}
	fmt.Fprintf(w, "job %s: %s (%s)", job.ID, job.Status, job.State)
	if job.Failed > 0 {
		fmt.Fprintf(w, ", %d not treated", job.Failed)
	}
	if job.Error != "" {
		fmt.Fprintf(w, ", error: %s", job.Error)
	}
	fmt.Fprintln(w)
	return nil
}

// SearchOutput is the JSON shape of search results.
type SearchOutput struct {
	Query   string            `json:"query"`
	Total   uint64            `json:"total"`
	Results []*keyword.Result `json:"results"`
}

// WriteSearchResults writes record search hits.
func WriteSearchResults(w io.Writer, out *SearchOutput, format OutputFormat) error {
	if out.Results == nil {
		out.Results = []*keyword.Result{}
	}
	switch format {
	case OutputJSON:
		return writeJSON(w, out)
	case OutputCompact:
		for _, r := range out.Results {
			fmt.Fprintf(w, "%s\t%.4f\t%s\t%s\n", r.ID, r.Score, r.FileName, strings.Join(r.Types, ","))
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d records for %q\n\n", out.Total, out.Query)
		for i, r := range out.Results {
			fmt.Fprintf(w, "%d. %s (score %.4f)\n", i+1, r.ID, r.Score)
			if r.FileName != "" {
				fmt.Fprintf(w, "   File: %s\n", r.FileName)
			}
			if len(r.Types) > 0 {
				fmt.Fprintf(w, "   Types: %s\n", strings.Join(r.Types, ", "))
			}
		}
		return nil
	}
}
