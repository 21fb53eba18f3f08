// Package models defines core data structures for ingested documents, entity hits,
// engine results, and classification records.
package models

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodingBase64 marks Source.Content as base64-encoded bytes.
const EncodingBase64 = "base64"

// SourceFS locates the document on a file system or object store.
type SourceFS struct {
	URI string `json:"uri,omitempty"`
}

// Source carries the raw document payload and its metadata.
type Source struct {
	Content  string    `json:"content"`
	Encoding string    `json:"encoding,omitempty"`
	FileType string    `json:"file_type"`
	FileName string    `json:"file_name"`
	MimeType string    `json:"mime_type,omitempty"` // overrides content sniffing when set
	FS       *SourceFS `json:"fs,omitempty"`
}

// DocumentInput is one document submitted for classification.
type DocumentInput struct {
	ID     string `json:"id,omitempty"`
	Source Source `json:"source"`
}

// NormalizedFileType returns the file type lowercased and without a leading dot.
func (d *DocumentInput) NormalizedFileType() string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d.Source.FileType), "."))
}

// FileURI returns the fs.uri of the source, or "" when absent.
func (d *DocumentInput) FileURI() string {
	if d.Source.FS == nil {
		return ""
	}
	return d.Source.FS.URI
}

// Bytes returns the decoded content. Content is decoded from base64 only when the
// source declares EncodingBase64; otherwise it is returned as-is.
func (d *DocumentInput) Bytes() ([]byte, error) {
	switch strings.ToLower(d.Source.Encoding) {
	case "", "text", "utf-8", "utf8":
		return []byte(d.Source.Content), nil
	case EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(d.Source.Content))
		if err != nil {
			return nil, fmt.Errorf("decode base64 content: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", d.Source.Encoding)
	}
}

// Chunk is a bounded, non-overlapping substring of a document's text.
// Offsets are byte offsets into the text the chunk was cut from.
type Chunk struct {
	Index       int    `json:"index"`
	Content     string `json:"content"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// Language is a detected (or overridden) document language.
type Language struct {
	Code       string  `json:"code"`
	Confidence float64 `json:"confidence"`
}
