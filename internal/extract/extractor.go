// Package extract detects the mime type of document content and extracts its plain text.
package extract

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Mime types handled by the extractor.
const (
	MimePlain = "text/plain"
	MimeHTML  = "text/html"
	MimePDF   = "application/pdf"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeXLSX  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePPTX  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeODP   = "application/vnd.oasis.opendocument.presentation"
	MimeODS   = "application/vnd.oasis.opendocument.spreadsheet"
)

// ErrUnsupportedMime is returned by ExtractMime for mime types the extractor does not handle.
var ErrUnsupportedMime = errors.New("unsupported mime type")

// mimeByExt refines generic sniffing results (octet-stream, zip, plain text) by file extension.
var mimeByExt = map[string]string{
	".txt":  MimePlain,
	".md":   MimePlain,
	".rst":  MimePlain,
	".csv":  MimePlain,
	".html": MimeHTML,
	".htm":  MimeHTML,
	".pdf":  MimePDF,
	".docx": MimeDOCX,
	".xlsx": MimeXLSX,
	".pptx": MimePPTX,
	".odp":  MimeODP,
	".ods":  MimeODS,
}

// Extractor extracts plain text from document content.
// Plain text and HTML are always supported; PDF and office formats only with extended formats.
type Extractor struct {
	extended bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithExtendedFormats enables PDF, DOCX, XLSX, PPTX, ODP and ODS extraction.
func WithExtendedFormats(enabled bool) Option {
	return func(e *Extractor) { e.extended = enabled }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectMime sniffs the mime type of content, without parameters. When sniffing is
// inconclusive the extension of fileName decides.
func (e *Extractor) DetectMime(content []byte, fileName string) string {
	detected := baseType(mimetype.Detect(content).String())
	switch detected {
	case "application/octet-stream", "application/zip", MimePlain, "":
		if byExt, ok := mimeByExt[strings.ToLower(filepath.Ext(fileName))]; ok {
			return byExt
		}
	}
	return detected
}

// Supported reports whether mimeType can be extracted with the current settings.
func (e *Extractor) Supported(mimeType string) bool {
	switch baseType(mimeType) {
	case MimePlain, MimeHTML:
		return true
	case MimePDF, MimeDOCX, MimeXLSX, MimePPTX, MimeODP, MimeODS:
		return e.extended
	default:
		return false
	}
}

// ExtractMime extracts the text of content according to mimeType.
func (e *Extractor) ExtractMime(content []byte, mimeType string) (string, error) {
	mt := baseType(mimeType)
	if !e.Supported(mt) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMime, mimeType)
	}
	switch mt {
	case MimeHTML:
		return extractHTML(content)
	case MimePDF:
		return extractPDF(content)
	case MimeDOCX:
		return extractDOCX(content)
	case MimeXLSX:
		return extractExcel(content)
	case MimePPTX:
		return extractPPTX(content)
	case MimeODP:
		return extractODF(content, "ODP")
	case MimeODS:
		return extractODF(content, "ODS")
	default:
		return extractPlain(content)
	}
}

func baseType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}
