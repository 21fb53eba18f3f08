// Package langdetect detects the language of extracted text and counts content words
// using the stopword lists shipped with bleve's language analyzers.
package langdetect

import (
	"strings"
	"sync"

	"github.com/abadojack/whatlanggo"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/analysis/lang/nl"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/hyperjump/kakushi/internal/models"
)

// stopMaps maps ISO 639-1 codes to bleve stop token map names.
var stopMaps = map[string]string{
	"en": en.StopName,
	"fr": fr.StopName,
	"de": de.StopName,
	"es": es.StopName,
	"it": it.StopName,
	"nl": nl.StopName,
	"pt": pt.StopName,
}

// Detector detects languages and filters stopwords for a fixed set of supported languages.
type Detector struct {
	supported map[string]bool

	mu    sync.Mutex
	cache *registry.Cache
	stops map[string]analysis.TokenMap
}

// New returns a detector that accepts the given ISO 639-1 codes.
func New(languages []string) *Detector {
	d := &Detector{
		supported: make(map[string]bool, len(languages)),
		cache:     registry.NewCache(),
		stops:     make(map[string]analysis.TokenMap),
	}
	for _, l := range languages {
		d.supported[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return d
}

// Detect returns the language of text as an ISO 639-1 code with confidence.
// Code is empty when the language cannot be determined.
func (d *Detector) Detect(text string) models.Language {
	info := whatlanggo.Detect(text)
	return models.Language{Code: info.Lang.Iso6391(), Confidence: info.Confidence}
}

// Supported reports whether code is one of the configured languages.
func (d *Detector) Supported(code string) bool {
	return d.supported[strings.ToLower(code)]
}

// ContentWords returns the words of normalized text that are not stopwords in lang.
// Languages without a stopword list keep every word.
func (d *Detector) ContentWords(normalized, lang string) []string {
	words := strings.Fields(normalized)
	stops := d.stopwords(lang)
	if stops == nil {
		return words
	}
	out := words[:0:0]
	for _, w := range words {
		if !stops[w] {
			out = append(out, w)
		}
	}
	return out
}

func (d *Detector) stopwords(lang string) analysis.TokenMap {
	name, ok := stopMaps[strings.ToLower(lang)]
	if !ok {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if tm, ok := d.stops[name]; ok {
		return tm
	}
	tm, err := d.cache.TokenMapNamed(name)
	if err != nil {
		return nil
	}
	d.stops[name] = tm
	return tm
}
