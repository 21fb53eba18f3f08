// Package pipeline turns ingested documents into classification records: it normalizes
// and splits text, analyzes each chunk, filters and post-processes the hits, and merges
// chunk results into one record per document.
package pipeline

import (
	"strings"
	"unicode"
)

// Normalize lowercases text, replaces every non-letter with a space and collapses
// whitespace. The result feeds language detection and stopword filtering only.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := true
	for _, r := range text {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
			wasSpace = false
			continue
		}
		if !wasSpace {
			b.WriteByte(' ')
			wasSpace = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}
