package models

import (
	"sort"
	"strings"
)

// Summarize builds the detection summary of text from its hits: each hit span is replaced
// by "<ENTITY_TYPE>" in the sanitized text. Overlapping spans keep the earliest one.
// Offsets are character offsets; out-of-range spans are clamped.
func Summarize(text string, hits []EntityHit) DetectionSummary {
	sum := DetectionSummary{
		DetectionCount:             len(hits),
		DetectedPIITypes:           []string{},
		DetectedPIITypeFrequencies: make(map[string]int),
	}
	for _, h := range hits {
		if _, seen := sum.DetectedPIITypeFrequencies[h.EntityType]; !seen {
			sum.DetectedPIITypes = append(sum.DetectedPIITypes, h.EntityType)
		}
		sum.DetectedPIITypeFrequencies[h.EntityType]++
	}

	ordered := append([]EntityHit(nil), hits...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })
	runes := []rune(text)
	var b strings.Builder
	pos := 0
	for _, h := range ordered {
		start, end := clamp(h.Start, len(runes)), clamp(h.End, len(runes))
		if start < pos || end <= start {
			continue
		}
		b.WriteString(string(runes[pos:start]))
		b.WriteString("<" + h.EntityType + ">")
		pos = end
	}
	b.WriteString(string(runes[pos:]))
	sum.SanitizedText = b.String()
	return sum
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
