package ner

import "strings"

// DefaultLabels is the CoNLL-2003 label order used by common BERT NER exports.
var DefaultLabels = []string{"O", "B-MISC", "I-MISC", "B-PER", "I-PER", "B-ORG", "I-ORG", "B-LOC", "I-LOC"}

// groupBIO merges word-level BIO labels into entities. Only the first token of each word
// carries its label; scores of merged words are averaged.
func groupBIO(text string, words []span, labels []string, scores []float64) []Entity {
	runes := []rune(text)
	var out []Entity
	var cur *Entity
	n := 0
	finish := func() {
		if cur != nil {
			cur.Text = string(runes[cur.Start:cur.End])
			cur.Score /= float64(n)
			out = append(out, *cur)
			cur, n = nil, 0
		}
	}
	for i, w := range words {
		if i >= len(labels) {
			break
		}
		label := labels[i]
		if label == "" || label == "O" {
			finish()
			continue
		}
		base := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
		inside := strings.HasPrefix(label, "I-")
		if inside && cur != nil && cur.Label == base {
			cur.End = w.end
			cur.Score += scores[i]
			n++
			continue
		}
		finish()
		cur = &Entity{Label: base, Start: w.start, End: w.end, Score: scores[i]}
		n = 1
	}
	finish()
	return out
}
