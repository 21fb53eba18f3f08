package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kakushi/internal/models"
)

// DefaultSeparators is the split hierarchy: paragraphs, lines, words, then sentence
// and CJK/full-width punctuation. The empty separator splits per character.
var DefaultSeparators = []string{
	"\n\n",
	"\n",
	" ",
	".",
	",",
	"\u200b", // zero-width space
	"\uff0c", // full-width comma
	"\u3001", // ideographic comma
	"\uff0e", // full-width full stop
	"\u3002", // ideographic full stop
	"",
}

// Splitter cuts text into chunks of at most MaxChunkSize characters without overlap.
// Concatenating the chunks of Split reproduces the input exactly.
type Splitter struct {
	MaxChunkSize int
	Separators   []string
}

// NewSplitter returns a splitter using DefaultSeparators.
func NewSplitter(maxChunkSize int) *Splitter {
	return &Splitter{MaxChunkSize: maxChunkSize, Separators: DefaultSeparators}
}

// Split returns the chunks of text with byte offsets into text. Empty text yields no chunks.
func (s *Splitter) Split(text string) []models.Chunk {
	if text == "" {
		return nil
	}
	var pieces []string
	if s.MaxChunkSize <= 0 {
		pieces = []string{text}
	} else {
		pieces = s.split(text, s.Separators)
	}
	chunks := make([]models.Chunk, 0, len(pieces))
	offset := 0
	for i, p := range pieces {
		chunks = append(chunks, models.Chunk{
			Index:       i,
			Content:     p,
			StartOffset: offset,
			EndOffset:   offset + len(p),
		})
		offset += len(p)
	}
	return chunks
}

func (s *Splitter) split(text string, separators []string) []string {
	if utf8.RuneCountInString(text) <= s.MaxChunkSize {
		return []string{text}
	}
	sep, rest := "", []string(nil)
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep, rest = candidate, separators[i+1:]
			break
		}
	}
	if sep == "" {
		return splitRunes(text, s.MaxChunkSize)
	}

	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, piece := range strings.SplitAfter(text, sep) {
		if piece == "" {
			continue
		}
		n := utf8.RuneCountInString(piece)
		if n > s.MaxChunkSize {
			flush()
			out = append(out, s.split(piece, rest)...)
			continue
		}
		if curLen+n > s.MaxChunkSize {
			flush()
		}
		cur.WriteString(piece)
		curLen += n
	}
	flush()
	return out
}

func splitRunes(text string, size int) []string {
	var out []string
	for len(text) > 0 {
		i, n := 0, 0
		for i < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[i:])
			i += w
			n++
		}
		out = append(out, text[:i])
		text = text[i:]
	}
	return out
}
