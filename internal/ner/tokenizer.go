package ner

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const (
	tokenCLS = "[CLS]"
	tokenSEP = "[SEP]"
	tokenUNK = "[UNK]"
	tokenPAD = "[PAD]"
)

// span is a half-open range of character offsets.
type span struct {
	start, end int
}

// Encoding is a tokenized input: model inputs plus, for every token, the index of the word it
// belongs to (-1 for special and padding tokens).
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	WordIndex     []int
	Words         []span
}

// WordPieceTokenizer splits text into words, then words into vocabulary pieces
// (longest match first, continuation pieces prefixed with "##").
type WordPieceTokenizer struct {
	vocab map[string]int64
}

// LoadVocab reads a BERT vocab.txt file: one token per line, id = line number.
func LoadVocab(path string) (map[string]int64, error) {
	if path == "" {
		return nil, fmt.Errorf("vocab path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var id int64
	for sc.Scan() {
		vocab[strings.TrimRight(sc.Text(), "\r")] = id
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	return vocab, nil
}

// NewWordPieceTokenizer returns a tokenizer over vocab.
func NewWordPieceTokenizer(vocab map[string]int64) *WordPieceTokenizer {
	return &WordPieceTokenizer{vocab: vocab}
}

// Encode tokenizes text into exactly maxTokens positions, truncating and padding as needed.
func (t *WordPieceTokenizer) Encode(text string, maxTokens int) Encoding {
	if maxTokens < 2 {
		maxTokens = 2
	}
	runes := []rune(text)
	words := wordSpans(runes)
	enc := Encoding{
		InputIDs:      make([]int64, maxTokens),
		AttentionMask: make([]int64, maxTokens),
		TokenTypeIDs:  make([]int64, maxTokens),
		WordIndex:     make([]int, maxTokens),
		Words:         words,
	}
	for i := range enc.WordIndex {
		enc.WordIndex[i] = -1
		enc.InputIDs[i] = t.id(tokenPAD)
	}
	enc.InputIDs[0] = t.id(tokenCLS)
	enc.AttentionMask[0] = 1
	pos := 1
	for wi, w := range words {
		pieces := t.pieces(string(runes[w.start:w.end]))
		if pos+len(pieces) > maxTokens-1 {
			break
		}
		for _, p := range pieces {
			enc.InputIDs[pos] = p
			enc.AttentionMask[pos] = 1
			enc.WordIndex[pos] = wi
			pos++
		}
	}
	enc.InputIDs[pos] = t.id(tokenSEP)
	enc.AttentionMask[pos] = 1
	return enc
}

func (t *WordPieceTokenizer) id(tok string) int64 {
	if id, ok := t.vocab[tok]; ok {
		return id
	}
	return t.vocab[tokenUNK]
}

func (t *WordPieceTokenizer) pieces(word string) []int64 {
	r := []rune(word)
	var out []int64
	for start := 0; start < len(r); {
		end := len(r)
		var found int64 = -1
		for end > start {
			sub := string(r[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return []int64{t.id(tokenUNK)}
		}
		out = append(out, found)
		start = end
	}
	return out
}

// wordSpans splits runes into words: letter/digit runs, with every other
// non-space character as its own word.
func wordSpans(runes []rune) []span {
	var out []span
	start := -1
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-':
			if start < 0 {
				start = i
			}
		default:
			if start >= 0 {
				out = append(out, span{start, i})
				start = -1
			}
			if !unicode.IsSpace(r) {
				out = append(out, span{i, i + 1})
			}
		}
	}
	if start >= 0 {
		out = append(out, span{start, len(runes)})
	}
	return out
}
