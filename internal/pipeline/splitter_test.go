package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func joinChunks(t *testing.T, text string, s *Splitter) string {
	t.Helper()
	var b strings.Builder
	for i, c := range s.Split(text) {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if text[c.StartOffset:c.EndOffset] != c.Content {
			t.Errorf("chunk %d offsets [%d:%d] do not match content %q", i, c.StartOffset, c.EndOffset, c.Content)
		}
		if n := utf8.RuneCountInString(c.Content); n > s.MaxChunkSize {
			t.Errorf("chunk %d has %d characters, max %d", i, n, s.MaxChunkSize)
		}
		if c.Content == "" {
			t.Errorf("chunk %d is empty", i)
		}
		b.WriteString(c.Content)
	}
	return b.String()
}

func TestSplitter_Lossless(t *testing.T) {
	texts := []string{
		"short",
		"First paragraph with a few words.\n\nSecond paragraph, somewhat longer than the first one.\n\nThird.",
		"line one\nline two\nline three\nline four\nline five\n",
		"averyveryverylongwordwithoutanyseparatorsatallthatmustbesplitbycharacters",
		"Sentence one.Sentence two.Sentence three,with commas,and more",
		"これは日本語の文です。次の文です。最後の文、読点もあります。",
		"   leading and trailing spaces   ",
		"\n\n\n\nmany\n\n\n\nblank\n\n\n\nlines\n\n",
		strings.Repeat("lorem ipsum dolor sit amet ", 200),
	}
	for _, size := range []int{1, 3, 10, 25, 100, 10000} {
		s := NewSplitter(size)
		for _, text := range texts {
			if got := joinChunks(t, text, s); got != text {
				t.Errorf("size %d: chunks of %q rejoin to %q", size, text, got)
			}
		}
	}
}

func TestSplitter_PrefersParagraphs(t *testing.T) {
	text := "aaaa bbbb\n\ncccc dddd"
	chunks := NewSplitter(12).Split(text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Content != "aaaa bbbb\n\n" || chunks[1].Content != "cccc dddd" {
		t.Errorf("got %q and %q", chunks[0].Content, chunks[1].Content)
	}
	if chunks[1].StartOffset != 11 {
		t.Errorf("second chunk starts at %d, want 11", chunks[1].StartOffset)
	}
}

func TestSplitter_FallsBackToWords(t *testing.T) {
	text := "one two three four five six"
	chunks := NewSplitter(10).Split(text)
	want := []string{"one two ", "three ", "four five ", "six"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if c.Content != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Content, want[i])
		}
	}
}

func TestSplitter_CJKPunctuation(t *testing.T) {
	text := "最初の文です。二番目の文です。"
	chunks := NewSplitter(8).Split(text)
	if len(chunks) != 2 || chunks[0].Content != "最初の文です。" {
		t.Errorf("got %+v", chunks)
	}
}

func TestSplitter_EmptyAndUnbounded(t *testing.T) {
	if got := NewSplitter(10).Split(""); got != nil {
		t.Errorf("empty text: got %v", got)
	}
	chunks := NewSplitter(0).Split("anything at all")
	if len(chunks) != 1 || chunks[0].Content != "anything at all" {
		t.Errorf("unbounded splitter: got %+v", chunks)
	}
}
