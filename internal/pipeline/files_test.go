package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kakushi/internal/fileid"
	"github.com/hyperjump/kakushi/internal/models"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{"txt", []string{".txt"}, true},
		{"html", []string{"txt", " HTML "}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		if got := extensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func TestDocumentFromFile(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "Note.TXT")
	if err := os.WriteFile(text, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	doc, err := DocumentFromFile(text)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != fileid.ForPath(text) {
		t.Errorf("id = %s", doc.ID)
	}
	if doc.Source.Content != "hello" || doc.Source.Encoding != "" || doc.Source.FileType != "txt" || doc.Source.FileName != "Note.TXT" {
		t.Errorf("source = %+v", doc.Source)
	}
	if doc.FileURI() != fileid.URI(text) {
		t.Errorf("uri = %s", doc.FileURI())
	}

	bin := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(bin, []byte{0x25, 0x50, 0xff, 0xfe}, 0600); err != nil {
		t.Fatal(err)
	}
	doc, err = DocumentFromFile(bin)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Source.Encoding != models.EncodingBase64 {
		t.Errorf("binary content should be base64-encoded, got encoding %q", doc.Source.Encoding)
	}
	raw, err := doc.Bytes()
	if err != nil || string(raw) != "\x25\x50\xff\xfe" {
		t.Errorf("decoded = %q, %v", raw, err)
	}

	if _, err := DocumentFromFile(dir); err == nil {
		t.Error("directory should be rejected")
	}
}

func TestCollectDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.md", "skip.go", filepath.Join("sub", "c.html")} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name), 0600); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := CollectDirectory(dir, []string{".txt", ".md", ".html"})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range docs {
		names = append(names, d.Source.FileName)
	}
	if len(names) != 3 || names[0] != "a.md" || names[1] != "b.txt" || names[2] != "c.html" {
		t.Errorf("collected %v", names)
	}

	if _, err := CollectDirectory(filepath.Join(dir, "b.txt"), nil); err == nil {
		t.Error("file path should be rejected")
	}
}
