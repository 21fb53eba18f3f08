package fileid

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestForPath(t *testing.T) {
	id1 := ForPath("/inbox/report.txt")
	id2 := ForPath("/inbox/report.txt")
	if id1 != id2 {
		t.Errorf("same path should give same id: %q vs %q", id1, id2)
	}
	parsed, err := uuid.Parse(id1)
	if err != nil {
		t.Fatalf("id is not a uuid: %q", id1)
	}
	if parsed.Version() != 5 {
		t.Errorf("version: got %d, want 5", parsed.Version())
	}
}

func TestForPath_differentPaths(t *testing.T) {
	if ForPath("/inbox/a.txt") == ForPath("/inbox/b.txt") {
		t.Error("different paths should give different ids")
	}
}

func TestForPath_cleaned(t *testing.T) {
	want := ForPath("/inbox/sub")
	for _, p := range []string{"/inbox/sub/", "/inbox/./sub", "/inbox/x/../sub"} {
		if got := ForPath(p); got != want {
			t.Errorf("ForPath(%q) = %q, want %q", p, got, want)
		}
	}
}

func TestURI(t *testing.T) {
	abs, _ := filepath.Abs("notes.md")
	got := URI(abs)
	if got != "file://"+filepath.ToSlash(abs) {
		t.Errorf("URI(%q) = %q", abs, got)
	}
}

func TestForURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"file:///inbox/a.txt", ForPath("/inbox/a.txt")},
		{"s3://bucket/a.txt", ""},
		{"file://", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ForURI(tt.uri); got != tt.want {
			t.Errorf("ForURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestPath_roundTrip(t *testing.T) {
	p, ok := Path(URI("/inbox/deep/file.pdf"))
	if !ok {
		t.Fatal("expected file uri")
	}
	if p != filepath.FromSlash("/inbox/deep/file.pdf") {
		t.Errorf("Path: got %q", p)
	}
}
