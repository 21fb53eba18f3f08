package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()

	db := filepath.Join(dir, "records.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	idx := filepath.Join(dir, "bleve")
	if err := os.MkdirAll(filepath.Join(idx, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idx, "index_meta.json"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idx, "store", "root.bolt"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	usage, total, err := DiskUsage(db, idx, "", filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 3 {
		t.Fatalf("got %d entries, want 3", len(usage))
	}
	if usage[0].Bytes != 8 {
		t.Errorf("database with wal: got %d bytes, want 8", usage[0].Bytes)
	}
	if usage[1].Bytes != 3 {
		t.Errorf("index directory: got %d bytes, want 3", usage[1].Bytes)
	}
	if usage[2].Bytes != 0 {
		t.Errorf("missing path: got %d bytes, want 0", usage[2].Bytes)
	}
	if total != 11 {
		t.Errorf("total: got %d, want 11", total)
	}
}
