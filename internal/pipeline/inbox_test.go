package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kakushi/internal/fileid"
	"github.com/hyperjump/kakushi/internal/jobs"
	"github.com/hyperjump/kakushi/internal/storage"
)

func TestProcessFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "memo.txt")
	short := filepath.Join(dir, "short.txt")
	if err := os.WriteFile(good, []byte(fiftyWords), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(short, []byte("hello there"), 0600); err != nil {
		t.Fatal(err)
	}
	tracker := jobs.NewMemoryTracker()
	p := NewProcessor(testPipelineConfig(), localAnalyzer(), nil, nil, nil, WithTracker(tracker))

	job, res, err := p.ProcessFiles(context.Background(), []string{good, filepath.Join(dir, "gone.txt"), short}, Options{Language: "en"})
	if err != nil {
		t.Fatal(err)
	}
	if job.Total != 2 || job.State != jobs.StateDone {
		t.Errorf("job = %+v", job)
	}
	if len(res.Documents) != 1 || res.Documents[0].DocumentID != fileid.ForPath(good) {
		t.Errorf("documents = %+v", res.Documents)
	}
	if len(res.NonTreated) != 1 || res.NonTreated[0].DocumentID != fileid.ForPath(short) {
		t.Errorf("non-treated = %+v", res.NonTreated)
	}
	if _, err := tracker.Get(context.Background(), job.ID); err != nil {
		t.Errorf("job not tracked: %v", err)
	}
}

func TestForget(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	index := &recordingIndex{}
	p := NewProcessor(testPipelineConfig(), localAnalyzer(), nil, nil, nil, WithStorage(store), WithIndex(index))

	path := filepath.Join(dir, "memo.txt")
	if err := os.WriteFile(path, []byte(fiftyWords), 0600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, _, err := p.ProcessFiles(ctx, []string{path}, Options{Language: "en"}); err != nil {
		t.Fatal(err)
	}
	id := fileid.ForPath(path)
	if _, err := store.GetRecord(ctx, id); err != nil {
		t.Fatalf("record not stored: %v", err)
	}

	if err := p.Forget(ctx, path); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetRecord(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("record still present: %v", err)
	}
	if len(index.deleted) != 1 || index.deleted[0] != id {
		t.Errorf("index deletes = %v", index.deleted)
	}

	if err := p.Forget(ctx, filepath.Join(dir, "never.txt")); err != nil {
		t.Errorf("forgetting an unknown file: %v", err)
	}
}
