package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// batchRecorder collects flushed batches and removed paths.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]string
	removed []string
}

func (r *batchRecorder) onBatch(paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, paths)
	r.mu.Unlock()
}

func (r *batchRecorder) onRemove(path string) {
	r.mu.Lock()
	r.removed = append(r.removed, path)
	r.mu.Unlock()
}

func (r *batchRecorder) files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *batchRecorder) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestInbox_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	in := New(nil, []string{".txt"}, true, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	if err := in.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := in.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := in.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	if err := in.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(in.Directories()) != 0 {
		t.Errorf("after remove: %v", in.Directories())
	}
}

func TestInbox_BatchesSettledFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &batchRecorder{}
	in := New([]string{dir}, []string{".txt"}, true, rec.onBatch, rec.onRemove, WithQuietPeriod(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	for _, name := range []string{"a.txt", "b.txt", "skip.bin"} {
		if err := writeFile(filepath.Join(dir, name), "hello"); err != nil {
			t.Fatal(err)
		}
	}
	if !waitFor(t, 3*time.Second, func() bool { return len(rec.files()) >= 2 }) {
		t.Fatalf("expected two files flushed, got %v", rec.files())
	}
	for _, p := range rec.files() {
		if strings.HasSuffix(p, "skip.bin") {
			t.Error("skip.bin should be filtered by extension")
		}
	}
}

func TestInbox_ReportsRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	if err := writeFile(path, "bye"); err != nil {
		t.Fatal(err)
	}
	rec := &batchRecorder{}
	in := New([]string{dir}, []string{".txt"}, true, rec.onBatch, rec.onRemove)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ok := waitFor(t, 2*time.Second, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.removed) == 1
	})
	if !ok {
		t.Fatalf("expected remove callback, got %v", rec.removed)
	}
	if rec.removed[0] != path {
		t.Errorf("removed = %v", rec.removed)
	}
}

func TestInbox_MaxBatchFlushesEarly(t *testing.T) {
	rec := &batchRecorder{}
	in := New(nil, nil, true, rec.onBatch, nil, WithMaxBatch(2), WithQuietPeriod(time.Hour))
	in.enqueue("/inbox/a.txt")
	if rec.batchCount() != 0 {
		t.Fatal("flushed before the batch was full")
	}
	in.enqueue("/inbox/b.txt")
	if rec.batchCount() != 1 {
		t.Fatalf("expected a flush at max batch, got %d batches", rec.batchCount())
	}
	if in.Pending() != 0 {
		t.Errorf("pending after flush: %d", in.Pending())
	}
}

func TestInbox_FlushKeepsArrivalOrder(t *testing.T) {
	rec := &batchRecorder{}
	in := New(nil, nil, true, rec.onBatch, nil, WithQuietPeriod(time.Hour))
	for _, p := range []string{"/inbox/c.txt", "/inbox/a.txt", "/inbox/c.txt", "/inbox/b.txt"} {
		in.enqueue(p)
	}
	in.dequeue("/inbox/a.txt")
	in.Flush()
	got := rec.files()
	want := []string{"/inbox/c.txt", "/inbox/b.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
	in.Flush()
	if rec.batchCount() != 1 {
		t.Errorf("empty flush should not call the batch func")
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestInbox_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	rec := &batchRecorder{}
	in := New([]string{dir}, []string{".txt"}, true, rec.onBatch, nil, WithQuietPeriod(time.Hour))
	if err := in.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	in.SyncExisting()
	in.Flush()
	files := rec.files()
	if len(files) != 1 || !strings.HasSuffix(files[0], "a.txt") {
		t.Errorf("expected a.txt only, got %v", files)
	}
}

func TestInbox_Start_createsMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	in := New([]string{root}, []string{".txt"}, true, nil, nil)
	if err := in.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestInbox_NewDirectoryQueuesNestedFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &batchRecorder{}
	in := New([]string{dir}, []string{".txt", ".md"}, true, rec.onBatch, nil, WithQuietPeriod(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer in.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.txt"), "deep content"); err != nil {
		t.Fatal(err)
	}
	found := waitFor(t, 3*time.Second, func() bool {
		for _, p := range rec.files() {
			if strings.HasSuffix(p, "deep.txt") {
				return true
			}
		}
		return false
	})
	if !found {
		t.Errorf("expected deep.txt in a batch, got %v", rec.files())
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
