// Package watcher watches inbox directories with fsnotify and hands settled files to the
// pipeline in batches.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	defaultQuiet    = 400 * time.Millisecond
	defaultMaxBatch = 100
)

// BatchFunc receives paths that stopped changing, in the order they were first seen.
type BatchFunc func(paths []string)

// RemoveFunc receives a path that was removed or renamed away.
type RemoveFunc func(path string)

// Inbox collects file events under its root directories. A batch is flushed once no
// event arrived for the quiet period, or as soon as it holds maxBatch paths.
type Inbox struct {
	roots      []string
	extensions []string
	recursive  bool
	onBatch    BatchFunc
	onRemove   RemoveFunc
	quiet      time.Duration
	maxBatch   int

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	pending   map[string]int // path -> arrival sequence
	seq       int
	timer     *time.Timer
	rootPaths map[string][]string // root -> watched directories under it
	done      chan struct{}
	started   bool
	stopOnce  sync.Once
	logger    *zap.Logger
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithQuietPeriod sets how long the inbox waits for events to stop before flushing.
func WithQuietPeriod(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.quiet = d
		}
	}
}

// WithMaxBatch caps the number of paths handed over in one batch.
func WithMaxBatch(n int) Option {
	return func(in *Inbox) {
		if n > 0 {
			in.maxBatch = n
		}
	}
}

// New creates an inbox over roots. extensions filters files (empty accepts all).
func New(roots, extensions []string, recursive bool, onBatch BatchFunc, onRemove RemoveFunc, opts ...Option) *Inbox {
	in := &Inbox{
		roots:      append([]string(nil), roots...),
		extensions: extensions,
		recursive:  recursive,
		onBatch:    onBatch,
		onRemove:   onRemove,
		quiet:      defaultQuiet,
		maxBatch:   defaultMaxBatch,
		pending:    make(map[string]int),
		rootPaths:  make(map[string][]string),
		done:       make(chan struct{}),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Start begins watching. Missing roots are created. It returns once the roots are
// registered; events are handled until ctx is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		in.mu.Unlock()
		return err
	}
	in.fsw = fsw
	in.started = true
	in.logger.Debug("inbox starting", zap.Strings("roots", in.roots), zap.Strings("extensions", in.extensions), zap.Bool("recursive", in.recursive))
	for _, root := range in.roots {
		if err := in.addRootLocked(root); err != nil {
			_ = in.fsw.Close()
			in.fsw = nil
			in.started = false
			in.mu.Unlock()
			return err
		}
	}
	events, errs := fsw.Events, fsw.Errors
	in.mu.Unlock()
	go in.run(ctx, events, errs)
	return nil
}

func (in *Inbox) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			in.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			in.logger.Debug("inbox watch error", zap.Error(err))
		}
	}
}

func (in *Inbox) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !in.underRoot(path) {
		return
	}
	in.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			in.handleNewDirectory(path)
			return
		}
		if matchExtension(path, in.extensions) {
			in.enqueue(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		in.dequeue(path)
		if matchExtension(path, in.extensions) && in.onRemove != nil {
			in.onRemove(path)
		}
	}
}

// handleNewDirectory watches a directory created (or moved) under a root and queues
// the files already inside it.
func (in *Inbox) handleNewDirectory(dir string) {
	in.mu.Lock()
	fsw, recursive := in.fsw, in.recursive
	in.mu.Unlock()
	if fsw == nil {
		return
	}
	if recursive {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if err := fsw.Add(path); err != nil {
					in.logger.Debug("inbox failed to watch directory", zap.String("path", path), zap.Error(err))
				}
			}
			return nil
		})
	} else if err := fsw.Add(dir); err != nil {
		in.logger.Debug("inbox failed to watch directory", zap.String("path", dir), zap.Error(err))
	}
	in.queueExisting(dir)
}

func (in *Inbox) underRoot(path string) bool {
	in.mu.Lock()
	roots := append([]string(nil), in.roots...)
	in.mu.Unlock()
	for _, root := range roots {
		if inDir(filepath.Clean(root), path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// enqueue adds path to the pending batch and restarts the quiet timer.
func (in *Inbox) enqueue(path string) {
	in.mu.Lock()
	if _, ok := in.pending[path]; !ok {
		in.seq++
		in.pending[path] = in.seq
	}
	full := len(in.pending) >= in.maxBatch
	if in.timer != nil {
		in.timer.Stop()
	}
	if !full {
		in.timer = time.AfterFunc(in.quiet, in.Flush)
	}
	in.mu.Unlock()
	if full {
		in.Flush()
	}
}

func (in *Inbox) dequeue(path string) {
	in.mu.Lock()
	delete(in.pending, path)
	in.mu.Unlock()
}

// Flush hands the pending paths to the batch callback now. It is a no-op when
// nothing is pending.
func (in *Inbox) Flush() {
	in.mu.Lock()
	if in.timer != nil {
		in.timer.Stop()
		in.timer = nil
	}
	batch := drain(in.pending)
	in.pending = make(map[string]int)
	onBatch := in.onBatch
	in.mu.Unlock()
	if len(batch) == 0 || onBatch == nil {
		return
	}
	in.logger.Debug("inbox flushing batch", zap.Int("files", len(batch)))
	onBatch(batch)
}

func drain(pending map[string]int) []string {
	out := make([]string, 0, len(pending))
	for p := range pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return pending[out[i]] < pending[out[j]] })
	return out
}

// Pending returns the number of paths waiting for the next flush.
func (in *Inbox) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// AddDirectory starts watching root. When syncExisting is set, files already in it are
// queued.
func (in *Inbox) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	in.mu.Lock()
	if in.fsw == nil {
		in.mu.Unlock()
		return nil
	}
	for _, r := range in.roots {
		if filepath.Clean(r) == abs {
			in.mu.Unlock()
			return nil
		}
	}
	if err := in.addRootLocked(abs); err != nil {
		in.mu.Unlock()
		return err
	}
	in.roots = append(in.roots, abs)
	in.mu.Unlock()
	in.logger.Debug("inbox directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go in.queueExisting(abs)
	}
	return nil
}

func (in *Inbox) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var paths []string
	if in.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if err := in.fsw.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := in.fsw.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	in.rootPaths[root] = paths
	return nil
}

// queueExisting queues every matching file under dir.
func (in *Inbox) queueExisting(dir string) {
	in.mu.Lock()
	recursive := in.recursive
	in.mu.Unlock()
	in.logger.Debug("inbox queueing existing files", zap.String("dir", dir))
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && matchExtension(path, in.extensions) {
			in.enqueue(filepath.Clean(path))
		}
		return nil
	})
}

// SyncExisting queues the files already present in every root. Call it after Start.
func (in *Inbox) SyncExisting() {
	for _, root := range in.Directories() {
		in.queueExisting(root)
	}
}

// RemoveDirectory stops watching root. Pending paths under it are dropped; stored
// records are kept.
func (in *Inbox) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.fsw == nil {
		return nil
	}
	idx := -1
	for i, r := range in.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range in.rootPaths[abs] {
		_ = in.fsw.Remove(p)
	}
	delete(in.rootPaths, abs)
	in.roots = append(in.roots[:idx], in.roots[idx+1:]...)
	for p := range in.pending {
		if inDir(abs, p) {
			delete(in.pending, p)
		}
	}
	in.logger.Debug("inbox directory removed", zap.String("path", abs))
	return nil
}

// Directories returns a copy of the watched roots.
func (in *Inbox) Directories() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.roots...)
}

// Stop releases the watch and discards pending paths without flushing them.
func (in *Inbox) Stop() {
	in.mu.Lock()
	if !in.started || in.fsw == nil {
		in.mu.Unlock()
		return
	}
	if in.timer != nil {
		in.timer.Stop()
		in.timer = nil
	}
	in.pending = make(map[string]int)
	_ = in.fsw.Close()
	in.fsw = nil
	in.started = false
	in.mu.Unlock()
	in.stopOnce.Do(func() { close(in.done) })
}
