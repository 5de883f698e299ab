// Package watcher watches inbox directories and keeps the index in step with the PDFs
// dropped into or removed from them.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/chunkid"
	"github.com/hyperjump/manabu/internal/extract"
	"github.com/hyperjump/manabu/internal/indexer"
)

const defaultDebounce = 500 * time.Millisecond

// Indexer is the part of the indexer the inbox drives.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (*indexer.Result, error)
	Delete(ctx context.Context, name string) (*indexer.DeleteResult, error)
}

// Inbox watches directories for PDF files. Created or rewritten files are indexed once the
// debounce interval passes without further writes; removed or renamed-away files are deleted
// from the index by document name.
type Inbox struct {
	indexer   Indexer
	recursive bool
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	ctx     context.Context
	roots   map[string][]string // root -> directories added to fsw
	order   []string
	pending map[string]*time.Timer
	done    chan struct{}
	stop    sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithDebounce sets the quiet period before a written file is indexed.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// WithRecursive watches subdirectories of every root.
func WithRecursive(recursive bool) Option {
	return func(in *Inbox) { in.recursive = recursive }
}

// New creates an inbox bound to idx. Call Start before adding directories.
func New(idx Indexer, opts ...Option) *Inbox {
	in := &Inbox{
		indexer:  idx,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		roots:    make(map[string][]string),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Start opens the fsnotify watcher, adds roots and processes events until ctx is cancelled
// or Stop is called. Missing roots are created.
func (in *Inbox) Start(ctx context.Context, roots ...string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.fsw = fsw
	in.ctx = ctx
	in.mu.Unlock()
	for _, root := range roots {
		if err := in.AddDirectory(root, false); err != nil {
			in.Stop()
			return err
		}
	}
	in.logger.Info("inbox watching", zap.Strings("directories", in.Directories()), zap.Bool("recursive", in.recursive))
	go in.loop(ctx, fsw)
	return nil
}

func (in *Inbox) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			in.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			in.logger.Warn("inbox watch error", zap.Error(err))
		}
	}
}

func (in *Inbox) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	in.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if in.recursive {
				in.watchTree(path)
			}
			return
		}
		if extract.IsSupported(path) {
			in.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		in.cancel(path)
		if extract.IsSupported(path) {
			go in.remove(path)
		}
	}
}

// watchTree adds a directory created under a recursive root and indexes what it already holds.
func (in *Inbox) watchTree(dir string) {
	in.mu.Lock()
	root := in.rootOf(dir)
	if in.fsw == nil || root == "" {
		in.mu.Unlock()
		return
	}
	added := in.addTreeLocked(dir)
	in.roots[root] = append(in.roots[root], added...)
	in.mu.Unlock()
	go in.Sync(dir)
}

func (in *Inbox) rootOf(path string) string {
	for root := range in.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

func (in *Inbox) addTreeLocked(dir string) []string {
	var added []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && !in.recursive {
			return filepath.SkipDir
		}
		if err := in.fsw.Add(p); err != nil {
			in.logger.Warn("inbox failed to watch directory", zap.String("path", p), zap.Error(err))
			return nil
		}
		added = append(added, p)
		return nil
	})
	return added
}

func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		in.mu.Unlock()
		in.index(path)
	})
}

func (in *Inbox) cancel(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
		delete(in.pending, path)
	}
}

func (in *Inbox) runContext() context.Context {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.ctx == nil {
		return context.Background()
	}
	return in.ctx
}

func (in *Inbox) index(path string) {
	res, err := in.indexer.IndexFile(in.runContext(), path)
	if err != nil {
		in.logger.Warn("inbox indexing failed", zap.String("path", path), zap.Error(err))
		return
	}
	in.logger.Info("inbox indexed", zap.String("document", res.Document), zap.Int("chunks", res.Chunks),
		zap.Bool("already_indexed", res.AlreadyIndexed))
}

func (in *Inbox) remove(path string) {
	name := chunkid.DocumentName(path)
	res, err := in.indexer.Delete(in.runContext(), name)
	if err != nil {
		in.logger.Debug("inbox delete skipped", zap.String("document", name), zap.Error(err))
		return
	}
	in.logger.Info("inbox removed", zap.String("document", name), zap.Int("vectors", res.Vectors))
}

// AddDirectory starts watching root, creating it if needed. With syncExisting the PDFs
// already present are indexed in the background.
func (in *Inbox) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}
	in.mu.Lock()
	if in.fsw == nil {
		in.mu.Unlock()
		return nil
	}
	if _, ok := in.roots[abs]; ok {
		in.mu.Unlock()
		return nil
	}
	if err := in.fsw.Add(abs); err != nil {
		in.mu.Unlock()
		return err
	}
	added := []string{abs}
	if in.recursive {
		added = in.addTreeLocked(abs)
	}
	in.roots[abs] = added
	in.order = append(in.order, abs)
	in.mu.Unlock()

	in.logger.Debug("inbox directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go in.Sync(abs)
	}
	return nil
}

// RemoveDirectory stops watching root. Indexed documents are kept.
func (in *Inbox) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	in.mu.Lock()
	defer in.mu.Unlock()
	paths, ok := in.roots[abs]
	if !ok {
		return nil
	}
	if in.fsw != nil {
		for _, p := range paths {
			_ = in.fsw.Remove(p)
		}
	}
	delete(in.roots, abs)
	for i, r := range in.order {
		if r == abs {
			in.order = append(in.order[:i], in.order[i+1:]...)
			break
		}
	}
	in.logger.Debug("inbox directory removed", zap.String("path", abs))
	return nil
}

// Directories returns the watched roots in the order they were added.
func (in *Inbox) Directories() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.order...)
}

// Sync indexes every PDF currently under dir, or under every root when dir is empty.
// Already indexed documents are skipped by the indexer.
func (in *Inbox) Sync(dir string) {
	dirs := []string{dir}
	if dir == "" {
		dirs = in.Directories()
	}
	for _, d := range dirs {
		_ = filepath.WalkDir(d, func(p string, e fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if e.IsDir() {
				if p != d && !in.recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if extract.IsSupported(p) {
				in.index(p)
			}
			return nil
		})
	}
}

// Stop stops watching and cancels pending indexing.
func (in *Inbox) Stop() {
	in.mu.Lock()
	for path, t := range in.pending {
		t.Stop()
		delete(in.pending, path)
	}
	fsw := in.fsw
	in.fsw = nil
	in.mu.Unlock()
	if fsw != nil {
		_ = fsw.Close()
	}
	in.stop.Do(func() { close(in.done) })
}
