package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/r-lsp-core/internal/config"
	"github.com/standardbeagle/r-lsp-core/internal/debug"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// ChangeOp identifies what happened to a watched file.
type ChangeOp int

const (
	// ChangeWritten covers both a write to an existing file and a new
	// file's creation — the revalidation scheduler treats both the
	// same way (re-derive and re-propagate).
	ChangeWritten ChangeOp = iota
	ChangeRemoved
)

// ChangeCallback is invoked once per debounced file, after Watcher has
// collapsed any burst of fsnotify events for that path into its final
// op. It is the feed into scheduler.Scheduler.TriggerMutation per
// spec §4.9's "filesystem changes" input.
type ChangeCallback func(id types.FileID, op ChangeOp)

// Watcher recursively watches a workspace root for R file changes,
// debouncing bursts the way editors and build tools tend to produce
// them (a save is often a temp-file write plus a rename, not one
// event). Grounded on the teacher's internal/indexing/watcher.go
// (fsnotify.Watcher + recursive directory Add + a single debounce
// timer per path), narrowed to this module's single ChangeCallback
// instead of the teacher's three-callback
// (onFileChanged/onFileCreated/onFileRemoved) shape, since this core
// has one reaction to any of them: re-derive and re-propagate.
type Watcher struct {
	fs       *fsnotify.Watcher
	cfg      config.Workspace
	gi       *config.GitignoreParser
	root     string
	debounce time.Duration
	onChange ChangeCallback

	mu      sync.Mutex
	pending map[string]ChangeOp
	timer   *time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher constructs a Watcher. Call Start to begin watching and
// Stop to release it; the zero value is not usable.
func NewWatcher(root string, cfg config.Workspace, gi *config.GitignoreParser, debounce time.Duration, onChange ChangeCallback) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		fs:       fsw,
		cfg:      cfg,
		gi:       gi,
		root:     root,
		debounce: debounce,
		onChange: onChange,
		pending:  make(map[string]ChangeOp),
	}, nil
}

// Start adds a recursive watch under root and begins processing
// events in the background. Returns an error only if the initial
// directory walk or the root watch itself fails.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatches(w.root); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(runCtx)

	debug.LogWorkspace("watcher started under %s", w.root)
	return nil
}

// Stop cancels event processing, closes the underlying fsnotify
// watcher and waits for the processing goroutine to exit.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		real, rerr := filepath.EvalSymlinks(path)
		if rerr != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if w.gi != nil && w.cfg.RespectGitignore && w.gi.ShouldIgnore(rel, true) {
			return filepath.SkipDir
		}

		if err := w.fs.Add(path); err != nil {
			debug.LogWorkspace("watch add failed for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			debug.LogWorkspace("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.addWatches(event.Name); err != nil {
				debug.LogWorkspace("watch add failed for new dir %s: %v", event.Name, err)
			}
		}
		return
	}

	if !hasRExtension(event.Name) {
		return
	}
	rel, relErr := filepath.Rel(w.root, event.Name)
	if relErr != nil {
		rel = event.Name
	}
	rel = filepath.ToSlash(rel)
	if w.gi != nil && w.cfg.RespectGitignore && w.gi.ShouldIgnore(rel, false) {
		return
	}
	if !matchesInclude(w.cfg.Include, rel) || matchesAny(w.cfg.Exclude, rel) {
		return
	}

	var op ChangeOp
	switch {
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		op = ChangeRemoved
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		op = ChangeWritten
	default:
		return
	}
	w.schedule(event.Name, op)
}

func (w *Watcher) schedule(path string, op ChangeOp) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	events := w.pending
	w.pending = make(map[string]ChangeOp)
	w.mu.Unlock()

	for path, op := range events {
		if w.onChange != nil {
			w.onChange(types.NewFileID(path), op)
		}
	}
}
