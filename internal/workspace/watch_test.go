package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/standardbeagle/r-lsp-core/internal/config"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

func TestWatcherDetectsWriteAndRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.R")
	if err := os.WriteFile(path, []byte("x <- 1\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	var mu sync.Mutex
	seen := make(map[string]ChangeOp)
	done := make(chan struct{}, 4)

	cfg := config.Default().Workspace
	w, err := NewWatcher(dir, cfg, nil, 20*time.Millisecond, func(id types.FileID, op ChangeOp) {
		mu.Lock()
		seen[id.String()] = op
		mu.Unlock()
		done <- struct{}{}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("x <- 2\n"), 0o644); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write event")
	}

	id := types.NewFileID(path)
	mu.Lock()
	op, ok := seen[id.String()]
	mu.Unlock()
	if !ok || op != ChangeWritten {
		t.Errorf("seen[%s] = %v, ok=%v, want ChangeWritten", id, op, ok)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("removing fixture: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remove event")
	}

	mu.Lock()
	op, ok = seen[id.String()]
	mu.Unlock()
	if !ok || op != ChangeRemoved {
		t.Errorf("seen[%s] = %v, ok=%v, want ChangeRemoved", id, op, ok)
	}
}

func TestWatcherIgnoresNonRFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	called := make(chan struct{}, 1)
	cfg := config.Default().Workspace
	w, err := NewWatcher(dir, cfg, nil, 20*time.Millisecond, func(types.FileID, ChangeOp) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("hello again\n"), 0o644); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}

	select {
	case <-called:
		t.Fatal("onChange fired for a non-R file")
	case <-time.After(300 * time.Millisecond):
	}
}
