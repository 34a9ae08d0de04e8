package bgindex

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/standardbeagle/r-lsp-core/internal/types"
)

func alwaysNeedsIndexing(types.FileID) bool { return true }

func TestSubmitDisabledIsNoop(t *testing.T) {
	ix := New(Options{Enabled: false, MaxQueueSize: 10, MaxTransitiveDepth: 3},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			return types.CrossFileMetadata{}, nil
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	ix.Submit(types.NewFileID("/a.R"), 0)
	if ix.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 when disabled", ix.PendingCount())
	}
}

func TestSubmitDedupsAndCapsQueue(t *testing.T) {
	ix := New(Options{Enabled: true, MaxQueueSize: 2, MaxTransitiveDepth: 3},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			return types.CrossFileMetadata{}, nil
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	a := types.NewFileID("/a.R")
	b := types.NewFileID("/b.R")
	c := types.NewFileID("/c.R")

	ix.Submit(a, 0)
	ix.Submit(a, 0) // duplicate, ignored
	ix.Submit(b, 0)
	ix.Submit(c, 0) // queue already at MaxQueueSize=2, dropped

	if ix.PendingCount() != 2 {
		t.Errorf("PendingCount() = %d, want 2", ix.PendingCount())
	}
}

func TestProcessOneIndexesAndReturnsFalseWhenEmpty(t *testing.T) {
	var indexed []string
	var mu sync.Mutex

	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 3},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			mu.Lock()
			indexed = append(indexed, id.String())
			mu.Unlock()
			return types.CrossFileMetadata{}, nil
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	ix.Submit(types.NewFileID("/a.R"), 0)

	if !ix.ProcessOne(context.Background()) {
		t.Fatal("expected ProcessOne to find a task")
	}
	if ix.ProcessOne(context.Background()) {
		t.Fatal("expected ProcessOne to return false on an empty queue")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(indexed) != 1 || indexed[0] != "/a.R" {
		t.Errorf("indexed = %v, want [/a.R]", indexed)
	}
}

func TestProcessOneSkipsCancelledTask(t *testing.T) {
	var calls int
	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 3},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			calls++
			return types.CrossFileMetadata{}, nil
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	id := types.NewFileID("/a.R")
	ix.Submit(id, 0)
	ix.CancelURI(id)

	if ix.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after cancel", ix.PendingCount())
	}
	ix.ProcessOne(context.Background())
	if calls != 0 {
		t.Errorf("index called %d times, want 0 for a cancelled task", calls)
	}
}

func TestCancelUriMidFlightStillNoops(t *testing.T) {
	// Simulates the teacher's race: a task is dequeued by the worker
	// (removed from the queue/pending set) an instant before its URI is
	// cancelled. processTask must still consult the cancelled set
	// directly rather than relying on the queue/pending removal alone.
	var calls int
	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 3},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			calls++
			return types.CrossFileMetadata{}, nil
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	id := types.NewFileID("/a.R")
	task, ok := func() (IndexTask, bool) {
		ix.Submit(id, 0)
		return ix.dequeue()
	}()
	if !ok {
		t.Fatal("expected a task to dequeue")
	}

	ix.CancelURI(id)
	ix.processTask(context.Background(), task)

	if calls != 0 {
		t.Errorf("index called %d times, want 0 for a task cancelled after dequeue", calls)
	}
}

func TestClearCancelledAllowsResubmission(t *testing.T) {
	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 3},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			return types.CrossFileMetadata{}, nil
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	id := types.NewFileID("/a.R")
	ix.Submit(id, 0)
	ix.CancelURI(id)
	ix.ClearCancelled()

	var calls int
	ix.index = func(ctx context.Context, fid types.FileID) (types.CrossFileMetadata, error) {
		calls++
		return types.CrossFileMetadata{}, nil
	}
	ix.Submit(id, 0)
	ix.ProcessOne(context.Background())

	if calls != 1 {
		t.Errorf("index called %d times after ClearCancelled + resubmit, want 1", calls)
	}
}

func TestProcessOneSkipsAlreadyIndexedFile(t *testing.T) {
	var calls int
	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 3},
		func(types.FileID) bool { return false }, // already indexed
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			calls++
			return types.CrossFileMetadata{}, nil
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	ix.Submit(types.NewFileID("/a.R"), 0)
	ix.ProcessOne(context.Background())

	if calls != 0 {
		t.Errorf("index called %d times, want 0 for an already-indexed file", calls)
	}
}

func TestProcessOneLogsAndContinuesOnIndexError(t *testing.T) {
	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 3},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			return types.CrossFileMetadata{}, errors.New("boom")
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	ix.Submit(types.NewFileID("/a.R"), 0)
	if !ix.ProcessOne(context.Background()) {
		t.Fatal("expected ProcessOne to process the (failing) task")
	}
	if ix.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0: failures must not block the worker", ix.PendingCount())
	}
}

func TestQueueTransitiveDepsEnqueuesResolvedUnindexedSources(t *testing.T) {
	parent := types.NewFileID("/parent.R")
	child := types.NewFileID("/child.R")

	meta := types.CrossFileMetadata{Sources: []types.ForwardSource{{Path: "child.R"}}}

	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 3},
		func(id types.FileID) bool { return id.String() == parent.String() || id.String() == child.String() },
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			return meta, nil
		},
		func(from types.FileID, src types.ForwardSource) (types.FileID, bool) {
			if src.Path == "child.R" {
				return child, true
			}
			return types.FileID{}, false
		})

	ix.Submit(parent, 0)
	ix.ProcessOne(context.Background())

	if ix.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1 (transitive dep queued)", ix.PendingCount())
	}
	task, ok := ix.dequeue()
	if !ok || task.ID.String() != child.String() || task.Depth != 1 {
		t.Errorf("got task %+v ok=%v, want child.R at depth 1", task, ok)
	}
}

func TestQueueTransitiveDepsStopsAtMaxDepth(t *testing.T) {
	parent := types.NewFileID("/parent.R")
	child := types.NewFileID("/child.R")
	meta := types.CrossFileMetadata{Sources: []types.ForwardSource{{Path: "child.R"}}}

	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 1},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			return meta, nil
		},
		func(from types.FileID, src types.ForwardSource) (types.FileID, bool) { return child, true })

	// depth 1 == MaxTransitiveDepth, so no further expansion.
	ix.Submit(parent, 1)
	ix.ProcessOne(context.Background())

	if ix.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0: depth already at MaxTransitiveDepth", ix.PendingCount())
	}
}

func TestStartAndStopDrainsQueueInBackground(t *testing.T) {
	done := make(chan struct{}, 1)
	ix := New(Options{Enabled: true, MaxQueueSize: 10, MaxTransitiveDepth: 3, PollInterval: 5 * time.Millisecond},
		alwaysNeedsIndexing,
		func(ctx context.Context, id types.FileID) (types.CrossFileMetadata, error) {
			select {
			case done <- struct{}{}:
			default:
			}
			return types.CrossFileMetadata{}, nil
		},
		func(types.FileID, types.ForwardSource) (types.FileID, bool) { return types.FileID{}, false })

	ix.Start(context.Background())
	defer ix.Stop()

	ix.Submit(types.NewFileID("/a.R"), 0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected worker to process the submitted task")
	}
}
