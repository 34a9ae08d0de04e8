package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/standardbeagle/r-lsp-core/internal/types"
)

func TestActivityPriorityOrdering(t *testing.T) {
	a := NewActivityState(10)
	active := types.NewFileID("/active.R")
	visible := types.NewFileID("/visible.R")
	lru := types.NewFileID("/lru.R")
	unknown := types.NewFileID("/unknown.R")

	a.SetActive(active)
	a.SetVisible([]types.FileID{visible})
	a.Touch(lru)

	if p := a.Priority(active); p != 0 {
		t.Errorf("active priority = %d, want 0", p)
	}
	if p := a.Priority(visible); p != 1 {
		t.Errorf("visible priority = %d, want 1", p)
	}
	if p := a.Priority(lru); p != 2 {
		t.Errorf("lru priority = %d, want 2", p)
	}
	if p := a.Priority(unknown); p != unknownPriority {
		t.Errorf("unknown priority = %d, want %d", p, unknownPriority)
	}
}

func TestActivityTouchDedupsAndBounds(t *testing.T) {
	a := NewActivityState(2)
	f1 := types.NewFileID("/f1.R")
	f2 := types.NewFileID("/f2.R")
	f3 := types.NewFileID("/f3.R")

	a.Touch(f1)
	a.Touch(f2)
	a.Touch(f1) // re-touch moves f1 back to front, dedup not grow
	a.Touch(f3) // exceeds bound of 2, drops oldest

	if p := a.Priority(f1); p != 3 {
		t.Errorf("f1 priority = %d, want 3 (second, behind f3)", p)
	}
	if a.Priority(f3) == unknownPriority {
		t.Error("expected f3 to be present in LRU")
	}
}

func TestScheduleCancelsPreviousTaskForSameID(t *testing.T) {
	s := New(1000, NewActivityState(10), 0)
	id := types.NewFileID("/a.R")

	s.Schedule(id, func(ctx context.Context) {})
	// A superseded task is never dispatched, so its context is read
	// from the pending set rather than observed from inside the task.
	s.mu.Lock()
	firstCtx := s.pending[id.String()].ctx
	s.mu.Unlock()

	// reschedule immediately; first task's context should be cancelled
	s.Schedule(id, func(ctx context.Context) {})

	if firstCtx.Err() == nil {
		t.Error("expected rescheduling to cancel the previous task's context")
	}
}

func TestForceDrainRunsPendingTasksInPriorityOrder(t *testing.T) {
	activity := NewActivityState(10)
	// Concurrency 1: each dispatched task finishes before the next one
	// is dispatched, so dispatch order is also run order.
	s := New(10_000, activity, 1)

	active := types.NewFileID("/active.R")
	unknown := types.NewFileID("/unknown.R")
	activity.SetActive(active)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 2)

	s.Schedule(unknown, func(ctx context.Context) {
		mu.Lock()
		order = append(order, unknown.String())
		mu.Unlock()
		done <- struct{}{}
	})
	s.Schedule(active, func(ctx context.Context) {
		mu.Lock()
		order = append(order, active.String())
		mu.Unlock()
		done <- struct{}{}
	})

	s.ForceDrain()
	<-done
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != active.String() {
		t.Errorf("expected active file dispatched first, got %v", order)
	}
}

func TestCancelRemovesPendingTask(t *testing.T) {
	s := New(10_000, NewActivityState(10), 0)
	id := types.NewFileID("/a.R")

	ran := false
	s.Schedule(id, func(ctx context.Context) { ran = true })
	s.Cancel(id)

	if s.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after cancel", s.PendingCount())
	}
	s.ForceDrain()
	time.Sleep(10 * time.Millisecond)
	if ran {
		t.Error("expected cancelled task to not run")
	}
}

func TestTriggerMutationCapsAtMaxRevalidations(t *testing.T) {
	s := New(10_000, NewActivityState(10), 0)
	f := types.NewFileID("/f.R")
	d1 := types.NewFileID("/d1.R")
	d2 := types.NewFileID("/d2.R")
	d3 := types.NewFileID("/d3.R")

	s.TriggerMutation(f, false,
		func(types.FileID) []types.FileID { return []types.FileID{d1, d2, d3} },
		func(types.FileID) []types.FileID { return nil },
		nil,
		2,
		func(types.FileID) Task { return func(ctx context.Context) {} },
	)

	// f + first 2 of the 3 dependents = 3 scheduled
	if s.PendingCount() != 3 {
		t.Errorf("PendingCount() = %d, want 3 (f + capped dependents)", s.PendingCount())
	}
}

func TestTriggerMutationInvalidatesBackwardChildrenOnWDChange(t *testing.T) {
	s := New(10_000, NewActivityState(10), 0)
	f := types.NewFileID("/f.R")
	child := types.NewFileID("/child.R")

	var invalidated []types.FileID
	s.TriggerMutation(f, true,
		func(types.FileID) []types.FileID { return nil },
		func(types.FileID) []types.FileID { return []types.FileID{child} },
		func(id types.FileID) { invalidated = append(invalidated, id) },
		10,
		func(types.FileID) Task { return func(ctx context.Context) {} },
	)

	if len(invalidated) != 1 || invalidated[0] != child {
		t.Errorf("expected child invalidated, got %v", invalidated)
	}
}
