// Package scheduler implements C9: the revalidation scheduler that
// drives recomputation after every state mutation.
//
// Grounded directly on the teacher's internal/indexing/
// debounced_rebuilder.go: a mutex-guarded pending set, a *time.Timer
// reset on every new arrival, and swap-and-clear draining on fire. That
// rebuilder coalesces many files into one rebuild callback; this
// package generalizes it to one cancellable task per file id (a
// context.CancelFunc standing in for the spec's "cancellation token",
// the idiomatic Go equivalent) plus the activity-weighted priority
// table of spec §4.9.
package scheduler

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/standardbeagle/r-lsp-core/internal/debug"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// Task is a unit of revalidation work for one file. It must check
// ctx at every suspension point (I/O, subprocess call, explicit yield)
// and abandon work early if ctx is done.
type Task func(ctx context.Context)

// ActivityState tracks which file is active, which are visible, and a
// bounded LRU of recently touched files, used to score scheduling
// priority. Safe for concurrent use.
type ActivityState struct {
	mu      sync.Mutex
	active  string
	visible map[string]struct{}
	lru     []string // most-recently-touched first
	maxLRU  int
}

// NewActivityState returns an ActivityState whose LRU retains at most
// maxLRU entries.
func NewActivityState(maxLRU int) *ActivityState {
	if maxLRU <= 0 {
		maxLRU = 50
	}
	return &ActivityState{visible: make(map[string]struct{}), maxLRU: maxLRU}
}

// SetActive marks id as the single currently active file.
func (a *ActivityState) SetActive(id types.FileID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = id.String()
}

// SetVisible replaces the set of currently visible files.
func (a *ActivityState) SetVisible(ids []types.FileID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visible = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		a.visible[id.String()] = struct{}{}
	}
}

// Touch records id as recently touched, moving it to the front of the
// LRU (or inserting it there) and trimming to maxLRU.
func (a *ActivityState) Touch(id types.FileID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := id.String()

	filtered := a.lru[:0:0]
	for _, k := range a.lru {
		if k != key {
			filtered = append(filtered, k)
		}
	}
	a.lru = append([]string{key}, filtered...)
	if len(a.lru) > a.maxLRU {
		a.lru = a.lru[:a.maxLRU]
	}
}

// unknownPriority is returned for a file the activity state has never
// seen.
const unknownPriority = math.MaxInt32

// Priority scores id; lower is higher priority: active = 0, visible =
// 1, LRU position + 2 otherwise, unknown = unknownPriority.
func (a *ActivityState) Priority(id types.FileID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := id.String()

	if key == a.active {
		return 0
	}
	if _, ok := a.visible[key]; ok {
		return 1
	}
	for i, k := range a.lru {
		if k == key {
			return i + 2
		}
	}
	return unknownPriority
}

type pendingTask struct {
	id     types.FileID
	cancel context.CancelFunc
	ctx    context.Context
	task   Task
}

// Scheduler coalesces per-file revalidation requests within a debounce
// window, cancelling any task still pending for a file id whenever it
// is rescheduled, and dispatches the batch in ascending activity
// priority order when the window fires.
type Scheduler struct {
	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	pending  map[string]*pendingTask
	activity *ActivityState
	// concurrency bounds how many dispatched tasks run at once; 0
	// means unbounded.
	concurrency int
	inFlight    chan struct{}
}

// New returns a Scheduler draining its pending set debounceMs
// milliseconds after the last Schedule call, scoring priority via
// activity, and running at most concurrency tasks at once (0 =
// unbounded).
func New(debounceMs int, activity *ActivityState, concurrency int) *Scheduler {
	if debounceMs <= 0 {
		debounceMs = 50
	}
	s := &Scheduler{
		debounce:    time.Duration(debounceMs) * time.Millisecond,
		pending:     make(map[string]*pendingTask),
		activity:    activity,
		concurrency: concurrency,
	}
	if concurrency > 0 {
		s.inFlight = make(chan struct{}, concurrency)
	}
	return s
}

// Schedule enqueues task for id, cancelling any task already pending
// for id and resetting the debounce timer.
func (s *Scheduler) Schedule(id types.FileID, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[id.String()]; ok {
		existing.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.pending[id.String()] = &pendingTask{id: id, cancel: cancel, ctx: ctx, task: task}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.drain)

	debug.LogScheduler("scheduled %s (pending: %d)", id, len(s.pending))
}

// Cancel cancels id's pending task, if any, without scheduling a
// replacement. Used when a document closes.
func (s *Scheduler) Cancel(id types.FileID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pending[id.String()]; ok {
		existing.cancel()
		delete(s.pending, id.String())
	}
}

// PendingCount reports the number of tasks currently awaiting the
// debounce window.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// drain dispatches every currently pending task, ordered by ascending
// activity priority, then clears the pending set.
func (s *Scheduler) drain() {
	s.mu.Lock()
	batch := make([]*pendingTask, 0, len(s.pending))
	for _, t := range s.pending {
		batch = append(batch, t)
	}
	s.pending = make(map[string]*pendingTask)
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	sort.Slice(batch, func(i, j int) bool {
		return s.activity.Priority(batch[i].id) < s.activity.Priority(batch[j].id)
	})

	debug.LogScheduler("draining %d tasks", len(batch))
	for _, t := range batch {
		t := t
		if s.inFlight != nil {
			s.inFlight <- struct{}{}
			go func() {
				defer func() { <-s.inFlight }()
				runTask(t)
			}()
		} else {
			go runTask(t)
		}
	}
}

func runTask(t *pendingTask) {
	select {
	case <-t.ctx.Done():
		return
	default:
	}
	t.task(t.ctx)
}

// ForceDrain immediately dispatches the pending batch without waiting
// for the debounce timer, for tests and explicit flush points.
func (s *Scheduler) ForceDrain() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.drain()
}

// TriggerMutation implements spec §4.9's fan-out policy for a changed
// file F: enqueue F itself, its transitive dependents (via
// dependentsOf), and — when wdChanged is true — every child naming F in
// a backward directive (via backwardChildrenOf), invalidating each via
// invalidate first. The combined count enqueued beyond F itself is
// capped at maxRevalidations; the remainder is dropped with a warning
// log.
func (s *Scheduler) TriggerMutation(
	f types.FileID,
	wdChanged bool,
	dependentsOf func(types.FileID) []types.FileID,
	backwardChildrenOf func(types.FileID) []types.FileID,
	invalidate func(types.FileID),
	maxRevalidations int,
	taskFor func(types.FileID) Task,
) {
	s.Schedule(f, taskFor(f))

	var extra []types.FileID
	extra = append(extra, dependentsOf(f)...)
	if wdChanged {
		for _, child := range backwardChildrenOf(f) {
			if invalidate != nil {
				invalidate(child)
			}
			extra = append(extra, child)
		}
	}

	if maxRevalidations >= 0 && len(extra) > maxRevalidations {
		debug.LogScheduler("dropping %d of %d revalidations for %s: exceeds max_revalidations_per_trigger=%d",
			len(extra)-maxRevalidations, len(extra), f, maxRevalidations)
		extra = extra[:maxRevalidations]
	}

	for _, id := range extra {
		s.Schedule(id, taskFor(id))
	}
}
