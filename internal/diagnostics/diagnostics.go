// Package diagnostics implements C10: the per-file diagnostics publish
// gate that makes out-of-order asynchronous revalidation completion
// unable to publish stale diagnostics over newer ones.
//
// Grounded on the teacher's discipline of giving each shared structure
// its own sync.RWMutex (internal/core's convention) rather than a
// global lock; the gate itself has no direct teacher analogue since the
// teacher's indexer has no editor-protocol publish step, so its shape
// follows spec §4.10 directly.
package diagnostics

import "sync"

type state struct {
	lastPublished uint64
	hasPublished  bool
	forceRepublish bool
}

// Gate tracks, per file id, the last diagnostics version published and
// a force-republish flag. Zero value is ready to use. Safe for
// concurrent use.
type Gate struct {
	mu     sync.RWMutex
	states map[string]*state
}

// New returns an empty Gate.
func New() *Gate {
	return &Gate{states: make(map[string]*state)}
}

// CanPublish reports whether version may be published for uri: true if
// it is newer than the last published version, or equal to it while
// uri is marked for forced republish. Always false if version is
// older.
func (g *Gate) CanPublish(uri string, version uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s, ok := g.states[uri]
	if !ok || !s.hasPublished {
		return true
	}
	if version > s.lastPublished {
		return true
	}
	if version == s.lastPublished && s.forceRepublish {
		return true
	}
	return false
}

// RecordPublish stores version as uri's last published version and
// clears its force-republish flag.
func (g *Gate) RecordPublish(uri string, version uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.states[uri]
	if !ok {
		s = &state{}
		g.states[uri] = s
	}
	s.lastPublished = version
	s.hasPublished = true
	s.forceRepublish = false
}

// MarkForceRepublish sets uri's force-republish flag, so that the next
// CanPublish call at uri's current version (not just a newer one)
// succeeds. Used when a dependency change makes a document's existing
// diagnostics stale without bumping its own version.
func (g *Gate) MarkForceRepublish(uri string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.states[uri]
	if !ok {
		s = &state{}
		g.states[uri] = s
	}
	s.forceRepublish = true
}

// Clear removes all gate state for uri, used on document close.
func (g *Gate) Clear(uri string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, uri)
}
