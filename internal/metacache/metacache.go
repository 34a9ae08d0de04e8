// Package metacache implements C3: a fingerprint-keyed cache of each
// file's CrossFileMetadata, plus the inherited-working-directory
// enrichment pass that walks a file's backward-directive parents to
// adopt the nearest explicit working directory.
//
// Grounded on the original cross_file/mod.rs's merge/fingerprint
// discipline (a stable hash over semantically significant fields,
// excluding pure detection position) and on the cycle-safe,
// depth-bounded fixpoint style used throughout the cross-file package
// for chain traversal (dependency.rs's detect_cycle, parent_resolve.rs's
// precedence walk).
package metacache

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/r-lsp-core/internal/debug"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// ResolvePath maps a directive's path string to the FileID it names.
type ResolvePath func(path string) (types.FileID, bool)

type entry struct {
	meta        types.CrossFileMetadata
	fingerprint uint64
}

// Cache holds one CrossFileMetadata record per file, each tagged with a
// fingerprint that changes only when a semantically significant field
// changes. Zero value is ready to use. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Put stores meta for id and returns its fingerprint. Any previously
// enriched InheritedWorkingDirectory is discarded; callers should
// re-run Enrich for id (and, via Invalidate, its dependents) afterward.
func (c *Cache) Put(id types.FileID, meta types.CrossFileMetadata) uint64 {
	meta.InheritedWorkingDirectory = nil
	fp := ComputeFingerprint(meta)

	c.mu.Lock()
	c.entries[id.String()] = entry{meta: meta, fingerprint: fp}
	c.mu.Unlock()

	debug.LogMeta("cached %s (fingerprint %x)", id, fp)
	return fp
}

// Get returns the cached metadata for id, if any.
func (c *Cache) Get(id types.FileID) (types.CrossFileMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id.String()]
	return e.meta, ok
}

// Fingerprint returns id's current fingerprint, if cached.
func (c *Cache) Fingerprint(id types.FileID) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id.String()]
	return e.fingerprint, ok
}

// Remove evicts id's entry.
func (c *Cache) Remove(id types.FileID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id.String())
}

// ComputeFingerprint hashes the semantically significant fields of
// meta: source/library/backward-directive identity and flags, and the
// explicit working directory and ignore-line sets. Line/column fields
// that exist purely to report a detection's on-screen position
// (ForwardSource.Line/Column, PackageCall.Line/Column) are excluded, so
// that reformatting a file without changing its cross-file relationships
// leaves the fingerprint unchanged.
func ComputeFingerprint(meta types.CrossFileMetadata) uint64 {
	var b strings.Builder

	for _, s := range meta.Sources {
		fmt.Fprintf(&b, "src\x00%s\x00%v\x00%v\x00%v\x00%v\x00%v\x00",
			s.Path, s.IsDirective, s.Local, s.Chdir, s.IsSysSource, s.SysSourceGlobalEnv)
	}
	for _, d := range meta.SourcedBy {
		fmt.Fprintf(&b, "by\x00%s\x00%d\x00", d.Path, d.DirectiveLine)
		switch d.CallSite.Kind() {
		case types.CallSiteLineKind:
			fmt.Fprintf(&b, "L%d\x00", d.CallSite.Line())
		case types.CallSiteMatchKind:
			fmt.Fprintf(&b, "M%s\x00", d.CallSite.Pattern())
		default:
			b.WriteString("D\x00")
		}
	}
	for _, p := range meta.LibraryCalls {
		fmt.Fprintf(&b, "lib\x00%s\x00", p.Package)
	}
	if meta.WorkingDirectory != nil {
		fmt.Fprintf(&b, "wd\x00%s\x00", *meta.WorkingDirectory)
	}
	writeLineSet(&b, "ign", meta.IgnoredLines)
	writeLineSet(&b, "ignnext", meta.IgnoredNextLines)

	return xxhash.Sum64String(b.String())
}

func writeLineSet(b *strings.Builder, tag string, set map[uint32]struct{}) {
	if len(set) == 0 {
		return
	}
	lines := make([]uint32, 0, len(set))
	for l := range set {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
	for _, l := range lines {
		fmt.Fprintf(b, "%s\x00%d\x00", tag, l)
	}
}

// Enrich computes id's inherited working directory: if id's own cached
// metadata already has an explicit WorkingDirectory, that value is
// adopted as-is. Otherwise it walks id's backward-directive parents
// (resolved via resolve), adopting the first explicit WorkingDirectory
// found (a parent's own InheritedWorkingDirectory is not consulted),
// bounded by maxDepth hops and
// never revisiting a file. The result is written into id's cache entry
// and returned; ok is false if id is not cached.
func (c *Cache) Enrich(id types.FileID, resolve ResolvePath, maxDepth int) (wd *string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, present := c.entries[id.String()]
	if !present {
		return nil, false
	}

	if e.meta.WorkingDirectory != nil {
		e.meta.InheritedWorkingDirectory = e.meta.WorkingDirectory
		c.entries[id.String()] = e
		return e.meta.WorkingDirectory, true
	}

	visited := map[string]bool{id.String(): true}
	found := c.walkParentWDLocked(e.meta, resolve, maxDepth, visited)

	e.meta.InheritedWorkingDirectory = found
	c.entries[id.String()] = e
	return found, true
}

func (c *Cache) walkParentWDLocked(meta types.CrossFileMetadata, resolve ResolvePath, depth int, visited map[string]bool) *string {
	if depth <= 0 {
		return nil
	}
	for _, back := range meta.SourcedBy {
		parentID, ok := resolve(back.Path)
		if !ok || visited[parentID.String()] {
			continue
		}
		visited[parentID.String()] = true

		parent, ok := c.entries[parentID.String()]
		if !ok {
			continue
		}
		if parent.meta.WorkingDirectory != nil {
			return parent.meta.WorkingDirectory
		}
		if found := c.walkParentWDLocked(parent.meta, resolve, depth-1, visited); found != nil {
			return found
		}
	}
	return nil
}
