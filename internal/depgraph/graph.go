// Package depgraph implements C4: a dependency graph of source()/
// sys.source() relationships between files, with forward and backward
// adjacency, directive-vs-AST conflict resolution, cycle detection, and
// bounded transitive-dependents traversal.
//
// The update/remove/get_dependencies/get_dependents/detect_cycle
// algorithms, including the exact edge-key and from-to-pair dedup keys
// and the directive-wins-over-AST conflict rule, are ported line for
// line from the original dependency.rs.
package depgraph

import (
	"sync"

	"github.com/standardbeagle/r-lsp-core/internal/debug"
	"github.com/standardbeagle/r-lsp-core/internal/rerrors"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// ResolvePath maps a path string found in one file's metadata to the
// FileID of the file it names, or ok=false if it could not be
// resolved.
type ResolvePath func(path string) (types.FileID, bool)

// UpdateResult carries the conflict diagnostics produced by UpdateFile.
type UpdateResult struct {
	Conflicts []*rerrors.ConflictError
}

// Graph tracks source relationships between files. Zero value is ready
// to use. Safe for concurrent use.
type Graph struct {
	mu       sync.RWMutex
	forward  map[string][]types.DependencyEdge // parent -> edges to children
	backward map[string][]types.DependencyEdge // child -> edges from parents
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		forward:  make(map[string][]types.DependencyEdge),
		backward: make(map[string][]types.DependencyEdge),
	}
}

// UpdateFile replaces all edges for which fileID is the parent, and all
// backward-directive-created edges for which fileID is the child, with
// the edges implied by meta. Directive-declared sources and
// @lsp-sourced-by backward directives are processed first and treated
// as authoritative; AST-detected source() calls that collide on the
// same (from, to) pair as a directive edge are dropped, with a
// ConflictError recorded when the two call sites disagree.
func (g *Graph) UpdateFile(fileID types.FileID, meta types.CrossFileMetadata, resolve ResolvePath) UpdateResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	var result UpdateResult

	g.removeForwardEdgesLocked(fileID)
	g.removeBackwardDirectiveEdgesForChildLocked(fileID)

	type fromTo struct{ from, to string }

	var directiveEdges []types.DependencyEdge
	directiveFromTo := make(map[fromTo]bool)

	for _, src := range meta.Sources {
		if !src.IsDirective {
			continue
		}
		to, ok := resolve(src.Path)
		if !ok {
			continue
		}
		edge := types.DependencyEdge{
			From:           fileID,
			To:             to,
			CallSiteLine:   types.Uint32Ptr(src.Line),
			CallSiteColumn: types.Uint32Ptr(src.Column),
			Local:          src.Local,
			Chdir:          src.Chdir,
			IsSysSource:    src.IsSysSource,
			IsDirective:    true,
		}
		directiveFromTo[fromTo{edge.From.String(), edge.To.String()}] = true
		directiveEdges = append(directiveEdges, edge)
	}

	for _, back := range meta.SourcedBy {
		parent, ok := resolve(back.Path)
		if !ok {
			continue
		}
		var line, col *uint32
		switch back.CallSite.Kind() {
		case types.CallSiteLineKind:
			n := back.CallSite.Line()
			line = &n
			col = types.Uint32Ptr(^uint32(0)) // end-of-line marker
		case types.CallSiteMatchKind, types.CallSiteDefaultKind:
			// match= lookup and default inference happen in C5; the
			// graph edge itself carries no call site yet.
		}
		edge := types.DependencyEdge{
			From:         parent,
			To:           fileID,
			CallSiteLine: line, CallSiteColumn: col,
			IsDirective: true,
		}
		pair := fromTo{edge.From.String(), edge.To.String()}
		if !directiveFromTo[pair] {
			directiveFromTo[pair] = true
			directiveEdges = append(directiveEdges, edge)
		}
	}

	var astEdges []types.DependencyEdge
	for _, src := range meta.Sources {
		if src.IsDirective {
			continue
		}
		to, ok := resolve(src.Path)
		if !ok {
			continue
		}
		edge := types.DependencyEdge{
			From:           fileID,
			To:             to,
			CallSiteLine:   types.Uint32Ptr(src.Line),
			CallSiteColumn: types.Uint32Ptr(src.Column),
			Local:          src.Local,
			Chdir:          src.Chdir,
			IsSysSource:    src.IsSysSource,
			IsDirective:    false,
		}
		pair := fromTo{edge.From.String(), edge.To.String()}

		if directiveFromTo[pair] {
			for _, dirEdge := range directiveEdges {
				if dirEdge.From != edge.From || dirEdge.To != edge.To {
					continue
				}
				sameLine := ptrEqual(dirEdge.CallSiteLine, edge.CallSiteLine)
				sameCol := ptrEqual(dirEdge.CallSiteColumn, edge.CallSiteColumn)
				if !sameLine || !sameCol {
					var dirLine uint32
					for _, s := range meta.Sources {
						if s.IsDirective {
							if t, ok := resolve(s.Path); ok && t == to {
								dirLine = s.Line
								break
							}
						}
					}
					result.Conflicts = append(result.Conflicts, rerrors.NewConflictError(fileID, to, dirLine))
				}
				break
			}
			continue
		}
		astEdges = append(astEdges, edge)
	}

	seen := make(map[any]bool)
	for _, edge := range directiveEdges {
		if !seen[edge.Key()] {
			seen[edge.Key()] = true
			g.addEdgeLocked(edge)
		}
	}
	for _, edge := range astEdges {
		if !seen[edge.Key()] {
			seen[edge.Key()] = true
			g.addEdgeLocked(edge)
		}
	}

	debug.LogGraph("updated %s: %d directive edge(s), %d AST edge(s), %d conflict(s)",
		fileID, len(directiveEdges), len(astEdges), len(result.Conflicts))

	return result
}

func ptrEqual(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RemoveFile deletes every edge touching fileID, as parent or child.
func (g *Graph) RemoveFile(fileID types.FileID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeForwardEdgesLocked(fileID)
	g.removeBackwardEdgesLocked(fileID)
}

// Dependencies returns the edges where fileID is the parent (caller).
func (g *Graph) Dependencies(fileID types.FileID) []types.DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]types.DependencyEdge(nil), g.forward[fileID.String()]...)
}

// Dependents returns the edges where fileID is the child (callee).
func (g *Graph) Dependents(fileID types.FileID) []types.DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]types.DependencyEdge(nil), g.backward[fileID.String()]...)
}

// TransitiveDependents returns every file that depends on fileID,
// directly or indirectly, stopping at maxDepth hops and never
// revisiting a file (cycle-safe).
func (g *Graph) TransitiveDependents(fileID types.FileID, maxDepth int) []types.FileID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var result []types.FileID
	visited := map[string]bool{}
	g.collectDependentsLocked(fileID, maxDepth, 0, visited, &result)
	return result
}

func (g *Graph) collectDependentsLocked(fileID types.FileID, maxDepth, depth int, visited map[string]bool, result *[]types.FileID) {
	if depth >= maxDepth || visited[fileID.String()] {
		return
	}
	visited[fileID.String()] = true

	for _, edge := range g.backward[fileID.String()] {
		if !visited[edge.From.String()] {
			*result = append(*result, edge.From)
			g.collectDependentsLocked(edge.From, maxDepth, depth+1, visited, result)
		}
	}
}

// DetectCycle reports the edge that would close a cycle back to
// fileID, if one already exists in the graph reachable from fileID.
func (g *Graph) DetectCycle(fileID types.FileID) (types.DependencyEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	visited := map[string]bool{}
	return g.detectCycleLocked(fileID, fileID, visited)
}

func (g *Graph) detectCycleLocked(start, current types.FileID, visited map[string]bool) (types.DependencyEdge, bool) {
	if visited[current.String()] {
		return types.DependencyEdge{}, false
	}
	visited[current.String()] = true

	for _, edge := range g.forward[current.String()] {
		if edge.To == start {
			return edge, true
		}
		if cyc, ok := g.detectCycleLocked(start, edge.To, visited); ok {
			return cyc, true
		}
	}
	return types.DependencyEdge{}, false
}

func (g *Graph) addEdgeLocked(edge types.DependencyEdge) {
	g.forward[edge.From.String()] = append(g.forward[edge.From.String()], edge)
	g.backward[edge.To.String()] = append(g.backward[edge.To.String()], edge)
}

func (g *Graph) removeForwardEdgesLocked(fileID types.FileID) {
	edges, ok := g.forward[fileID.String()]
	if !ok {
		return
	}
	delete(g.forward, fileID.String())
	for _, edge := range edges {
		back := g.backward[edge.To.String()]
		back = filterEdges(back, func(e types.DependencyEdge) bool { return e.From != fileID })
		if len(back) == 0 {
			delete(g.backward, edge.To.String())
		} else {
			g.backward[edge.To.String()] = back
		}
	}
}

func (g *Graph) removeBackwardEdgesLocked(fileID types.FileID) {
	edges, ok := g.backward[fileID.String()]
	if !ok {
		return
	}
	delete(g.backward, fileID.String())
	for _, edge := range edges {
		fwd := g.forward[edge.From.String()]
		fwd = filterEdges(fwd, func(e types.DependencyEdge) bool { return e.To != fileID })
		if len(fwd) == 0 {
			delete(g.forward, edge.From.String())
		} else {
			g.forward[edge.From.String()] = fwd
		}
	}
}

// removeBackwardDirectiveEdgesForChildLocked removes the edges where
// childID is the child and the edge was created from a backward
// directive, so they can be re-derived from fresh metadata without
// disturbing forward-directive or AST edges pointing at the same
// child.
func (g *Graph) removeBackwardDirectiveEdgesForChildLocked(childID types.FileID) {
	edges := g.backward[childID.String()]
	var toRemove []types.DependencyEdge
	for _, e := range edges {
		if e.IsDirective && e.To == childID {
			toRemove = append(toRemove, e)
		}
	}
	for _, edge := range toRemove {
		fwd := g.forward[edge.From.String()]
		fwd = filterEdges(fwd, func(e types.DependencyEdge) bool {
			return !(e.To == edge.To && e.IsDirective && ptrEqual(e.CallSiteLine, edge.CallSiteLine))
		})
		if len(fwd) == 0 {
			delete(g.forward, edge.From.String())
		} else {
			g.forward[edge.From.String()] = fwd
		}

		back := g.backward[childID.String()]
		back = filterEdges(back, func(e types.DependencyEdge) bool {
			return !(e.From == edge.From && e.IsDirective && ptrEqual(e.CallSiteLine, edge.CallSiteLine))
		})
		if len(back) == 0 {
			delete(g.backward, childID.String())
		} else {
			g.backward[childID.String()] = back
		}
	}
}

func filterEdges(edges []types.DependencyEdge, keep func(types.DependencyEdge) bool) []types.DependencyEdge {
	out := edges[:0]
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
