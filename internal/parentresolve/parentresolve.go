// Package parentresolve implements C5: resolving a file's effective
// parent (the file that sources it) from its own @lsp-sourced-by
// directives and the dependency graph's reverse edges, with a
// deterministic precedence order and a cache key that invalidates
// whenever either input changes.
//
// The candidate-collection and precedence rules are ported from
// parent_resolve.rs's resolve_parent_with_content, including its
// same-parent-alternative filter (a directive and a reverse edge
// agreeing on one parent must resolve Single, not Ambiguous).
package parentresolve

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/r-lsp-core/internal/config"
	"github.com/standardbeagle/r-lsp-core/internal/depgraph"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// ResolvePath maps a directive's path string to the FileID it names.
type ResolvePath func(path string) (types.FileID, bool)

// GetContent returns a file's current text, if available. A nil
// GetContent is valid and means match= patterns and call-site
// inference both fall back to the configured default.
type GetContent func(id types.FileID) ([]byte, bool)

// ParentCacheKey identifies one parent-resolution result. It changes
// whenever either the child's own metadata (its @lsp-sourced-by
// directives) or the set of reverse dependency edges pointing at it
// changes, so a cached resolution can be reused until either input
// moves.
type ParentCacheKey struct {
	MetadataFingerprint uint64
	ReverseEdgesHash    uint64
}

// ResolveMultipleSourceCalls returns the earliest (line, column) pair
// in callSites by lexicographic order. ok is false for an empty slice.
func ResolveMultipleSourceCalls(callSites [][2]uint32) (line, column uint32, ok bool) {
	if len(callSites) == 0 {
		return 0, 0, false
	}
	best := callSites[0]
	for _, cs := range callSites[1:] {
		if cs[0] < best[0] || (cs[0] == best[0] && cs[1] < best[1]) {
			best = cs
		}
	}
	return best[0], best[1], true
}

// ComputeMetadataFingerprint hashes the backward-directive portion of
// meta for use as one half of a ParentCacheKey.
func ComputeMetadataFingerprint(meta types.CrossFileMetadata) uint64 {
	var b strings.Builder
	for _, d := range meta.SourcedBy {
		fmt.Fprintf(&b, "%s\x00%d\x00", d.Path, d.DirectiveLine)
		switch d.CallSite.Kind() {
		case types.CallSiteLineKind:
			fmt.Fprintf(&b, "1\x00%d\x00", d.CallSite.Line())
		case types.CallSiteMatchKind:
			fmt.Fprintf(&b, "2\x00%s\x00", d.CallSite.Pattern())
		default:
			b.WriteString("0\x00")
		}
	}
	return xxhash.Sum64String(b.String())
}

// ComputeReverseEdgesHash hashes the set of dependency edges pointing
// at childID, for use as the other half of a ParentCacheKey.
func ComputeReverseEdgesHash(graph *depgraph.Graph, childID types.FileID) uint64 {
	edges := graph.Dependents(childID)
	keys := make([]string, 0, len(edges))
	for _, e := range edges {
		keys = append(keys, reverseEdgeSortKey(e))
	}
	sort.Strings(keys)
	return xxhash.Sum64String(strings.Join(keys, "\x1f"))
}

func reverseEdgeSortKey(e types.DependencyEdge) string {
	line, col := "-", "-"
	if e.CallSiteLine != nil {
		line = fmt.Sprintf("%d", *e.CallSiteLine)
	}
	if e.CallSiteColumn != nil {
		col = fmt.Sprintf("%d", *e.CallSiteColumn)
	}
	return fmt.Sprintf("%s\x00%s\x00%s\x00%v\x00%v\x00%v", e.From.String(), line, col, e.Local, e.Chdir, e.IsSysSource)
}

// MakeParentCacheKey builds the cache key for childID given meta and
// graph's current state.
func MakeParentCacheKey(meta types.CrossFileMetadata, graph *depgraph.Graph, childID types.FileID) ParentCacheKey {
	return ParentCacheKey{
		MetadataFingerprint: ComputeMetadataFingerprint(meta),
		ReverseEdgesHash:    ComputeReverseEdgesHash(graph, childID),
	}
}

func splitLines(content []byte) [][]byte {
	lines := bytes.Split(content, []byte("\n"))
	for i, l := range lines {
		if len(l) > 0 && l[len(l)-1] == '\r' {
			lines[i] = l[:len(l)-1]
		}
	}
	return lines
}

// ResolveMatchPattern scans parentContent for the first line containing
// pattern, preferring a line that also looks like a source()/
// sys.source() call referencing childPath over a bare text match (e.g.
// a comment). Returns ok=false if pattern occurs on no line.
func ResolveMatchPattern(parentContent []byte, pattern, childPath string) (line, column uint32, ok bool) {
	childFilename := filepath.Base(childPath)
	patternBytes := []byte(pattern)

	var firstLine, firstCol uint32
	haveFirst := false

	for lineNum, l := range splitLines(parentContent) {
		idx := bytes.Index(l, patternBytes)
		if idx < 0 {
			continue
		}
		col := types.UTF16Column(l, idx)

		hasSourceCall := (bytes.Contains(l, []byte("source(")) || bytes.Contains(l, []byte("sys.source("))) &&
			(bytes.Contains(l, []byte(childPath)) || bytes.Contains(l, []byte(childFilename)))
		if hasSourceCall {
			return uint32(lineNum), col, true
		}
		if !haveFirst {
			firstLine, firstCol, haveFirst = uint32(lineNum), col, true
		}
	}
	if haveFirst {
		return firstLine, firstCol, true
	}
	return 0, 0, false
}

// InferCallSiteFromParent scans parentContent for a source()/
// sys.source() call whose argument names childPath, by full path,
// bare filename, or a file= named argument spelling of either, and
// returns its position. Used when a backward directive gives no
// explicit call site and no reverse dependency edge already knows one.
func InferCallSiteFromParent(parentContent []byte, childPath string) (line, column uint32, ok bool) {
	childFilename := filepath.Base(childPath)

	quote := func(q byte, s string) string { return fmt.Sprintf("%c%s%c", q, s, q) }
	candidates := []string{
		quote('"', childPath), quote('\'', childPath),
		quote('"', childFilename), quote('\'', childFilename),
		"file = " + quote('"', childPath), "file = " + quote('\'', childPath),
		"file = " + quote('"', childFilename), "file = " + quote('\'', childFilename),
	}

	for lineNum, l := range splitLines(parentContent) {
		start := bytes.Index(l, []byte("sys.source("))
		if start < 0 {
			start = bytes.Index(l, []byte("source("))
		}
		if start < 0 {
			continue
		}
		after := l[start:]
		for _, c := range candidates {
			if bytes.Contains(after, []byte(c)) {
				return uint32(lineNum), types.UTF16Column(l, start), true
			}
		}
	}
	return 0, 0, false
}

// callSiteEnd marks a call site as "the end of the parent file", the
// same u32::MAX sentinel the original implementation sorts on.
const callSiteEnd = uint32(math.MaxUint32)

type candidate struct {
	parent         types.FileID
	callSiteLine   *uint32
	callSiteColumn *uint32
	precedence     uint8
}

func configDefaultCallSite(assume config.CallSiteDefault) (*uint32, *uint32) {
	if assume == config.CallSiteDefaultStart {
		return types.Uint32Ptr(0), types.Uint32Ptr(0)
	}
	return types.Uint32Ptr(callSiteEnd), types.Uint32Ptr(callSiteEnd)
}

// ResolveParentWithContent resolves childID's effective parent from its
// own @lsp-sourced-by directives plus graph's reverse edges, consulting
// getContent to resolve match= patterns and to infer an unstated call
// site. Precedence, low (preferred) to high: an explicit line= or a
// resolved match= directive (0), a text-inferred call site (1), a
// reverse edge with a known call site (2), and the configured default
// fallback (3). Ties are broken by ascending parent FileID. A directive
// and a reverse edge that agree on the same parent never produce a
// false Ambiguous result.
func ResolveParentWithContent(
	meta types.CrossFileMetadata,
	graph *depgraph.Graph,
	childID types.FileID,
	cfg config.CrossFile,
	resolvePath ResolvePath,
	getContent GetContent,
) types.ParentResolution {
	var candidates []candidate
	childPath := childID.Base()

	for _, directive := range meta.SourcedBy {
		parentID, ok := resolvePath(directive.Path)
		if !ok {
			continue
		}

		var line, col *uint32
		var precedence uint8

		switch directive.CallSite.Kind() {
		case types.CallSiteLineKind:
			n := directive.CallSite.Line()
			line, col, precedence = types.Uint32Ptr(n), types.Uint32Ptr(callSiteEnd), 0

		case types.CallSiteMatchKind:
			resolved := false
			if getContent != nil {
				if content, ok := getContent(parentID); ok {
					if l, c, found := ResolveMatchPattern(content, directive.CallSite.Pattern(), childPath); found {
						line, col, precedence, resolved = types.Uint32Ptr(l), types.Uint32Ptr(c), 0, true
					}
				}
			}
			if !resolved {
				line, col = configDefaultCallSite(cfg.AssumeCallSite)
				precedence = 3
			}

		default: // CallSiteDefaultKind
			hasReverseEdge := false
			for _, e := range graph.Dependents(childID) {
				if e.From == parentID && e.CallSiteLine != nil {
					hasReverseEdge = true
					break
				}
			}
			if hasReverseEdge {
				// The reverse-edge pass below adds this candidate with
				// the more authoritative precedence 2.
				continue
			}
			inferred := false
			if getContent != nil {
				if content, ok := getContent(parentID); ok {
					if l, c, found := InferCallSiteFromParent(content, childPath); found {
						line, col, precedence, inferred = types.Uint32Ptr(l), types.Uint32Ptr(c), 1, true
					}
				}
			}
			if !inferred {
				line, col = configDefaultCallSite(cfg.AssumeCallSite)
				precedence = 3
			}
		}

		candidates = append(candidates, candidate{parent: parentID, callSiteLine: line, callSiteColumn: col, precedence: precedence})
	}

	for _, e := range graph.Dependents(childID) {
		var line, col *uint32
		precedence := uint8(3)
		if e.CallSiteLine != nil && e.CallSiteColumn != nil {
			line, col, precedence = e.CallSiteLine, e.CallSiteColumn, 2
		}

		merged := false
		for i := range candidates {
			if candidates[i].parent == e.From {
				merged = true
				if precedence < candidates[i].precedence {
					candidates[i].precedence = precedence
					candidates[i].callSiteLine = line
					candidates[i].callSiteColumn = col
				}
				break
			}
		}
		if !merged {
			candidates = append(candidates, candidate{parent: e.From, callSiteLine: line, callSiteColumn: col, precedence: precedence})
		}
	}

	if len(candidates) == 0 {
		return types.NoParent()
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.precedence != b.precedence {
			return a.precedence < b.precedence
		}
		return a.parent.Less(b.parent)
	})

	selected := candidates[0]

	var alternatives []types.FileID
	for _, c := range candidates[1:] {
		if c.parent != selected.parent {
			alternatives = append(alternatives, c.parent)
		}
	}

	if len(alternatives) == 0 {
		return types.SingleParent(selected.parent, selected.callSiteLine, selected.callSiteColumn)
	}
	return types.AmbiguousParent(selected.parent, selected.callSiteLine, selected.callSiteColumn, alternatives)
}

// ResolveParent resolves childID's parent without a content provider;
// match= patterns and call-site inference both fall back to the
// configured default.
func ResolveParent(
	meta types.CrossFileMetadata,
	graph *depgraph.Graph,
	childID types.FileID,
	cfg config.CrossFile,
	resolvePath ResolvePath,
) types.ParentResolution {
	return ResolveParentWithContent(meta, graph, childID, cfg, resolvePath, nil)
}
