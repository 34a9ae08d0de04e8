// Package pathresolve implements C2: mapping a user-supplied path string
// plus inherited working-directory context to an absolute FileID.
//
// The resolution chain follows the teacher's pkg/pathutil convention of
// keeping absolute/relative conversion as small, pure filepath-based
// helpers, extended here with spec's ordered fallback chain (§4.2).
package pathresolve

import (
	"os"
	"path/filepath"

	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// Direction distinguishes forward sources (which get a workspace-root
// fallback) from backward directives (which never do — a backward
// declaration must resolve deterministically to a single, definite
// parent).
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

// PathContext carries the context a relative path is resolved against.
type PathContext struct {
	// ReferringFile is the file that contains the path string.
	ReferringFile types.FileID
	// WorkspaceRoot is the workspace root directory, if known.
	WorkspaceRoot string
	// InheritedWorkingDirectory is the effective working directory
	// inherited via C3's enrichment pass, if any.
	InheritedWorkingDirectory string
	// Chdir is true when the originating source()/sys.source() call set
	// chdir=TRUE, meaning resolution is against the referring file's own
	// directory regardless of any working-directory context.
	Chdir bool
}

// Exists reports whether a candidate path exists on disk. Exposed as an
// interface so callers (and tests) can substitute an in-memory or
// workspace-index-backed existence check instead of touching the real
// filesystem.
type Exists func(path string) bool

// OSExists is the default Exists backed by os.Stat.
func OSExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Resolve maps path plus ctx to an absolute FileID, following spec
// §4.2's resolution order. dir controls whether the workspace-root
// fallback applies (Forward only). exists determines which candidate,
// among those tried, is accepted; the first existing candidate wins.
//
// Absolute paths are canonicalised and returned as they are, ignoring
// chdir, inherited working directory, and workspace root (spec §8
// boundary behaviour); ok is exists' verdict on that path alone.
func Resolve(path string, ctx PathContext, dir Direction, exists Exists) (types.FileID, bool) {
	if exists == nil {
		exists = OSExists
	}

	if filepath.IsAbs(path) {
		return types.NewFileID(path), exists(filepath.Clean(path))
	}

	for _, base := range candidateBases(ctx, dir) {
		if base == "" {
			continue
		}
		candidate := filepath.Clean(filepath.Join(base, path))
		if exists(candidate) {
			return types.NewFileID(candidate), true
		}
	}

	// Nothing on disk matched; still return the most specific guess
	// (first candidate base) so callers can report a path-resolution
	// failure diagnostic anchored at a concrete location, per spec §7.2.
	bases := candidateBases(ctx, dir)
	if len(bases) > 0 && bases[0] != "" {
		return types.NewFileID(filepath.Clean(filepath.Join(bases[0], path))), false
	}
	return types.FileID{}, false
}

// candidateBases returns the ordered list of base directories to try,
// per spec §4.2's numbered resolution order.
func candidateBases(ctx PathContext, dir Direction) []string {
	var bases []string

	// 1. chdir override: against the referring file's directory.
	if ctx.Chdir {
		bases = append(bases, ctx.ReferringFile.Dir())
	}

	// 2. explicit/inherited working directory.
	if ctx.InheritedWorkingDirectory != "" {
		bases = append(bases, ctx.InheritedWorkingDirectory)
	}

	// 3. referring file's directory.
	bases = append(bases, ctx.ReferringFile.Dir())

	// 4. forward sources only: workspace root as final fallback.
	if dir == Forward && ctx.WorkspaceRoot != "" {
		bases = append(bases, ctx.WorkspaceRoot)
	}

	return bases
}
