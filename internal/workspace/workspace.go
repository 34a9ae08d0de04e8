// Package workspace implements C8: the authoritative store of per-file
// derived data (FileSnapshot, CrossFileMetadata, ScopeArtifacts) for
// files not open in the editor, plus the initial directory scan that
// populates it.
//
// Grounded on the teacher's internal/core/file_service.go +
// internal/indexing "MasterIndex" scan/update pattern: a synchronous,
// parallelized directory walk producing per-file records that the
// caller merges back into shared state, generalized here to R file
// discovery with doublestar include/exclude globs layered over gitignore
// (internal/config/gitignore.go) and an errgroup-bounded parallel scan
// (the same errgroup.WithContext + SetLimit idiom used in
// internal/mcp's integration tests).
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/r-lsp-core/internal/config"
	"github.com/standardbeagle/r-lsp-core/internal/debug"
	"github.com/standardbeagle/r-lsp-core/internal/pathresolve"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// ComputeFn derives the CrossFileMetadata and ScopeArtifacts for one
// file's content. Supplied by the caller so this package need not
// import the directive/AST-detection/scopeindex stack directly; the
// scan step stays a pure discovery-and-read operation.
type ComputeFn func(path string, content []byte) (types.CrossFileMetadata, types.ScopeArtifacts)

// ScanResult pairs a discovered file's identity with its derived
// IndexEntry.
type ScanResult struct {
	ID    types.FileID
	Entry types.IndexEntry
}

var defaultExtensions = map[string]bool{".r": true, ".rmd": true}

// Scan walks folders looking for R source files, reading and deriving
// an IndexEntry for each one found. It holds no lock on any shared
// index: per spec §4.8 the caller merges results back with
// UpdateFromDisk. The walk itself is sequential (directory trees here
// are not large enough to warrant parallel directory traversal); file
// reads and ComputeFn invocations are parallelized across
// cfg.ParallelWorkers via errgroup.
func Scan(ctx context.Context, folders []string, cfg config.Workspace, root string, gi *config.GitignoreParser, compute ComputeFn) ([]ScanResult, error) {
	paths, err := discover(folders, cfg, root, gi)
	if err != nil {
		return nil, err
	}
	if cfg.MaxFileCount > 0 && len(paths) > cfg.MaxFileCount {
		debug.LogWorkspace("scan found %d files, truncating to MaxFileCount=%d", len(paths), cfg.MaxFileCount)
		paths = paths[:cfg.MaxFileCount]
	}

	workers := cfg.ParallelWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	results := make([]ScanResult, len(paths))
	present := make([]bool, len(paths))

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			info, err := os.Stat(p)
			if err != nil {
				return nil
			}
			if cfg.MaxFileSizeBytes > 0 && info.Size() > cfg.MaxFileSizeBytes {
				return nil
			}
			content, err := os.ReadFile(p)
			if err != nil {
				return nil
			}

			meta, artifacts := compute(p, content)
			snapshot := types.NewFileSnapshot(content, info.ModTime())

			results[i] = ScanResult{
				ID: types.NewFileID(p),
				Entry: types.IndexEntry{
					Snapshot:  snapshot,
					Metadata:  meta,
					Artifacts: artifacts,
				},
			}
			present[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]ScanResult, 0, len(paths))
	for i, ok := range present {
		if ok {
			entries = append(entries, results[i])
		}
	}
	debug.LogWorkspace("scan produced %d index entries from %d candidate paths", len(entries), len(paths))
	return entries, nil
}

func discover(folders []string, cfg config.Workspace, root string, gi *config.GitignoreParser) ([]string, error) {
	var found []string
	for _, folder := range folders {
		err := filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if gi != nil && cfg.RespectGitignore && gi.ShouldIgnore(rel, true) {
					return filepath.SkipDir
				}
				return nil
			}

			if !hasRExtension(path) {
				return nil
			}
			if gi != nil && cfg.RespectGitignore && gi.ShouldIgnore(rel, false) {
				return nil
			}
			if !matchesInclude(cfg.Include, rel) {
				return nil
			}
			if matchesAny(cfg.Exclude, rel) {
				return nil
			}

			found = append(found, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return found, nil
}

func hasRExtension(path string) bool {
	return defaultExtensions[strings.ToLower(filepath.Ext(path))]
}

func matchesInclude(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	return matchesAny(patterns, rel)
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Index is the authoritative per-file derived-data store for files not
// open in the editor. Zero value is unusable; construct with New.
type Index struct {
	mu      sync.RWMutex
	entries map[string]types.IndexEntry
}

// New returns an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]types.IndexEntry)}
}

// UpdateFromDisk replaces id's entry, unless id is present in openDocs
// (a currently-open document is authoritative and this call is
// refused). Returns whether the update was applied.
func (idx *Index) UpdateFromDisk(id types.FileID, openDocs map[string]struct{}, entry types.IndexEntry) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, open := openDocs[id.String()]; open {
		return false
	}
	idx.entries[id.String()] = entry
	return true
}

// ApplyScan merges every scan result into the index via UpdateFromDisk,
// returning the count actually applied (i.e. not refused for being
// open).
func (idx *Index) ApplyScan(results []ScanResult, openDocs map[string]struct{}) int {
	applied := 0
	for _, r := range results {
		if idx.UpdateFromDisk(r.ID, openDocs, r.Entry) {
			applied++
		}
	}
	return applied
}

// Contains reports whether id has an entry.
func (idx *Index) Contains(id types.FileID) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.entries[id.String()]
	return ok
}

// Get returns id's full index entry.
func (idx *Index) Get(id types.FileID) (types.IndexEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[id.String()]
	return e, ok
}

// GetArtifacts returns id's ScopeArtifacts.
func (idx *Index) GetArtifacts(id types.FileID) (types.ScopeArtifacts, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[id.String()]
	return e.Artifacts, ok
}

// Remove evicts id's entry, if any.
func (idx *Index) Remove(id types.FileID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, id.String())
}

// Len reports the number of indexed files.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// EnrichWorkingDirectories recomputes InheritedWorkingDirectory for
// every currently indexed file, walking each file's backward-directive
// parents (cycle-safe, bounded by maxDepth) using currently-known
// metadata as the resolver, per spec §4.8's post-scan enrichment pass.
// Backward-directive paths are resolved relative to the referring
// (child) file via C2's pathresolve.Resolve, restricted to files
// already present in this index.
func (idx *Index) EnrichWorkingDirectories(workspaceRoot string, maxDepth int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	exists := func(p string) bool {
		_, ok := idx.entries[types.NewFileID(p).String()]
		return ok
	}

	for key, entry := range idx.entries {
		if entry.Metadata.WorkingDirectory != nil {
			entry.Metadata.InheritedWorkingDirectory = entry.Metadata.WorkingDirectory
			idx.entries[key] = entry
			continue
		}
		visited := map[string]bool{key: true}
		entry.Metadata.InheritedWorkingDirectory = idx.walkParentWDLocked(
			types.NewFileID(key), entry.Metadata, workspaceRoot, exists, maxDepth, visited)
		idx.entries[key] = entry
	}
}

func (idx *Index) walkParentWDLocked(self types.FileID, meta types.CrossFileMetadata, workspaceRoot string, exists pathresolve.Exists, depth int, visited map[string]bool) *string {
	if depth <= 0 {
		return nil
	}
	for _, back := range meta.SourcedBy {
		ctx := pathresolve.PathContext{ReferringFile: self, WorkspaceRoot: workspaceRoot}
		parentID, ok := pathresolve.Resolve(back.Path, ctx, pathresolve.Backward, exists)
		if !ok || visited[parentID.String()] {
			continue
		}
		visited[parentID.String()] = true

		parent, ok := idx.entries[parentID.String()]
		if !ok {
			continue
		}
		if parent.Metadata.WorkingDirectory != nil {
			return parent.Metadata.WorkingDirectory
		}
		if found := idx.walkParentWDLocked(parentID, parent.Metadata, workspaceRoot, exists, depth-1, visited); found != nil {
			return found
		}
	}
	return nil
}
