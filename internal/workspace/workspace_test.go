package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/standardbeagle/r-lsp-core/internal/config"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func noopCompute(path string, content []byte) (types.CrossFileMetadata, types.ScopeArtifacts) {
	return types.NewCrossFileMetadata(), types.NewScopeArtifacts()
}

func TestScanFindsRFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.R", "x <- 1\n")
	writeFile(t, dir, "sub/b.r", "y <- 2\n")
	writeFile(t, dir, "notes.txt", "ignore me")

	cfg := config.Workspace{ParallelWorkers: 2}
	results, err := Scan(context.Background(), []string{dir}, cfg, dir, nil, noopCompute)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
}

func TestScanRespectsExclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.R", "x <- 1\n")
	writeFile(t, dir, "generated/skip.R", "y <- 2\n")

	cfg := config.Workspace{ParallelWorkers: 2, Exclude: []string{"generated/**"}}
	results, err := Scan(context.Background(), []string{dir}, cfg, dir, nil, noopCompute)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result after exclude, got %d: %+v", len(results), results)
	}
}

func TestScanRespectsMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.R", "x <- 1\n")

	cfg := config.Workspace{ParallelWorkers: 2, MaxFileSizeBytes: 1}
	results, err := Scan(context.Background(), []string{dir}, cfg, dir, nil, noopCompute)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results under a 1-byte size cap, got %d", len(results))
	}
}

func TestUpdateFromDiskRefusesOpenDocument(t *testing.T) {
	idx := New()
	id := types.NewFileID("/a.R")
	openDocs := map[string]struct{}{id.String(): {}}

	applied := idx.UpdateFromDisk(id, openDocs, types.IndexEntry{})
	if applied {
		t.Error("expected UpdateFromDisk to refuse an open document")
	}
	if idx.Contains(id) {
		t.Error("expected index to remain empty after refused update")
	}
}

func TestUpdateFromDiskAppliesWhenNotOpen(t *testing.T) {
	idx := New()
	id := types.NewFileID("/a.R")

	applied := idx.UpdateFromDisk(id, nil, types.IndexEntry{IndexedAtVersion: 3})
	if !applied {
		t.Fatal("expected update to apply")
	}
	entry, ok := idx.Get(id)
	if !ok || entry.IndexedAtVersion != 3 {
		t.Errorf("unexpected entry after update: %+v ok=%v", entry, ok)
	}
}

func TestGetArtifactsAndContains(t *testing.T) {
	idx := New()
	id := types.NewFileID("/a.R")
	if idx.Contains(id) {
		t.Fatal("expected empty index to not contain id")
	}
	artifacts := types.NewScopeArtifacts()
	artifacts.ExportedInterface["x"] = types.SymbolDefinition{Name: "x"}
	idx.UpdateFromDisk(id, nil, types.IndexEntry{Artifacts: artifacts})

	got, ok := idx.GetArtifacts(id)
	if !ok || len(got.ExportedInterface) != 1 {
		t.Errorf("unexpected artifacts: %+v ok=%v", got, ok)
	}
}

func TestEnrichWorkingDirectoriesWalksParent(t *testing.T) {
	idx := New()
	parent := types.NewFileID("/ws/parent.R")
	child := types.NewFileID("/ws/child.R")

	wd := "/data"
	parentMeta := types.NewCrossFileMetadata()
	parentMeta.WorkingDirectory = &wd
	idx.UpdateFromDisk(parent, nil, types.IndexEntry{Metadata: parentMeta})

	childMeta := types.NewCrossFileMetadata()
	childMeta.SourcedBy = []types.BackwardDirective{{Path: "parent.R"}}
	idx.UpdateFromDisk(child, nil, types.IndexEntry{Metadata: childMeta})

	idx.EnrichWorkingDirectories("/ws", 10)

	entry, _ := idx.Get(child)
	if entry.Metadata.InheritedWorkingDirectory == nil || *entry.Metadata.InheritedWorkingDirectory != "/data" {
		t.Errorf("expected inherited working directory /data, got %v", entry.Metadata.InheritedWorkingDirectory)
	}
}

func TestApplyScanCountsOnlyAppliedEntries(t *testing.T) {
	idx := New()
	openID := types.NewFileID("/open.R")
	closedID := types.NewFileID("/closed.R")
	openDocs := map[string]struct{}{openID.String(): {}}

	results := []ScanResult{
		{ID: openID, Entry: types.IndexEntry{}},
		{ID: closedID, Entry: types.IndexEntry{}},
	}
	applied := idx.ApplyScan(results, openDocs)
	if applied != 1 {
		t.Errorf("ApplyScan() = %d, want 1", applied)
	}
	if idx.Contains(openID) {
		t.Error("expected open document to remain unindexed")
	}
	if !idx.Contains(closedID) {
		t.Error("expected closed document to be indexed")
	}
}
