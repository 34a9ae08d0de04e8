package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/standardbeagle/r-lsp-core/internal/config"
	"github.com/standardbeagle/r-lsp-core/internal/depgraph"
	"github.com/standardbeagle/r-lsp-core/internal/metacache"
	"github.com/standardbeagle/r-lsp-core/internal/namespace"
	"github.com/standardbeagle/r-lsp-core/internal/rerrors"
	"github.com/standardbeagle/r-lsp-core/internal/types"
	"github.com/standardbeagle/r-lsp-core/internal/workspace"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestComputeMetadataFindsDirectiveSource(t *testing.T) {
	content := []byte("# @lsp-source: helpers.R\nx <- 1\n")
	meta, artifacts := computeMetadata("main.R", content)

	if len(meta.Sources) != 1 || meta.Sources[0].Path != "helpers.R" {
		t.Fatalf("meta.Sources = %+v, want one entry for helpers.R", meta.Sources)
	}
	if artifacts.ExportedInterface == nil {
		t.Error("expected ExportedInterface to be initialized")
	}
}

func TestScanEndToEndBuildsDependencyEdge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "parent.R", "source(\"child.R\")\n")
	writeFile(t, dir, "child.R", "y <- 1\n")

	cfg := config.Default()
	cfg.Project.Root = dir

	results, err := workspace.Scan(context.Background(), []string{dir}, cfg.Workspace, dir, nil, computeMetadata)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d scan results, want 2", len(results))
	}

	idx := workspace.New()
	idx.ApplyScan(results, nil)
	idx.EnrichWorkingDirectories(dir, cfg.CrossFile.MaxChainDepth)

	graph := depgraph.New()
	var conflicts []*rerrors.ConflictError
	for _, r := range results {
		entry, _ := idx.Get(r.ID)
		resolve := resolverFor(r.ID, entry.Metadata, dir, idx)
		result := graph.UpdateFile(r.ID, entry.Metadata, resolve)
		conflicts = append(conflicts, result.Conflicts...)
	}

	report := buildReport(dir, results, graph, conflicts, nil, nil, nil)
	if len(report.Edges) != 1 {
		t.Fatalf("report.Edges = %+v, want exactly one edge", report.Edges)
	}
	parentID := types.NewFileID(filepath.Join(dir, "parent.R"))
	childID := types.NewFileID(filepath.Join(dir, "child.R"))
	if report.Edges[0].From != parentID.String() || report.Edges[0].To != childID.String() {
		t.Errorf("edge = %+v, want %s -> %s", report.Edges[0], parentID, childID)
	}
}

func TestScanCommandFingerprintsAndLibraryExports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.R", "library(mypkg)\nx <- 1\n")
	if err := os.MkdirAll(filepath.Join(dir, "mypkg"), 0o755); err != nil {
		t.Fatalf("mkdir mypkg: %v", err)
	}
	writeFile(t, filepath.Join(dir, "mypkg"), "NAMESPACE", "export(myfun)\n")

	cfg := config.Default()
	cfg.Project.Root = dir

	results, err := workspace.Scan(context.Background(), []string{dir}, cfg.Workspace, dir, nil, computeMetadata)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	idx := workspace.New()
	idx.ApplyScan(results, nil)
	idx.EnrichWorkingDirectories(dir, cfg.CrossFile.MaxChainDepth)

	graph := depgraph.New()
	metaCache := metacache.New()
	fingerprints := make(map[string]uint64, len(results))
	libraryExports := make(map[string][]string)
	for _, r := range results {
		entry, _ := idx.Get(r.ID)
		resolve := resolverFor(r.ID, entry.Metadata, dir, idx)
		graph.UpdateFile(r.ID, entry.Metadata, resolve)
		fingerprints[r.ID.String()] = metaCache.Put(r.ID, entry.Metadata)
		for _, call := range entry.Metadata.LibraryCalls {
			exports, err := namespace.ParseNamespaceExports(filepath.Join(dir, call.Package, "NAMESPACE"))
			if err != nil {
				continue
			}
			libraryExports[call.Package] = exports
		}
	}

	report := buildReport(dir, results, graph, nil, nil, fingerprints, libraryExports)

	mainID := types.NewFileID(filepath.Join(dir, "main.R"))
	if _, ok := report.Fingerprints[mainID.String()]; !ok {
		t.Errorf("report.Fingerprints missing entry for main.R, got %+v", report.Fingerprints)
	}
	exports, ok := report.LibraryExports["mypkg"]
	if !ok || len(exports) != 1 || exports[0] != "myfun" {
		t.Errorf("report.LibraryExports[mypkg] = %v, ok=%v, want [myfun]", exports, ok)
	}
}

func TestScanReportWriteText(t *testing.T) {
	report := scanReport{
		Root:         "/proj",
		FilesScanned: 2,
		Edges:        []edgeReport{{From: "/proj/a.R", To: "/proj/b.R"}},
	}
	var buf bytes.Buffer
	if err := report.writeText(&buf); err != nil {
		t.Fatalf("writeText: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "/proj/a.R -> /proj/b.R") {
		t.Errorf("writeText output missing edge line, got:\n%s", out)
	}
}

func TestScanReportWriteJSON(t *testing.T) {
	report := scanReport{Root: "/proj", FilesScanned: 1}
	var buf bytes.Buffer
	if err := report.writeJSON(&buf); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"root": "/proj"`) {
		t.Errorf("writeJSON output missing root field, got:\n%s", buf.String())
	}
}
