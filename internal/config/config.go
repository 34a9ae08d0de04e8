// Package config holds the typed configuration tree for the cross-file
// awareness core, loaded from an optional .rlsp.kdl file in the
// workspace root and validated/defaulted before use.
//
// The struct-tree-plus-Validate-per-section shape, and the KDL loader
// beside it in kdl_config.go, follow the teacher's internal/config
// convention; the knob set itself is re-keyed to this project's
// CrossFile/Workspace/Logging sections rather than the teacher's
// indexing/search ones.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// CallSiteDefault selects where an inferred-but-unlocatable call site
// is assumed to fall within the parent file.
type CallSiteDefault string

const (
	CallSiteDefaultEnd   CallSiteDefault = "end"
	CallSiteDefaultStart CallSiteDefault = "start"
)

// Config is the root configuration tree.
type Config struct {
	Project    Project
	CrossFile  CrossFile
	Workspace  Workspace
	Logging    Logging
	RSubprocess RSubprocess
}

// Project identifies the workspace this server is running over.
type Project struct {
	Root string
}

// CrossFile holds the knobs spec §6 exposes for directive/dependency
// resolution behavior.
type CrossFile struct {
	// AssumeCallSite controls where an unresolvable match= pattern or a
	// Default call site with no other information falls back to.
	AssumeCallSite CallSiteDefault
	// MaxChainDepth bounds the inherited-working-directory walk
	// (workspace.Index.EnrichWorkingDirectories) against pathological
	// long chains. The transitive-dependents traversal (C4) does not
	// read it; its callers pass their own depth.
	MaxChainDepth int
	// OnDemandIndexingEnabled toggles C11's background indexer.
	OnDemandIndexingEnabled bool
	// OnDemandIndexingMaxQueueSize bounds C11's FIFO queue.
	OnDemandIndexingMaxQueueSize int
	// OnDemandIndexingMaxTransitiveDepth bounds how many source()
	// hops C11 will follow from a directly-indexed file.
	OnDemandIndexingMaxTransitiveDepth int
}

// Workspace controls workspace-wide file discovery (C8).
type Workspace struct {
	// Include/Exclude are doublestar glob patterns layered over the
	// default .R/.r/.Rmd extension filter.
	Include []string
	Exclude []string
	// RespectGitignore additionally excludes paths matched by the
	// workspace's .gitignore.
	RespectGitignore bool
	// MaxFileCount bounds the initial workspace scan.
	MaxFileCount int
	// MaxFileSizeBytes skips files larger than this during scanning.
	MaxFileSizeBytes int64
	// ParallelWorkers bounds the errgroup-driven scan's concurrency.
	// 0 means NumCPU.
	ParallelWorkers int
}

// Logging controls the file-only debug logger.
type Logging struct {
	Enabled bool
	Dir     string
}

// RSubprocess controls the R introspection subprocess pool (C15).
type RSubprocess struct {
	RPath          string
	TimeoutSeconds int
	MaxConcurrent  int
}

// Default returns the configuration used when no .rlsp.kdl file is
// present, or as the base that a loaded file is merged over.
func Default() Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return Config{
		Project: Project{Root: root},
		CrossFile: CrossFile{
			AssumeCallSite:                      CallSiteDefaultEnd,
			MaxChainDepth:                       10,
			OnDemandIndexingEnabled:             true,
			OnDemandIndexingMaxQueueSize:        50,
			OnDemandIndexingMaxTransitiveDepth:  3,
		},
		Workspace: Workspace{
			RespectGitignore: true,
			MaxFileCount:     20000,
			MaxFileSizeBytes: 5 * 1024 * 1024,
			ParallelWorkers:  runtime.NumCPU(),
		},
		Logging: Logging{
			Enabled: false,
		},
		RSubprocess: RSubprocess{
			RPath:          "Rscript",
			TimeoutSeconds: 10,
			MaxConcurrent:  2,
		},
	}
}

// Load reads .rlsp.kdl from projectRoot if present, merges it over
// Default(), validates the result, and returns it. A missing file is
// not an error.
func Load(projectRoot string) (Config, error) {
	cfg := Default()
	cfg.Project.Root = projectRoot

	kdlPath := filepath.Join(projectRoot, ".rlsp.kdl")
	content, err := os.ReadFile(kdlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, validate(&cfg)
		}
		return cfg, fmt.Errorf("reading %s: %w", kdlPath, err)
	}

	if err := mergeKDL(&cfg, string(content)); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", kdlPath, err)
	}

	return cfg, validate(&cfg)
}
