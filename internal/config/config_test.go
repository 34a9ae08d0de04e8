package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := validate(&cfg); err != nil {
		t.Fatalf("Default() failed validation: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CrossFile.MaxChainDepth != Default().CrossFile.MaxChainDepth {
		t.Errorf("expected default max_chain_depth, got %d", cfg.CrossFile.MaxChainDepth)
	}
}

func TestLoadMergesKDLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	kdl := `
cross_file {
    assume_call_site "start"
    max_chain_depth 5
    on_demand_indexing {
        enabled #false
        max_queue_size 10
    }
}
workspace {
    respect_gitignore #false
    exclude "vendor/**" "*.Rout"
}
`
	if err := os.WriteFile(filepath.Join(dir, ".rlsp.kdl"), []byte(kdl), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CrossFile.AssumeCallSite != CallSiteDefaultStart {
		t.Errorf("assume_call_site = %v, want start", cfg.CrossFile.AssumeCallSite)
	}
	if cfg.CrossFile.MaxChainDepth != 5 {
		t.Errorf("max_chain_depth = %d, want 5", cfg.CrossFile.MaxChainDepth)
	}
	if cfg.CrossFile.OnDemandIndexingEnabled {
		t.Error("expected on_demand_indexing.enabled = false")
	}
	if cfg.CrossFile.OnDemandIndexingMaxQueueSize != 10 {
		t.Errorf("max_queue_size = %d, want 10", cfg.CrossFile.OnDemandIndexingMaxQueueSize)
	}
	if cfg.Workspace.RespectGitignore {
		t.Error("expected respect_gitignore = false")
	}
	if len(cfg.Workspace.Exclude) != 2 {
		t.Errorf("exclude = %v, want 2 entries", cfg.Workspace.Exclude)
	}
}

func TestValidateRejectsNonPositiveMaxChainDepth(t *testing.T) {
	cfg := Default()
	cfg.CrossFile.MaxChainDepth = 0
	if err := validate(&cfg); err == nil {
		t.Error("expected validation error for max_chain_depth = 0")
	}
}
