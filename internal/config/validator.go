package config

import (
	"errors"
	"runtime"
	"strconv"

	"github.com/standardbeagle/r-lsp-core/internal/rerrors"
)

// validate rejects out-of-range values and fills in any zero-valued
// knob that must never be zero at runtime, mirroring the teacher's
// validate-then-smart-default convention.
func validate(cfg *Config) error {
	if cfg.CrossFile.MaxChainDepth <= 0 {
		return rerrors.NewConfigError("cross_file.max_chain_depth", strconv.Itoa(cfg.CrossFile.MaxChainDepth), errOutOfRange)
	}
	if cfg.CrossFile.OnDemandIndexingMaxQueueSize <= 0 {
		return rerrors.NewConfigError("cross_file.on_demand_indexing.max_queue_size", strconv.Itoa(cfg.CrossFile.OnDemandIndexingMaxQueueSize), errOutOfRange)
	}
	if cfg.CrossFile.AssumeCallSite != CallSiteDefaultStart && cfg.CrossFile.AssumeCallSite != CallSiteDefaultEnd {
		cfg.CrossFile.AssumeCallSite = CallSiteDefaultEnd
	}

	if cfg.Workspace.ParallelWorkers <= 0 {
		cfg.Workspace.ParallelWorkers = runtime.NumCPU()
	}
	if cfg.Workspace.MaxFileCount <= 0 {
		cfg.Workspace.MaxFileCount = 20000
	}

	if cfg.RSubprocess.TimeoutSeconds <= 0 {
		cfg.RSubprocess.TimeoutSeconds = 10
	}
	if cfg.RSubprocess.MaxConcurrent <= 0 {
		cfg.RSubprocess.MaxConcurrent = 2
	}
	if cfg.RSubprocess.RPath == "" {
		cfg.RSubprocess.RPath = "Rscript"
	}

	return nil
}

var errOutOfRange = errors.New("value must be positive")
