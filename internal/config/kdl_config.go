package config

import (
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// mergeKDL parses content as KDL and overwrites cfg's fields with any
// values it specifies, leaving Default()'s values in place for
// everything it doesn't mention.
func mergeKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				if nodeName(cn) == "root" {
					if s, ok := firstStringArg(cn); ok {
						cfg.Project.Root = s
					}
				}
			}
		case "cross_file":
			mergeCrossFile(cfg, n)
		case "workspace":
			mergeWorkspace(cfg, n)
		case "logging":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Logging.Enabled = b
					}
				case "dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Logging.Dir = s
					}
				}
			}
		case "r_subprocess":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "r_path":
					if s, ok := firstStringArg(cn); ok {
						cfg.RSubprocess.RPath = s
					}
				case "timeout_seconds":
					if v, ok := firstIntArg(cn); ok {
						cfg.RSubprocess.TimeoutSeconds = v
					}
				case "max_concurrent":
					if v, ok := firstIntArg(cn); ok {
						cfg.RSubprocess.MaxConcurrent = v
					}
				}
			}
		}
	}

	return nil
}

func mergeCrossFile(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "assume_call_site":
			if s, ok := firstStringArg(cn); ok {
				switch s {
				case string(CallSiteDefaultStart):
					cfg.CrossFile.AssumeCallSite = CallSiteDefaultStart
				case string(CallSiteDefaultEnd):
					cfg.CrossFile.AssumeCallSite = CallSiteDefaultEnd
				}
			}
		case "max_chain_depth":
			if v, ok := firstIntArg(cn); ok {
				cfg.CrossFile.MaxChainDepth = v
			}
		case "on_demand_indexing":
			for _, on := range cn.Children {
				switch nodeName(on) {
				case "enabled":
					if b, ok := firstBoolArg(on); ok {
						cfg.CrossFile.OnDemandIndexingEnabled = b
					}
				case "max_queue_size":
					if v, ok := firstIntArg(on); ok {
						cfg.CrossFile.OnDemandIndexingMaxQueueSize = v
					}
				case "max_transitive_depth":
					if v, ok := firstIntArg(on); ok {
						cfg.CrossFile.OnDemandIndexingMaxTransitiveDepth = v
					}
				}
			}
		}
	}
}

func mergeWorkspace(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "include":
			cfg.Workspace.Include = collectStringArgs(cn)
		case "exclude":
			cfg.Workspace.Exclude = collectStringArgs(cn)
		case "respect_gitignore":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Workspace.RespectGitignore = b
			}
		case "max_file_count":
			if v, ok := firstIntArg(cn); ok {
				cfg.Workspace.MaxFileCount = v
			}
		case "max_file_size":
			if v, ok := firstIntArg(cn); ok {
				cfg.Workspace.MaxFileSizeBytes = int64(v)
			}
		case "parallel_workers":
			if v, ok := firstIntArg(cn); ok {
				cfg.Workspace.ParallelWorkers = v
			}
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
