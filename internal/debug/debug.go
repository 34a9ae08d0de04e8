// Package debug provides file-only debug logging for the cross-file
// awareness core. Output never goes to stdout/stderr: those streams
// belong to whatever protocol transport embeds this module, and writing
// to them would corrupt that transport's framing.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug is a build-time flag, e.g.
//   go build -ldflags "-X github.com/standardbeagle/r-lsp-core/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// TransportMode tracks whether the embedding process is actively serving
// a protocol transport on stdio. When true, all debug output is
// suppressed regardless of EnableDebug/DEBUG.
var TransportMode = false

var (
	debugOutput io.Writer
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetTransportMode enables or disables stdio-suppression mode.
func SetTransportMode(enabled bool) { TransportMode = enabled }

// SetDebugOutput sets a custom writer for debug output. Pass nil to
// disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile opens a timestamped log file under
// os.TempDir()/rlsp-core-debug-logs and directs debug output to it.
// Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "rlsp-core-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether debug logging is currently active.
func IsDebugEnabled() bool {
	if TransportMode {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

func writer() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Log writes a component-tagged debug line. GRAPH, SCHED, PARENT,
// DIRECTIVE, INDEX, WORKSPACE, META are the component tags this module uses.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := writer()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format+"\n", append([]interface{}{component}, args...)...)
}

// LogGraph logs a dependency-graph event.
func LogGraph(format string, args ...interface{}) { Log("GRAPH", format, args...) }

// LogScheduler logs a revalidation-scheduler event.
func LogScheduler(format string, args ...interface{}) { Log("SCHED", format, args...) }

// LogParent logs a parent-resolution event.
func LogParent(format string, args ...interface{}) { Log("PARENT", format, args...) }

// LogDirective logs a directive/AST extraction event.
func LogDirective(format string, args ...interface{}) { Log("DIRECTIVE", format, args...) }

// LogIndex logs a background-indexer event.
func LogIndex(format string, args ...interface{}) { Log("INDEX", format, args...) }

// LogWorkspace logs a workspace-index event.
func LogWorkspace(format string, args ...interface{}) { Log("WORKSPACE", format, args...) }

// LogMeta logs a metadata-cache event.
func LogMeta(format string, args ...interface{}) { Log("META", format, args...) }

// CatastrophicError logs an error indicating internal invariant
// violation (spec error category 8); the offending task is abandoned by
// its caller, not this function.
func CatastrophicError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !TransportMode {
		if w := writer(); w != nil {
			fmt.Fprintf(w, "[CATASTROPHIC] %s\n", msg)
		}
	}
}
