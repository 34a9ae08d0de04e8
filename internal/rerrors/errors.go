// Package rerrors defines the typed error taxonomy for the cross-file
// awareness core, covering spec error categories 2-8 (category 1,
// directive parse failure, is deliberately not an error value — it is
// silently skipped by the directive extractor).
package rerrors

import (
	"fmt"
	"time"

	"github.com/standardbeagle/r-lsp-core/internal/types"
)

// ErrorType classifies an error for logging/metrics purposes.
type ErrorType string

const (
	ErrorTypeResolution      ErrorType = "path_resolution" // category 2
	ErrorTypeCycle           ErrorType = "cycle"            // category 3
	ErrorTypeAmbiguousParent ErrorType = "ambiguous_parent" // category 4
	ErrorTypeConflict        ErrorType = "directive_conflict" // category 5
	ErrorTypeIndexing        ErrorType = "indexing"          // category 6
	ErrorTypeSubprocess      ErrorType = "subprocess_timeout" // category 7
	ErrorTypeInternal        ErrorType = "internal"          // category 8
	ErrorTypeConfig          ErrorType = "config"
)

// ResolutionError represents a path-resolution failure (category 2):
// a directive or source() call names a path that could not be resolved
// to a real file.
type ResolutionError struct {
	Type       ErrorType
	FileID     types.FileID
	Path       string
	Line       uint32
	Underlying error
	Timestamp  time.Time
}

// NewResolutionError creates a path-resolution failure for path, named
// from referrer at line.
func NewResolutionError(referrer types.FileID, path string, line uint32, err error) *ResolutionError {
	return &ResolutionError{
		Type:       ErrorTypeResolution,
		FileID:     referrer,
		Path:       path,
		Line:       line,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: could not resolve %q referenced from %s:%d: %v",
		e.Type, e.Path, e.FileID, e.Line, e.Underlying)
}

func (e *ResolutionError) Unwrap() error { return e.Underlying }

// CycleError represents a detected dependency cycle (category 3). The
// graph is left intact; this is informational, not a failure to
// recover from.
type CycleError struct {
	Type      ErrorType
	From, To  types.FileID
	Timestamp time.Time
}

// NewCycleError reports that the edge (from -> to) closes a cycle.
func NewCycleError(from, to types.FileID) *CycleError {
	return &CycleError{Type: ErrorTypeCycle, From: from, To: to, Timestamp: time.Now()}
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: cycle closed by edge %s -> %s", e.Type, e.From, e.To)
}

// AmbiguousParentError represents an unresolved parent ambiguity
// (category 4).
type AmbiguousParentError struct {
	Type         ErrorType
	Child        types.FileID
	Selected     types.FileID
	Alternatives []types.FileID
	Timestamp    time.Time
}

// NewAmbiguousParentError reports that child has more than one candidate
// parent.
func NewAmbiguousParentError(child, selected types.FileID, alternatives []types.FileID) *AmbiguousParentError {
	return &AmbiguousParentError{
		Type:         ErrorTypeAmbiguousParent,
		Child:        child,
		Selected:     selected,
		Alternatives: alternatives,
		Timestamp:    time.Now(),
	}
}

func (e *AmbiguousParentError) Error() string {
	return fmt.Sprintf("%s: %s has ambiguous parent, selected %s, %d alternative(s)",
		e.Type, e.Child, e.Selected, len(e.Alternatives))
}

// ConflictError represents a directive-vs-AST call-site conflict
// (category 5): kept as a warning, the directive always wins.
type ConflictError struct {
	Type          ErrorType
	From, To      types.FileID
	DirectiveLine uint32
	Timestamp     time.Time
}

// NewConflictError reports that a directive edge overrode an
// AST-detected edge with a differing call site.
func NewConflictError(from, to types.FileID, directiveLine uint32) *ConflictError {
	return &ConflictError{
		Type:          ErrorTypeConflict,
		From:          from,
		To:            to,
		DirectiveLine: directiveLine,
		Timestamp:     time.Now(),
	}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: directive overrides AST-detected source() call to %s at different call site (directive line %d)",
		e.Type, e.To, e.DirectiveLine)
}

// IndexingError represents an I/O or processing failure while
// background-indexing a file (category 6). Logged, task skipped, queue
// continues.
type IndexingError struct {
	Type       ErrorType
	FileID     types.FileID
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewIndexingError creates an indexing error with context.
func NewIndexingError(fileID types.FileID, op string, err error) *IndexingError {
	return &IndexingError{Type: ErrorTypeIndexing, FileID: fileID, Operation: op, Underlying: err, Timestamp: time.Now()}
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FileID, e.Underlying)
}

func (e *IndexingError) Unwrap() error { return e.Underlying }

// SubprocessError represents an R-introspection subprocess timeout
// (category 7). The cache retains any previously-known value; callers
// degrade gracefully.
type SubprocessError struct {
	Type       ErrorType
	Package    string
	Underlying error
	Timestamp  time.Time
}

// NewSubprocessError creates a subprocess timeout error for the given
// package introspection request.
func NewSubprocessError(pkg string, err error) *SubprocessError {
	return &SubprocessError{Type: ErrorTypeSubprocess, Package: pkg, Underlying: err, Timestamp: time.Now()}
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s: introspection of package %q failed: %v", e.Type, e.Package, e.Underlying)
}

func (e *SubprocessError) Unwrap() error { return e.Underlying }

// InvariantError represents an internal invariant violation (category
// 8): logged at error level, the offending task is abandoned, state
// must remain consistent.
type InvariantError struct {
	Type      ErrorType
	Component string
	Detail    string
	Timestamp time.Time
}

// NewInvariantError creates an invariant-violation error for component.
func NewInvariantError(component, detail string) *InvariantError {
	return &InvariantError{Type: ErrorTypeInternal, Component: component, Detail: detail, Timestamp: time.Now()}
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: invariant violated in %s: %s", e.Type, e.Component, e.Detail)
}

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Type       ErrorType
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a config validation error.
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Type: ErrorTypeConfig, Field: field, Value: value, Underlying: err, Timestamp: time.Now()}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: field %s (value %q): %v", e.Type, e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }
