package types

import "sort"

// CallSiteKind discriminates CallSiteSpec's three variants. Modeled as a
// tagged union via a discriminant plus constructors rather than an
// interface hierarchy, per the design notes' explicit guidance against
// inheritance for this type.
type CallSiteKind uint8

const (
	// CallSiteDefaultKind means no explicit call site was given; the
	// parent resolver must infer or fall back to a configured default.
	CallSiteDefaultKind CallSiteKind = iota
	// CallSiteLineKind carries an explicit 0-based line number.
	CallSiteLineKind
	// CallSiteMatchKind carries a literal pattern to locate in the
	// parent's text.
	CallSiteMatchKind
)

// CallSiteSpec is the tagged union {Default | Line(n) | Match(pattern)}
// from spec's BackwardDirective.call_site field.
type CallSiteSpec struct {
	kind    CallSiteKind
	line    uint32
	pattern string
}

// DefaultCallSite returns the Default variant.
func DefaultCallSite() CallSiteSpec { return CallSiteSpec{kind: CallSiteDefaultKind} }

// LineCallSite returns the Line(n) variant. n is 0-based.
func LineCallSite(n uint32) CallSiteSpec { return CallSiteSpec{kind: CallSiteLineKind, line: n} }

// MatchCallSite returns the Match(pattern) variant.
func MatchCallSite(pattern string) CallSiteSpec {
	return CallSiteSpec{kind: CallSiteMatchKind, pattern: pattern}
}

// Kind reports which variant c holds.
func (c CallSiteSpec) Kind() CallSiteKind { return c.kind }

// Line returns the line number for the Line variant; valid only when
// Kind() == CallSiteLineKind.
func (c CallSiteSpec) Line() uint32 { return c.line }

// Pattern returns the pattern for the Match variant; valid only when
// Kind() == CallSiteMatchKind.
func (c CallSiteSpec) Pattern() string { return c.pattern }

func (c CallSiteSpec) String() string {
	switch c.kind {
	case CallSiteLineKind:
		return "Line"
	case CallSiteMatchKind:
		return "Match"
	default:
		return "Default"
	}
}

// ForwardSource is one detected outbound source()/sys.source() edge,
// whether declared by an @lsp-source-family directive or detected in the
// AST.
type ForwardSource struct {
	Path               string
	Line               uint32
	Column             uint32
	IsDirective        bool
	Local              bool
	Chdir              bool
	IsSysSource        bool
	SysSourceGlobalEnv bool
}

// BackwardDirective declares that the file containing it is sourced by
// the named parent.
type BackwardDirective struct {
	Path          string
	CallSite      CallSiteSpec
	DirectiveLine uint32
}

// PackageCall is a detected library()/require()/loadNamespace() call.
type PackageCall struct {
	Package string
	Line    uint32
	Column  uint32
}

// CrossFileMetadata is the value derived purely from one file's text by
// the directive extractor (C1) and enriched by the metadata cache (C3).
type CrossFileMetadata struct {
	Sources                    []ForwardSource
	SourcedBy                  []BackwardDirective
	LibraryCalls               []PackageCall
	WorkingDirectory           *string
	InheritedWorkingDirectory  *string
	IgnoredLines               map[uint32]struct{}
	IgnoredNextLines           map[uint32]struct{}
}

// NewCrossFileMetadata returns an empty metadata record with initialized
// set fields.
func NewCrossFileMetadata() CrossFileMetadata {
	return CrossFileMetadata{
		IgnoredLines:     make(map[uint32]struct{}),
		IgnoredNextLines: make(map[uint32]struct{}),
	}
}

// IsLineIgnored reports whether diagnostics on line should be suppressed,
// either because the line itself carries @lsp-ignore or the previous
// line carries @lsp-ignore-next.
func (m CrossFileMetadata) IsLineIgnored(line uint32) bool {
	if _, ok := m.IgnoredLines[line]; ok {
		return true
	}
	_, ok := m.IgnoredNextLines[line]
	return ok
}

// SortSources sorts m.Sources by document order (line, column), the
// order spec's merge rule requires.
func (m *CrossFileMetadata) SortSources() {
	sort.SliceStable(m.Sources, func(i, j int) bool {
		a, b := m.Sources[i], m.Sources[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// SortLibraryCalls sorts m.LibraryCalls by document order.
func (m *CrossFileMetadata) SortLibraryCalls() {
	sort.SliceStable(m.LibraryCalls, func(i, j int) bool {
		a, b := m.LibraryCalls[i], m.LibraryCalls[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}
