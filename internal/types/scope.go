package types

// SymbolKind classifies a scope binding's origin.
type SymbolKind uint8

const (
	SymbolAssignment SymbolKind = iota // <-, =, <<- at file scope
	SymbolAnnotation                   // @lsp-var / @lsp-func declared
	SymbolS3Method                     // S3 method visible at top level
	SymbolS4Method
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolAnnotation:
		return "annotation"
	case SymbolS3Method:
		return "s3_method"
	case SymbolS4Method:
		return "s4_method"
	default:
		return "assignment"
	}
}

// Range is a half-open [Start, End) position range within one file, in
// (line, UTF-16 column) coordinates, matching the position convention
// used throughout the directive/AST extraction layer.
type Range struct {
	StartLine, StartColumn uint32
	EndLine, EndColumn     uint32
}

// SymbolDefinition attributes one exported symbol with its definition
// site and kind.
type SymbolDefinition struct {
	Name  string
	Kind  SymbolKind
	Range Range
}

// ScopeKind classifies a local binding's enclosing scope.
type ScopeKind uint8

const (
	ScopeFile ScopeKind = iota
	ScopeFunction
	ScopeLoop
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeFunction:
		return "function"
	case ScopeLoop:
		return "loop"
	default:
		return "file"
	}
}

// LocalBinding is one per-function-scope binding entry, used by feature
// handlers for shadowing analysis.
type LocalBinding struct {
	Symbol string
	Range  Range
	Scope  ScopeKind
}

// ScopeArtifacts is the pure, deterministic result of analyzing one
// file's (text, tree, metadata declarations) per spec §4.6.
type ScopeArtifacts struct {
	ExportedInterface map[string]SymbolDefinition
	LocalBindings     []LocalBinding
	ReferencedSymbols map[string]struct{}
}

// NewScopeArtifacts returns an empty artifacts value with initialized
// maps.
func NewScopeArtifacts() ScopeArtifacts {
	return ScopeArtifacts{
		ExportedInterface: make(map[string]SymbolDefinition),
		ReferencedSymbols: make(map[string]struct{}),
	}
}

// IndexEntry is the workspace index's per-file record.
type IndexEntry struct {
	Snapshot      FileSnapshot
	Metadata      CrossFileMetadata
	Artifacts     ScopeArtifacts
	IndexedAtVersion uint64
}

// ParentResolutionKind discriminates ParentResolution's three variants.
type ParentResolutionKind uint8

const (
	ParentNone ParentResolutionKind = iota
	ParentSingle
	ParentAmbiguous
)

// ParentResolution is the tagged result of resolving a child file's
// effective parent (C5). Modeled as a struct with a kind discriminant
// per the no-inheritance design note.
type ParentResolution struct {
	kind           ParentResolutionKind
	parent         FileID
	callSiteLine   *uint32
	callSiteColumn *uint32
	alternatives   []FileID
}

// NoParent returns the None variant.
func NoParent() ParentResolution { return ParentResolution{kind: ParentNone} }

// SingleParent returns the Single variant.
func SingleParent(parent FileID, line, column *uint32) ParentResolution {
	return ParentResolution{kind: ParentSingle, parent: parent, callSiteLine: line, callSiteColumn: column}
}

// AmbiguousParent returns the Ambiguous variant.
func AmbiguousParent(selected FileID, line, column *uint32, alternatives []FileID) ParentResolution {
	return ParentResolution{
		kind:           ParentAmbiguous,
		parent:         selected,
		callSiteLine:   line,
		callSiteColumn: column,
		alternatives:   alternatives,
	}
}

// Kind reports which variant p holds.
func (p ParentResolution) Kind() ParentResolutionKind { return p.kind }

// Parent returns the selected parent; valid for Single and Ambiguous.
func (p ParentResolution) Parent() FileID { return p.parent }

// CallSiteLine returns the selected call site's line, if any.
func (p ParentResolution) CallSiteLine() *uint32 { return p.callSiteLine }

// CallSiteColumn returns the selected call site's column, if any.
func (p ParentResolution) CallSiteColumn() *uint32 { return p.callSiteColumn }

// Alternatives returns the suppressed alternative parents; valid only
// for Ambiguous.
func (p ParentResolution) Alternatives() []FileID { return p.alternatives }
