package types

// DependencyEdge is a dependency-graph edge from a parent (caller) to a
// child (callee). Equality for deduplication uses the tuple excluding
// IsDirective, per spec's DependencyEdge definition.
type DependencyEdge struct {
	From           FileID
	To             FileID
	CallSiteLine   *uint32
	CallSiteColumn *uint32
	Local          bool
	Chdir          bool
	IsSysSource    bool
	IsDirective    bool
}

// edgeKey is the full deduplication key: (from, to, call_site_line,
// call_site_column, local, chdir, is_sys_source). Two edges with equal
// keys are the same edge regardless of IsDirective.
type edgeKey struct {
	from, to                     string
	callSiteLine, callSiteColumn uint32
	hasLine, hasColumn           bool
	local, chdir, isSysSource    bool
}

// Key returns e's deduplication key.
func (e DependencyEdge) Key() any {
	k := edgeKey{
		from:        e.From.String(),
		to:          e.To.String(),
		local:       e.Local,
		chdir:       e.Chdir,
		isSysSource: e.IsSysSource,
	}
	if e.CallSiteLine != nil {
		k.hasLine = true
		k.callSiteLine = *e.CallSiteLine
	}
	if e.CallSiteColumn != nil {
		k.hasColumn = true
		k.callSiteColumn = *e.CallSiteColumn
	}
	return k
}

// FromToPair returns the (from, to) pair used for directive-vs-AST
// conflict detection, ignoring call-site and flags.
func (e DependencyEdge) FromToPair() (FileID, FileID) { return e.From, e.To }

// Uint32Ptr is a tiny helper for building optional uint32 fields inline.
func Uint32Ptr(v uint32) *uint32 { return &v }
