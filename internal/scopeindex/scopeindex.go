// Package scopeindex implements C6: extracting ScopeArtifacts (exported
// interface, local bindings, referenced symbols) from one file's text,
// syntax tree, and already-parsed directive declarations.
//
// The walk itself is grounded in the teacher's internal/core/ast_store.go
// + internal/parser style of holding one tree-sitter tree per file and
// walking it directly with Node.Kind()/ChildByFieldName/StartByte-EndByte
// slicing, rather than compiled tree-sitter queries; the artifact shape
// (exported/local/referenced) matches the teacher's internal/types
// ScopeInfo triple of (Type, Name, Range).
package scopeindex

import (
	"regexp"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/r-lsp-core/internal/types"
)

var (
	lspVarPattern  = regexp.MustCompile(`#\s*@?lsp-var\s*:?\s*(\S+)`)
	lspFuncPattern = regexp.MustCompile(`#\s*@?lsp-func\s*:?\s*(\S+)`)
)

var assignOperators = map[string]bool{
	"<-": true, "<<-": true, "=": true,
}

var s4Declarators = map[string]bool{
	"setMethod": true, "setGeneric": true, "setClass": true, "setRefClass": true,
}

func nodeText(content []byte, n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// nodeRange converts n's tree-sitter byte-column position into the
// (line, UTF-16 column) convention used throughout this module, using
// lines to resolve each row's own bytes for surrogate-pair-aware
// counting (see types.UTF16Column).
func nodeRange(n *tree_sitter.Node, lines [][]byte) types.Range {
	start, end := n.StartPosition(), n.EndPosition()
	return types.Range{
		StartLine:   uint32(start.Row),
		StartColumn: columnOf(lines, start.Row, int(start.Column)),
		EndLine:     uint32(end.Row),
		EndColumn:   columnOf(lines, end.Row, int(end.Column)),
	}
}

func columnOf(lines [][]byte, row uint, byteOffset int) uint32 {
	if int(row) >= len(lines) {
		return 0
	}
	return types.UTF16Column(lines[row], byteOffset)
}

// Extract computes the ScopeArtifacts for one file from its text,
// optional syntax tree, and the directive-derived declarations already
// present in meta (used for @lsp-var/@lsp-func annotation symbols). A
// nil tree yields only the annotation declarations in
// ExportedInterface; LocalBindings and ReferencedSymbols stay empty,
// since they require the tree.
func Extract(content []byte, tree *tree_sitter.Tree, meta types.CrossFileMetadata) types.ScopeArtifacts {
	artifacts := types.NewScopeArtifacts()

	extractAnnotationDeclarations(content, &artifacts)

	if tree == nil || tree.RootNode() == nil {
		return artifacts
	}

	w := &walker{content: content, lines: splitLines(content), artifacts: &artifacts}
	w.walkTopLevel(tree.RootNode())

	return artifacts
}

type walker struct {
	content   []byte
	lines     [][]byte
	artifacts *types.ScopeArtifacts
}

func splitLines(content []byte) [][]byte {
	return bytesSplit(content, '\n')
}

func bytesSplit(content []byte, sep byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range content {
		if b == sep {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	lines = append(lines, content[start:])
	return lines
}

// walkTopLevel visits the program's direct children, recognizing
// top-level assignments and S4 declaration calls as exported symbols,
// then recurses into every subtree to collect local bindings (inside
// function/loop scopes) and referenced symbols (everywhere).
func (w *walker) walkTopLevel(root *tree_sitter.Node) {
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		w.visitTopLevelStatement(child)
	}
}

func (w *walker) visitTopLevelStatement(n *tree_sitter.Node) {
	switch n.Kind() {
	case "binary_operator":
		if def, ok := w.exportedAssignment(n); ok {
			w.artifacts.ExportedInterface[def.Name] = def
		}
		w.collectReferences(n, types.ScopeFile)
		w.collectLocalsInNestedScopes(n)
	case "call":
		if def, ok := w.s4Declaration(n); ok {
			w.artifacts.ExportedInterface[def.Name] = def
		}
		w.collectReferences(n, types.ScopeFile)
		w.collectLocalsInNestedScopes(n)
	default:
		w.collectReferences(n, types.ScopeFile)
		w.collectLocalsInNestedScopes(n)
	}
}

// exportedAssignment recognizes `name <- ...`/`name = ...`/`name <<- ...`
// at top level, classifying the symbol as an S3 method when its name
// contains a dot (the generic.class naming convention).
func (w *walker) exportedAssignment(n *tree_sitter.Node) (types.SymbolDefinition, bool) {
	lhs, operator, _ := binaryParts(n)
	if lhs == nil || operator == "" || !assignOperators[operator] {
		return types.SymbolDefinition{}, false
	}
	if lhs.Kind() != "identifier" {
		return types.SymbolDefinition{}, false
	}
	name := nodeText(w.content, lhs)
	kind := types.SymbolAssignment
	if strings.Contains(name, ".") {
		kind = types.SymbolS3Method
	}
	return types.SymbolDefinition{Name: name, Kind: kind, Range: nodeRange(n, w.lines)}, true
}

// s4Declaration recognizes setMethod/setGeneric/setClass/setRefClass
// calls, taking the symbol name from the call's first string-literal
// argument.
func (w *walker) s4Declaration(n *tree_sitter.Node) (types.SymbolDefinition, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "identifier" {
		return types.SymbolDefinition{}, false
	}
	if !s4Declarators[nodeText(w.content, fn)] {
		return types.SymbolDefinition{}, false
	}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return types.SymbolDefinition{}, false
	}
	name := firstStringArgument(w.content, args)
	if name == "" {
		return types.SymbolDefinition{}, false
	}
	return types.SymbolDefinition{Name: name, Kind: types.SymbolS4Method, Range: nodeRange(n, w.lines)}, true
}

func firstStringArgument(content []byte, args *tree_sitter.Node) string {
	count := args.ChildCount()
	for i := uint(0); i < count; i++ {
		child := args.Child(i)
		if child == nil {
			continue
		}
		value := child
		if child.Kind() == "argument" {
			if v := child.ChildByFieldName("value"); v != nil {
				value = v
			}
		}
		if value.Kind() == "string" {
			return strings.Trim(nodeText(content, value), `"'`)
		}
	}
	return ""
}

// binaryParts extracts a binary_operator node's lhs, operator text, and
// rhs. The operator is an anonymous token child whose Kind() is the
// literal operator text; it is found by scanning children rather than
// assuming a fixed index, since unary/prefixed forms can shift position.
func binaryParts(n *tree_sitter.Node) (lhs *tree_sitter.Node, operator string, rhs *tree_sitter.Node) {
	lhs = n.ChildByFieldName("lhs")
	rhs = n.ChildByFieldName("rhs")
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "<-", "<<-", "=", "->", "->>":
			operator = child.Kind()
		}
	}
	if lhs == nil && count > 0 {
		lhs = n.Child(0)
	}
	if rhs == nil && count > 0 {
		rhs = n.Child(count - 1)
	}
	return lhs, operator, rhs
}

// collectLocalsInNestedScopes walks n looking for function_definition
// and loop nodes, recording every assignment found directly within
// their bodies (not further nested function bodies' own locals are
// skipped here since those are collected when that inner function node
// is itself visited).
func (w *walker) collectLocalsInNestedScopes(n *tree_sitter.Node) {
	var visit func(node *tree_sitter.Node)
	visit = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		switch node.Kind() {
		case "function_definition":
			if body := node.ChildByFieldName("body"); body != nil {
				w.collectBindingsInBody(body, types.ScopeFunction)
			}
			return
		case "for_statement", "while_statement", "repeat_statement":
			if body := node.ChildByFieldName("body"); body != nil {
				w.collectBindingsInBody(body, types.ScopeLoop)
			}
			return
		}
		count := node.ChildCount()
		for i := uint(0); i < count; i++ {
			visit(node.Child(i))
		}
	}
	visit(n)
}

// collectBindingsInBody records every top-level assignment directly
// inside body as a LocalBinding of the given scope kind, then recurses
// so that nested function/loop bodies contribute their own entries too.
func (w *walker) collectBindingsInBody(body *tree_sitter.Node, scope types.ScopeKind) {
	var visit func(node *tree_sitter.Node)
	visit = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		if node.Kind() == "binary_operator" {
			lhs, operator, _ := binaryParts(node)
			if lhs != nil && lhs.Kind() == "identifier" && assignOperators[operator] {
				w.artifacts.LocalBindings = append(w.artifacts.LocalBindings, types.LocalBinding{
					Symbol: nodeText(w.content, lhs),
					Range:  nodeRange(node, w.lines),
					Scope:  scope,
				})
			}
		}
		switch node.Kind() {
		case "function_definition":
			if inner := node.ChildByFieldName("body"); inner != nil {
				w.collectBindingsInBody(inner, types.ScopeFunction)
			}
			return
		case "for_statement", "while_statement", "repeat_statement":
			if inner := node.ChildByFieldName("body"); inner != nil {
				w.collectBindingsInBody(inner, types.ScopeLoop)
			}
			return
		}
		count := node.ChildCount()
		for i := uint(0); i < count; i++ {
			visit(node.Child(i))
		}
	}
	visit(body)
}

// collectReferences records every identifier name appearing anywhere
// under n as a referenced symbol. This intentionally includes
// assignment targets as well as uses: the set drives shadowing and
// cross-reference checks, not a strict read/write distinction.
func (w *walker) collectReferences(n *tree_sitter.Node, _ types.ScopeKind) {
	var visit func(node *tree_sitter.Node)
	visit = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		if node.Kind() == "identifier" {
			w.artifacts.ReferencedSymbols[nodeText(w.content, node)] = struct{}{}
		}
		count := node.ChildCount()
		for i := uint(0); i < count; i++ {
			visit(node.Child(i))
		}
	}
	visit(n)
}

// extractAnnotationDeclarations scans content for @lsp-var/@lsp-func
// comment annotations, adding each declared name to ExportedInterface
// attributed at the annotation's own line (column 0), per spec §4.6.
func extractAnnotationDeclarations(content []byte, artifacts *types.ScopeArtifacts) {
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		n := uint32(i)
		if m := lspVarPattern.FindStringSubmatch(line); m != nil {
			rng := types.Range{StartLine: n, EndLine: n, EndColumn: uint32(len(line))}
			artifacts.ExportedInterface[m[1]] = types.SymbolDefinition{Name: m[1], Kind: types.SymbolAnnotation, Range: rng}
			continue
		}
		if m := lspFuncPattern.FindStringSubmatch(line); m != nil {
			rng := types.Range{StartLine: n, EndLine: n, EndColumn: uint32(len(line))}
			artifacts.ExportedInterface[m[1]] = types.SymbolDefinition{Name: m[1], Kind: types.SymbolAnnotation, Range: rng}
		}
	}
}
