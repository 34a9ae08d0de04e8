// Package rparser wraps a pooled tree-sitter R parser, following the
// teacher's per-language parser pool idiom in internal/parser (one
// *tree_sitter.Parser per goroutine via sync.Pool, lazily initialised).
// Unlike the teacher's multi-language pool this package only ever
// serves one grammar, so the lazy-init/registration machinery collapses
// to a single sync.Once.
package rparser

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_r "github.com/tree-sitter-grammars/tree-sitter-r/bindings/go"
)

var (
	language     *tree_sitter.Language
	languageOnce sync.Once
)

// Language returns the shared tree-sitter Language for R, initialising
// it on first use.
func Language() *tree_sitter.Language {
	languageOnce.Do(func() {
		language = tree_sitter.NewLanguage(tree_sitter_r.Language())
	})
	return language
}

var parserPool = sync.Pool{
	New: func() any {
		p := tree_sitter.NewParser()
		if err := p.SetLanguage(Language()); err != nil {
			return nil
		}
		return p
	},
}

// Parse parses content and returns the resulting tree. The caller must
// call tree.Close() when done. Returns nil if a parser could not be
// obtained (grammar failed to load).
func Parse(content []byte) *tree_sitter.Tree {
	v := parserPool.Get()
	parser, ok := v.(*tree_sitter.Parser)
	if !ok || parser == nil {
		return nil
	}
	defer parserPool.Put(parser)
	return parser.Parse(content, nil)
}
