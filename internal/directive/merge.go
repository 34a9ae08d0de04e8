package directive

import "github.com/standardbeagle/r-lsp-core/internal/types"

// Merge combines directive-parsed metadata with AST-detected sources and
// library calls into one CrossFileMetadata, following the original
// extract_metadata_with_tree merge rule: an AST-detected source is
// dropped (not appended) whenever a directive already declares a source
// at the same line; it is never inserted and then removed. Both lists
// are sorted by (line, column) document order afterwards.
func Merge(directiveMeta types.CrossFileMetadata, astSources []types.ForwardSource, libraryCalls []types.PackageCall) types.CrossFileMetadata {
	meta := directiveMeta

	directiveLines := make(map[uint32]struct{}, len(meta.Sources))
	for _, s := range meta.Sources {
		if s.IsDirective {
			directiveLines[s.Line] = struct{}{}
		}
	}

	for _, s := range astSources {
		if _, collides := directiveLines[s.Line]; collides {
			continue
		}
		meta.Sources = append(meta.Sources, s)
	}

	meta.LibraryCalls = append(meta.LibraryCalls, libraryCalls...)

	meta.SortSources()
	meta.SortLibraryCalls()
	return meta
}
