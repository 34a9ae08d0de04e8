package main

import (
	"encoding/json"
	"fmt"
	"io"
)

func (r scanReport) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func (r scanReport) writeText(w io.Writer) error {
	fmt.Fprintf(w, "Scanned %s: %d file(s)\n\n", r.Root, r.FilesScanned)

	if len(r.Edges) == 0 {
		fmt.Fprintln(w, "No dependency edges found.")
	} else {
		fmt.Fprintf(w, "Dependency edges (%d):\n", len(r.Edges))
		for _, e := range r.Edges {
			fmt.Fprintf(w, "  %s -> %s\n", e.From, e.To)
		}
	}

	if len(r.Conflicts) > 0 {
		fmt.Fprintf(w, "\nConflicts (%d):\n", len(r.Conflicts))
		for _, c := range r.Conflicts {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}

	if len(r.Unresolved) > 0 {
		fmt.Fprintf(w, "\nUnresolved sources (%d):\n", len(r.Unresolved))
		for _, u := range r.Unresolved {
			fmt.Fprintf(w, "  %s\n", u)
		}
	}

	if len(r.LibraryExports) > 0 {
		fmt.Fprintf(w, "\nPackage exports resolved from NAMESPACE (%d):\n", len(r.LibraryExports))
		for pkg, exports := range r.LibraryExports {
			fmt.Fprintf(w, "  %s: %d export(s)\n", pkg, len(exports))
		}
	}

	return nil
}
