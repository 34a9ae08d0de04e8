// Package directive implements the regex half of C1: parsing @lsp-*
// annotations out of R comment lines into a CrossFileMetadata record.
//
// The five regex families and their capture-group layout, the
// line=N/match= parameter handling, and the "first matching family wins,
// then move to the next line" control flow are taken directly from the
// original Rust implementation's cross_file/directive.rs, translated
// from Rust's regex crate to Go's regexp package (both are RE2-derived;
// none of these patterns use backreferences or lookaround, so the
// translation is semantics-preserving).
package directive

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/standardbeagle/r-lsp-core/internal/debug"
	"github.com/standardbeagle/r-lsp-core/internal/types"
)

var (
	backwardPattern = regexp.MustCompile(
		`#\s*@?lsp-(?:sourced-by|run-by|included-by)\s*:?\s*(?:"([^"]+)"|'([^']+)'|(\S+))(?:\s+line\s*=\s*(\d+))?(?:\s+match\s*=\s*["']([^"']+)["'])?`)
	forwardPattern = regexp.MustCompile(
		`#\s*@?lsp-(?:source|run|include)\s*:?\s*(?:"([^"]+)"|'([^']+)'|(\S+))(?:\s+line\s*=\s*(\d+))?`)
	workingDirPattern = regexp.MustCompile(
		`#\s*@?lsp-(?:working-directory|working-dir|current-directory|current-dir|cd|wd)\s*:?\s*(?:"([^"]+)"|'([^']+)'|(\S+))`)
	ignorePattern     = regexp.MustCompile(`#\s*@?lsp-ignore\s*:?\s*$`)
	ignoreNextPattern = regexp.MustCompile(`#\s*@?lsp-ignore-next\s*:?\s*$`)
)

// capturePath returns the first non-empty path capture among the
// double-quoted, single-quoted, and unquoted groups, in that priority
// order, starting at submatch index baseGroup.
func capturePath(m []string, baseGroup int) string {
	for i := 0; i < 3; i++ {
		if baseGroup+i < len(m) && m[baseGroup+i] != "" {
			return m[baseGroup+i]
		}
	}
	return ""
}

// ParseDirectives scans content line by line for @lsp-* directives and
// returns the populated portions of a CrossFileMetadata: Sources (for
// forward directives), SourcedBy, WorkingDirectory, IgnoredLines, and
// IgnoredNextLines. AST-detected sources and library calls are merged in
// separately by Merge (see merge.go).
func ParseDirectives(content string) types.CrossFileMetadata {
	meta := types.NewCrossFileMetadata()

	lines := strings.Split(content, "\n")
	for lineNum, line := range lines {
		n := uint32(lineNum)

		if m := backwardPattern.FindStringSubmatch(line); m != nil {
			path := capturePath(m, 1)
			if path == "" {
				continue
			}
			callSite := types.DefaultCallSite()
			if m[4] != "" {
				if userLine, err := strconv.ParseUint(m[4], 10, 32); err == nil {
					line0 := uint32(0)
					if userLine > 0 {
						line0 = uint32(userLine) - 1
					}
					callSite = types.LineCallSite(line0)
				}
			} else if m[5] != "" {
				callSite = types.MatchCallSite(m[5])
			}
			meta.SourcedBy = append(meta.SourcedBy, types.BackwardDirective{
				Path:          path,
				CallSite:      callSite,
				DirectiveLine: n,
			})
			continue
		}

		if m := forwardPattern.FindStringSubmatch(line); m != nil {
			path := capturePath(m, 1)
			if path == "" {
				continue
			}
			callSiteLine := n
			if m[4] != "" {
				if userLine, err := strconv.ParseUint(m[4], 10, 32); err == nil && userLine > 0 {
					callSiteLine = uint32(userLine) - 1
				}
			}
			meta.Sources = append(meta.Sources, types.ForwardSource{
				Path:               path,
				Line:               callSiteLine,
				Column:             0,
				IsDirective:        true,
				SysSourceGlobalEnv: true,
			})
			continue
		}

		if m := workingDirPattern.FindStringSubmatch(line); m != nil {
			path := capturePath(m, 1)
			if path != "" {
				meta.WorkingDirectory = &path
			}
			continue
		}

		if ignorePattern.MatchString(line) {
			meta.IgnoredLines[n] = struct{}{}
			continue
		}

		if ignoreNextPattern.MatchString(line) {
			meta.IgnoredNextLines[n+1] = struct{}{}
		}
	}

	debug.LogDirective("parsed %d source(s), %d sourced-by, working_dir=%v",
		len(meta.Sources), len(meta.SourcedBy), meta.WorkingDirectory != nil)

	return meta
}
