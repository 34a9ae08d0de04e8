// Package namespace implements C14: fallback parsing of an R package's
// NAMESPACE and DESCRIPTION files, used when library call resolution
// (C1's PackageCall detection) cannot shell out to R to introspect a
// package's actual exports.
//
// Ported from original_source's namespace_parser.rs line for line
// (normalize_multiline_directives/extract_directive_args/
// find_matching_paren/parse_comma_separated_args/parse_s3method_args/
// parse_description_field/parse_depends_value), expressed in the
// teacher's error-wrapping style (fmt.Errorf with %w) rather than
// anyhow.
package namespace

import (
	"fmt"
	"os"
	"strings"
)

// PatternPrefix marks an exportPattern(...) entry in ParseNamespaceExports'
// result, since the pattern itself cannot be expanded into concrete names
// without the package's R source.
const PatternPrefix = "__PATTERN__:"

// ParseNamespaceExports extracts exported symbol names from an R
// package NAMESPACE file at path. Recognizes export(name[, ...]),
// exportPattern("pattern") and S3method(generic, class[, method]).
// exportPattern entries are returned as PatternPrefix+pattern;
// S3method entries as "generic.class". Order matches the file.
func ParseNamespaceExports(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading NAMESPACE file %s: %w", path, err)
	}
	return parseNamespaceContent(string(content)), nil
}

func parseNamespaceContent(content string) []string {
	var exports []string

	normalized := normalizeMultilineDirectives(content)

	for _, line := range strings.Split(normalized, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if args, ok := extractDirectiveArgs(line, "export"); ok {
			for _, name := range parseCommaSeparatedArgs(args) {
				if name != "" {
					exports = append(exports, name)
				}
			}
			continue
		}
		if args, ok := extractDirectiveArgs(line, "exportPattern"); ok {
			for _, pattern := range parseCommaSeparatedArgs(args) {
				if pattern != "" {
					exports = append(exports, PatternPrefix+pattern)
				}
			}
			continue
		}
		if args, ok := extractDirectiveArgs(line, "S3method"); ok {
			if method, ok := parseS3MethodArgs(args); ok {
				exports = append(exports, method)
			}
		}
	}

	return exports
}

// normalizeMultilineDirectives collapses NAMESPACE directives spanning
// multiple lines into one logical line each, preserving comment-only
// lines that appear outside a directive's parentheses.
func normalizeMultilineDirectives(content string) string {
	var result strings.Builder
	var current strings.Builder
	parenDepth := 0

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if parenDepth == 0 && strings.HasPrefix(trimmed, "#") {
			result.WriteString(trimmed)
			result.WriteByte('\n')
			continue
		}

		for _, ch := range trimmed {
			switch ch {
			case '(':
				parenDepth++
			case ')':
				if parenDepth > 0 {
					parenDepth--
				}
			}
		}

		if current.Len() == 0 {
			current.WriteString(trimmed)
		} else {
			current.WriteByte(' ')
			current.WriteString(trimmed)
		}

		if parenDepth == 0 {
			result.WriteString(current.String())
			result.WriteByte('\n')
			current.Reset()
		}
	}

	if current.Len() > 0 {
		result.WriteString(current.String())
		result.WriteByte('\n')
	}

	return result.String()
}

// extractDirectiveArgs returns the text between directive's outer
// parentheses when line begins with directive immediately followed by
// "(". If the closing parenthesis cannot be found, returns the
// remainder of the line with trailing ")" characters trimmed.
func extractDirectiveArgs(line, directive string) (string, bool) {
	after, ok := strings.CutPrefix(line, directive)
	if !ok || !strings.HasPrefix(after, "(") {
		return "", false
	}

	inner := after[1:]
	if pos := findMatchingParen(inner); pos >= 0 {
		return inner[:pos], true
	}
	return strings.TrimRight(inner, ")"), true
}

// findMatchingParen returns the byte index of the ")" that closes an
// implicit opening "(" immediately before s, or -1 if none is found.
func findMatchingParen(s string) int {
	depth := 0
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// parseCommaSeparatedArgs splits args on commas not inside a quoted
// string (single or double quotes), trimming and dropping empty items.
func parseCommaSeparatedArgs(args string) []string {
	var result []string
	var current strings.Builder
	inQuotes := false
	var quoteChar rune

	for _, ch := range args {
		switch {
		case (ch == '"' || ch == '\'') && !inQuotes:
			inQuotes = true
			quoteChar = ch
		case ch == quoteChar && inQuotes:
			inQuotes = false
		case ch == ',' && !inQuotes:
			if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
				result = append(result, trimmed)
			}
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}

	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		result = append(result, trimmed)
	}
	return result
}

// parseS3MethodArgs turns S3method(generic, class[, method]) arguments
// into a "generic.class" export name, ignoring any method argument.
func parseS3MethodArgs(args string) (string, bool) {
	parts := parseCommaSeparatedArgs(args)
	if len(parts) < 2 {
		return "", false
	}
	generic, class := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if generic == "" || class == "" {
		return "", false
	}
	return generic + "." + class, true
}

// ParseDescriptionDepends extracts package names from a DESCRIPTION
// file's Depends field, stripping version constraints and the special
// "R" entry.
func ParseDescriptionDepends(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading DESCRIPTION file %s: %w", path, err)
	}
	return parseDescriptionField(string(content), "Depends"), nil
}

// parseDescriptionField extracts fieldName's value from DCF-formatted
// content, including whitespace-prefixed continuation lines, then
// parses it into package names.
func parseDescriptionField(content, fieldName string) []string {
	var value strings.Builder
	inField := false
	prefix := fieldName + ":"

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, prefix) {
			inField = true
			value.WriteString(strings.TrimSpace(strings.TrimPrefix(line, prefix)))
		} else if inField {
			if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
				value.WriteByte(' ')
				value.WriteString(strings.TrimSpace(line))
			} else {
				break
			}
		}
	}

	return parseDependsValue(value.String())
}

// parseDependsValue splits a Depends field value on commas, strips any
// parenthesized version constraint from each entry, and excludes "R".
func parseDependsValue(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	var pkgs []string
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if pos := strings.Index(part, "("); pos >= 0 {
			part = strings.TrimSpace(part[:pos])
		}
		if part == "" || part == "R" {
			continue
		}
		pkgs = append(pkgs, part)
	}
	return pkgs
}
