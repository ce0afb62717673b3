// Package alias reads legacy volume-alias files: a line-oriented text
// format that lists the physical database volumes making up a logical
// database, plus a handful of metadata key/value lines.
//
// Grounded on Trim / SplitWhitespace / ParseAliasFile in
// original_source/src/app/blastdb/pal_reader.cpp.
package alias

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"blastdb/internal/dberr"
)

// Info holds a parsed alias file: the ordered list of volume base names
// from its DBLIST line, plus every other recognized key/value line.
type Info struct {
	Volumes  []string
	Metadata map[string]string
}

// Parse reads an alias file from r. Everything from a '#' to the end of a
// line is a comment and is stripped wherever it appears, not just at line
// start; blank lines (after stripping) are ignored. Every other line must be
// "KEY value...", with a non-empty value and, for DBLIST, at least one
// volume. A key that appears more than once is an error -- the legacy format
// has no defined merge behavior for a repeated key, so treating it as a
// mistake in the input is safer than silently picking one.
func Parse(r io.Reader) (*Info, error) {
	info := &Info{Metadata: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		key := fields[0]
		value := strings.TrimSpace(strings.TrimPrefix(line, key))

		if key == "DBLIST" {
			if len(info.Volumes) != 0 {
				return nil, fmt.Errorf("line %d: duplicate DBLIST: %w", lineNo, dberr.BadFormat)
			}
			volumes := strings.Fields(value)
			if len(volumes) == 0 {
				return nil, fmt.Errorf("line %d: DBLIST does not list any volumes: %w", lineNo, dberr.BadFormat)
			}
			info.Volumes = volumes
			continue
		}

		if value == "" {
			return nil, fmt.Errorf("line %d: key %q has an empty value: %w", lineNo, key, dberr.BadFormat)
		}

		if _, exists := info.Metadata[key]; exists {
			return nil, fmt.Errorf("line %d: duplicate key %q: %w", lineNo, key, dberr.BadFormat)
		}
		info.Metadata[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	return info, nil
}
