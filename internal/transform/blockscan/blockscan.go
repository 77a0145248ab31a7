// Package blockscan builds the per-line classification table every higher
// pipeline component consults. It replaces lookahead-regex boundary detection
// with an explicit table plus a simple state walk, which keeps region
// boundaries stable across blank lines and trailing return annotations.
package blockscan

import (
	"regexp"
	"strings"
)

const tabWidth = 4

// Line is the classification of a single source line.
type Line struct {
	Number        int    // 1-based line number
	StartOffset   int    // byte offset of the first byte of the line
	EndOffset     int    // byte offset one past the last content byte (newline excluded)
	Raw           string // the line without its terminator
	IndentLevel   int    // leading whitespace in columns, tabs expanded
	IsBlank       bool
	IsCommentOnly bool
	BlockName     string // non-empty when the line opens a named block
}

// OpensBlock reports whether the line opens a named block.
func (l Line) OpensBlock() bool { return l.BlockName != "" }

// Table is the ordered line classification of one document.
type Table struct {
	Lines []Line
}

var (
	// def name(  -- a trailing return annotation ("-> pd.DataFrame:") is
	// tolerated because only the head of the line is inspected.
	defOpenerRe = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	// NAME = { , NAME = dict( , or a bare "NAME:" mapping opener.
	mapOpenerRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(?:=\s*\{|=\s*dict\s*\(|:\s*$)`)
)

// Scan classifies every line of the content.
func Scan(content string) *Table {
	table := &Table{}
	offset := 0
	number := 0

	for offset <= len(content) {
		end := strings.IndexByte(content[offset:], '\n')
		var raw string
		var lineEnd int
		if end < 0 {
			raw = content[offset:]
			lineEnd = len(content)
		} else {
			raw = content[offset : offset+end]
			lineEnd = offset + end
		}
		number++

		line := classify(raw)
		line.Number = number
		line.StartOffset = offset
		line.EndOffset = lineEnd
		table.Lines = append(table.Lines, line)

		if end < 0 {
			break
		}
		offset = lineEnd + 1
	}

	// A trailing newline produces one empty final line; drop it so offsets
	// stay a partition of the content.
	if n := len(table.Lines); n > 0 && table.Lines[n-1].Raw == "" && table.Lines[n-1].StartOffset == len(content) {
		table.Lines = table.Lines[:n-1]
	}

	return table
}

func classify(raw string) Line {
	line := Line{Raw: raw}

	indent := 0
	i := 0
	for ; i < len(raw); i++ {
		switch raw[i] {
		case ' ':
			indent++
		case '\t':
			indent += tabWidth - indent%tabWidth
		default:
			goto done
		}
	}
done:
	line.IndentLevel = indent

	body := raw[i:]
	trimmed := strings.TrimRight(body, " \t")
	if trimmed == "" {
		line.IsBlank = true
		return line
	}
	if strings.HasPrefix(trimmed, "#") {
		line.IsCommentOnly = true
		return line
	}

	if m := defOpenerRe.FindStringSubmatch(trimmed); m != nil {
		line.BlockName = m[1]
	} else if m := mapOpenerRe.FindStringSubmatch(trimmed); m != nil {
		line.BlockName = m[1]
	}
	return line
}

// FirstOpener returns the first line opening a block under any of the given
// names, or -1 when none exists.
func (t *Table) FirstOpener(names []string) int {
	for i, line := range t.Lines {
		if line.BlockName == "" {
			continue
		}
		for _, name := range names {
			if line.BlockName == name {
				return i
			}
		}
	}
	return -1
}

// Openers returns the indices of every line opening a block under the name.
func (t *Table) Openers(name string) []int {
	var out []int
	for i, line := range t.Lines {
		if line.BlockName == name {
			out = append(out, i)
		}
	}
	return out
}

// BodyEnd walks forward from the opener at index and returns the index one
// past the last in-body line. The body ends at the first non-blank,
// non-comment line whose indent level is at or below the opener's, or at the
// end of the document. Blank and comment-only lines never terminate a body,
// so the boundary is invariant under their insertion or removal.
func (t *Table) BodyEnd(openerIdx int) int {
	opener := t.Lines[openerIdx]
	lastContent := openerIdx
	for i := openerIdx + 1; i < len(t.Lines); i++ {
		line := t.Lines[i]
		if line.IsBlank || line.IsCommentOnly {
			continue
		}
		if line.IndentLevel <= opener.IndentLevel {
			return lastContent + 1
		}
		lastContent = i
	}
	return lastContent + 1
}
