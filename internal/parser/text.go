package parser

import (
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// document positions are walked in line-major order over Line.Code

// walk calls fn for every code character in [from, to). Returning false
// stops the walk.
func walk(lines []Line, from, to types.Position, fn func(pos types.Position, ch byte) bool) {
	for n := max(from.Line, 0); n < len(lines) && n <= to.Line; n++ {
		code := lines[n].Code
		start := 0
		if n == from.Line {
			start = from.Character
		}
		end := len(code)
		if n == to.Line {
			end = min(end, to.Character)
		}
		for col := start; col < end; col++ {
			if !fn(types.Position{Line: n, Character: col}, code[col]) {
				return
			}
		}
	}
}

// skipSpace returns the first code character at or after pos that is not
// whitespace, moving across lines. ok is false at EOF.
func skipSpace(lines []Line, pos types.Position) (types.Position, bool) {
	for n := pos.Line; n < len(lines); n++ {
		code := lines[n].Code
		col := 0
		if n == pos.Line {
			col = pos.Character
		}
		for ; col < len(code); col++ {
			if code[col] != ' ' && code[col] != '\t' {
				return types.Position{Line: n, Character: col}, true
			}
		}
	}
	return eof(lines), false
}

// charAt returns the code character at pos, or 0 past the end of a line
func charAt(lines []Line, pos types.Position) byte {
	if pos.Line < 0 || pos.Line >= len(lines) {
		return 0
	}
	code := lines[pos.Line].Code
	if pos.Character < 0 || pos.Character >= len(code) {
		return 0
	}
	return code[pos.Character]
}

// wordAt returns the identifier starting exactly at pos. It is empty when
// pos is in the middle of an identifier or follows a '.'.
func wordAt(lines []Line, pos types.Position) string {
	if pos.Line < 0 || pos.Line >= len(lines) {
		return ""
	}
	code := lines[pos.Line].Code
	if pos.Character >= len(code) {
		return ""
	}
	if pos.Character > 0 {
		prev := code[pos.Character-1]
		if isWordChar(prev) || prev == '.' {
			return ""
		}
	}
	return leadingWord(code[pos.Character:])
}

// advance moves pos forward by n characters on the same line
func advance(pos types.Position, n int) types.Position {
	return types.Position{Line: pos.Line, Character: pos.Character + n}
}

// eof is the position just past the last character of the document
func eof(lines []Line) types.Position {
	if len(lines) == 0 {
		return types.Position{}
	}
	last := len(lines) - 1
	return types.Position{Line: last, Character: len(lines[last].Text)}
}

// textBetween returns the raw text in [from, to), lines joined with '\n'
func textBetween(lines []Line, from, to types.Position) string {
	return between(lines, from, to, func(l Line) string { return l.Text })
}

// codeBetween is textBetween over the neutralized code
func codeBetween(lines []Line, from, to types.Position) string {
	return between(lines, from, to, func(l Line) string { return l.Code })
}

func between(lines []Line, from, to types.Position, get func(Line) string) string {
	if !from.Less(to) {
		return ""
	}
	var sb strings.Builder
	for n := max(from.Line, 0); n < len(lines) && n <= to.Line; n++ {
		s := get(lines[n])
		start := 0
		if n == from.Line {
			start = min(from.Character, len(s))
		}
		end := len(s)
		if n == to.Line {
			end = min(end, to.Character)
		}
		if n > from.Line {
			sb.WriteByte('\n')
		}
		if start < end {
			sb.WriteString(s[start:end])
		}
	}
	return sb.String()
}

// offsetPosition maps a byte offset in a string produced by textBetween
// starting at from back to a document position
func offsetPosition(from types.Position, s string, off int) types.Position {
	off = min(off, len(s))
	nl := strings.Count(s[:off], "\n")
	if nl == 0 {
		return types.Position{Line: from.Line, Character: from.Character + off}
	}
	return types.Position{Line: from.Line + nl, Character: off - strings.LastIndexByte(s[:off], '\n') - 1}
}

// lineEnd is the position just past the last character of line n
func lineEnd(lines []Line, n int) types.Position {
	return types.Position{Line: n, Character: len(lines[n].Text)}
}

// lastCodeEnd returns the position just past the last non-blank code
// character before pos, or pos itself when there is none
func lastCodeEnd(lines []Line, from, pos types.Position) types.Position {
	end := pos
	found := false
	for n := min(pos.Line, len(lines)-1); n >= from.Line && n >= 0 && !found; n-- {
		code := lines[n].Code
		top := len(code)
		if n == pos.Line {
			top = min(top, pos.Character)
		}
		low := 0
		if n == from.Line {
			low = from.Character
		}
		for col := top - 1; col >= low; col-- {
			if code[col] != ' ' && code[col] != '\t' {
				end = types.Position{Line: n, Character: col + 1}
				found = true
				break
			}
		}
	}
	if !found {
		return from
	}
	return end
}

// spannedLines lists every line number a range touches
func spannedLines(r types.Range) []int {
	out := make([]int, 0, r.End.Line-r.Start.Line+1)
	for n := r.Start.Line; n <= r.End.Line; n++ {
		out = append(out, n)
	}
	return out
}

// keywordAt reports whether the line starts (after indentation) with kw
// as a whole word
func keywordAt(l Line, kw string) bool {
	rest := l.Code[l.Indent():]
	if !strings.HasPrefix(rest, kw) {
		return false
	}
	if len(rest) == len(kw) {
		return true
	}
	next := rest[len(kw)]
	return next == ' ' || next == '\t' || next == '"' || next == '\''
}

// boundaryKeyword returns the recovery keyword a line starts with, if any
func boundaryKeyword(l Line) string {
	for _, kw := range []string{"rule", "query", "declare", "when", "then", "end"} {
		if keywordAt(l, kw) {
			return kw
		}
	}
	return ""
}

// isTopLevelBoundary reports whether a line starts a new top-level construct
func isTopLevelBoundary(l Line) bool {
	switch boundaryKeyword(l) {
	case "rule", "query", "declare":
		return true
	}
	return false
}
