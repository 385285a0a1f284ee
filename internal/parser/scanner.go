package parser

import (
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// SpanKind tells what made a region of a line opaque
type SpanKind int

const (
	SpanString SpanKind = iota
	SpanChar
	SpanComment
)

// Span is an opaque [Start, End) column range of a line
type Span struct {
	Kind  SpanKind
	Start int
	End   int
}

// Line is one source line. Code has the same length as Text but string
// and character literal interiors and comments are blanked out, so
// bracket and keyword detection can work on it directly. InComment is set
// when the line starts inside a block comment opened on an earlier line.
type Line struct {
	Number    int
	Text      string
	Code      string
	Spans     []Span
	InComment bool
}

// IsBlank reports whether the line has no code outside comments
func (l Line) IsBlank() bool {
	return strings.TrimSpace(l.Code) == ""
}

// Indent returns the column of the first code character
func (l Line) Indent() int {
	return len(l.Code) - len(strings.TrimLeft(l.Code, " \t"))
}

// FirstWord returns the leading identifier of the code, or ""
func (l Line) FirstWord() string {
	return leadingWord(l.Code[l.Indent():])
}

// Opaque reports whether column col is inside a literal or comment
func (l Line) Opaque(col int) bool {
	for _, s := range l.Spans {
		if col >= s.Start && col < s.End {
			return true
		}
	}
	return false
}

// ScanLines splits text into lines and neutralizes literals and comments.
// Unterminated literals are reported per line and scanning resumes on the
// next line; an unterminated block comment is reported once at EOF.
func ScanLines(text string) ([]Line, []*types.ParseError) {
	lines, _, errs := scanText(text)
	return lines, errs
}

// scanText is ScanLines also returning the block comments that span more
// than one line
func scanText(text string) ([]Line, []types.Range, []*types.ParseError) {
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))
	var comments []types.Range
	var errs []*types.ParseError

	inBlock := false
	var blockStart types.Position

	for n, r := range raw {
		r = strings.TrimSuffix(r, "\r")
		code := []byte(r)
		var spans []Span

		i := 0
		inComment := inBlock
		if inBlock {
			end, closed := closeBlockComment(r, 0)
			blank(code, 0, end)
			spans = append(spans, Span{Kind: SpanComment, Start: 0, End: end})
			if closed {
				comments = append(comments, types.Range{Start: blockStart, End: types.Position{Line: n, Character: end}})
			}
			inBlock = !closed
			i = end
		}

		for !inBlock && i < len(r) {
			ch := r[i]
			switch {
			case ch == '/' && i+1 < len(r) && r[i+1] == '/':
				blank(code, i, len(r))
				spans = append(spans, Span{Kind: SpanComment, Start: i, End: len(r)})
				i = len(r)

			case ch == '/' && i+1 < len(r) && r[i+1] == '*':
				end, closed := closeBlockComment(r, i+2)
				blank(code, i, end)
				spans = append(spans, Span{Kind: SpanComment, Start: i, End: end})
				if !closed {
					inBlock = true
					blockStart = types.Position{Line: n, Character: i}
				}
				i = end

			case ch == '"' || ch == '\'':
				end, closed := closeLiteral(r, i)
				kind := SpanString
				if ch == '\'' {
					kind = SpanChar
				}
				// keep the quotes, blank the interior
				interiorEnd := end
				if closed {
					interiorEnd = end - 1
				}
				blank(code, i+1, interiorEnd)
				spans = append(spans, Span{Kind: kind, Start: i, End: end})
				if !closed {
					what := "string"
					if kind == SpanChar {
						what = "character"
					}
					errs = append(errs, types.NewSyntaxError(types.CodeUnterminatedString,
						types.NewRange(n, i, n, len(r)), "unterminated %s literal", what))
				}
				i = end

			default:
				i++
			}
		}

		lines[n] = Line{Number: n, Text: r, Code: string(code), Spans: spans, InComment: inComment}
	}

	if inBlock {
		last := len(lines) - 1
		r := types.Range{Start: blockStart, End: types.Position{Line: last, Character: len(lines[last].Text)}}
		if r.SpansMultipleLines() {
			comments = append(comments, r)
		}
		errs = append(errs, types.NewSyntaxError(types.CodeUnterminatedComment, r, "unterminated block comment"))
	}

	return lines, comments, errs
}

// closeBlockComment returns the column just past the next "*/" at or after
// from. closed is false when the comment continues on the next line.
func closeBlockComment(r string, from int) (end int, closed bool) {
	if from > len(r) {
		return len(r), false
	}
	idx := strings.Index(r[from:], "*/")
	if idx < 0 {
		return len(r), false
	}
	return from + idx + 2, true
}

// closeLiteral finds the end of the literal opened at start. Backslash
// escapes the next character.
func closeLiteral(r string, start int) (int, bool) {
	quote := r[start]
	for j := start + 1; j < len(r); j++ {
		switch r[j] {
		case '\\':
			j++
		case quote:
			return j + 1, true
		}
	}
	return len(r), false
}

func blank(code []byte, from, to int) {
	for k := from; k < to && k < len(code); k++ {
		if code[k] != '\t' {
			code[k] = ' '
		}
	}
}

func leadingWord(s string) string {
	end := 0
	for end < len(s) && isWordChar(s[end]) {
		end++
	}
	return s[:end]
}

// isWordChar returns true if c can be part of a DRL identifier
func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '$'
}
