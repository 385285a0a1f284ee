package lsp

import (
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// PositionEncoding is the unit of Position.Character on the wire
type PositionEncoding string

const (
	PositionEncodingUTF8  PositionEncoding = "utf-8"
	PositionEncodingUTF16 PositionEncoding = "utf-16"
)

// negotiateEncoding picks utf-8 when the client offers it. Otherwise the
// protocol default, utf-16, applies.
func negotiateEncoding(offered []PositionEncoding) PositionEncoding {
	if slices.Contains(offered, PositionEncodingUTF8) {
		return PositionEncodingUTF8
	}
	return PositionEncodingUTF16
}

// byteColumn converts a column counted in enc units to a byte offset into
// line, clamped to the line. A column inside a character snaps to its start.
func byteColumn(line string, col int, enc PositionEncoding) int {
	col = max(col, 0)
	if enc == PositionEncodingUTF8 {
		return min(col, len(line))
	}
	units, i := 0, 0
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		n := max(utf16.RuneLen(r), 1)
		if units+n > col {
			break
		}
		units += n
		i += size
	}
	return i
}

// unitColumn converts a byte offset into line to a column in enc units
func unitColumn(line string, col int, enc PositionEncoding) int {
	col = min(max(col, 0), len(line))
	if enc == PositionEncodingUTF8 {
		return col
	}
	units := 0
	for i := 0; i < col; {
		r, size := utf8.DecodeRuneInString(line[i:])
		units += max(utf16.RuneLen(r), 1)
		i += size
	}
	return units
}

// positions maps byte positions of a document to wire positions and back.
// Lines outside the document keep their column unchanged.
type positions struct {
	lines []string
	enc   PositionEncoding
}

func newPositions(lines []string, enc PositionEncoding) positions {
	return positions{lines: lines, enc: enc}
}

func (p positions) toPosition(pos types.Position) Position {
	col := pos.Character
	if pos.Line >= 0 && pos.Line < len(p.lines) {
		col = unitColumn(p.lines[pos.Line], col, p.enc)
	}
	return Position{Line: uint32(max(pos.Line, 0)), Character: uint32(max(col, 0))}
}

func (p positions) toRange(r types.Range) Range {
	return Range{Start: p.toPosition(r.Start), End: p.toPosition(r.End)}
}

func (p positions) fromPosition(pos Position) types.Position {
	line, col := int(pos.Line), int(pos.Character)
	if line < len(p.lines) {
		col = byteColumn(p.lines[line], col, p.enc)
	}
	return types.Position{Line: line, Character: col}
}
