package types

import "fmt"

// Position is a zero-based line/character location in a document
type Position struct {
	Line      int `json:"line" yaml:"line"`
	Character int `json:"character" yaml:"character"`
}

// Less reports whether p comes before other in line-major order
func (p Position) Less(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Range is a span between two positions, Start <= End
type Range struct {
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
}

// NewRange builds a range from line/character pairs
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// Contains reports whether pos lies inside the range (end inclusive)
func (r Range) Contains(pos Position) bool {
	return !pos.Less(r.Start) && !r.End.Less(pos)
}

// SpansMultipleLines reports whether the range crosses a line boundary
func (r Range) SpansMultipleLines() bool {
	return r.End.Line > r.Start.Line
}

// Lines returns the inclusive line interval covered by the range
func (r Range) Lines() LineRange {
	return LineRange{Start: r.Start.Line, End: r.End.Line}
}

// OverlapsLines reports whether any line of the range lies in lr
func (r Range) OverlapsLines(lr LineRange) bool {
	return r.Lines().Overlaps(lr)
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// LineRange is an inclusive interval of zero-based line numbers
type LineRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Overlaps reports whether the two intervals share at least one line
func (lr LineRange) Overlaps(other LineRange) bool {
	return lr.Start <= other.End && other.Start <= lr.End
}

// Contains reports whether line lies inside the interval
func (lr LineRange) Contains(line int) bool {
	return line >= lr.Start && line <= lr.End
}

// Union returns the smallest interval covering both
func (lr LineRange) Union(other LineRange) LineRange {
	return LineRange{Start: min(lr.Start, other.Start), End: max(lr.End, other.End)}
}

// Shift moves the interval by delta lines
func (lr LineRange) Shift(delta int) LineRange {
	return LineRange{Start: lr.Start + delta, End: lr.End + delta}
}

func (lr LineRange) String() string {
	return fmt.Sprintf("%d-%d", lr.Start, lr.End)
}
