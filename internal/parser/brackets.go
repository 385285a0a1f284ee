package parser

import (
	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// BracketTracker keeps one LIFO stack per bracket kind across lines.
// A separate interleaving stack is used only to notice closes that
// arrive while a bracket of another kind is innermost.
type BracketTracker struct {
	stacks [3][]int // indexes into result.Opens, per kind
	order  []int    // all open indexes still on a stack, in push order
	result types.ParenthesesTracker
}

// NewBracketTracker creates an empty tracker
func NewBracketTracker() *BracketTracker {
	return &BracketTracker{}
}

// Feed processes the non-opaque characters of a line
func (bt *BracketTracker) Feed(line Line) {
	bt.FeedRange(line, 0, len(line.Code))
}

// FeedRange processes columns [from, to) of a line
func (bt *BracketTracker) FeedRange(line Line, from, to int) {
	to = min(to, len(line.Code))
	for col := max(from, 0); col < to; col++ {
		bt.FeedChar(line.Code[col], types.Position{Line: line.Number, Character: col})
	}
}

// FeedChar processes one already neutralized character
func (bt *BracketTracker) FeedChar(ch byte, pos types.Position) {
	kind, open, ok := types.BracketKindOf(ch)
	if !ok {
		return
	}
	b := types.Bracket{Kind: kind, Char: string(ch), Position: pos}

	if open {
		bt.result.Opens = append(bt.result.Opens, b)
		idx := len(bt.result.Opens) - 1
		bt.stacks[kind] = append(bt.stacks[kind], idx)
		bt.order = append(bt.order, idx)
		return
	}

	bt.result.Closes = append(bt.result.Closes, b)

	// innermost open of any kind, for mismatch detection
	if len(bt.order) > 0 {
		inner := bt.result.Opens[bt.order[len(bt.order)-1]]
		if inner.Kind != kind {
			bt.result.Mismatched = append(bt.result.Mismatched, types.BracketPair{Open: inner, Close: b})
		}
	}

	stack := bt.stacks[kind]
	if len(stack) == 0 {
		bt.result.UnmatchedClose = append(bt.result.UnmatchedClose, b)
		return
	}

	idx := stack[len(stack)-1]
	bt.stacks[kind] = stack[:len(stack)-1]
	bt.removeFromOrder(idx)
	bt.result.Pairs = append(bt.result.Pairs, types.BracketPair{Open: bt.result.Opens[idx], Close: b})
}

func (bt *BracketTracker) removeFromOrder(idx int) {
	for i := len(bt.order) - 1; i >= 0; i-- {
		if bt.order[i] == idx {
			bt.order = append(bt.order[:i], bt.order[i+1:]...)
			return
		}
	}
}

// Depth returns the number of currently open brackets of a kind
func (bt *BracketTracker) Depth(kind types.BracketKind) int {
	return len(bt.stacks[kind])
}

// OpenDepth returns the number of currently open brackets of any kind
func (bt *BracketTracker) OpenDepth() int {
	return len(bt.order)
}

// MismatchCount is the number of kind mismatches seen so far
func (bt *BracketTracker) MismatchCount() int {
	return len(bt.result.Mismatched)
}

// UnmatchedCloseCount is the number of closes with no open so far
func (bt *BracketTracker) UnmatchedCloseCount() int {
	return len(bt.result.UnmatchedClose)
}

// Finish moves everything still open to UnmatchedOpen and returns the
// result. The tracker should not be fed afterwards.
func (bt *BracketTracker) Finish() *types.ParenthesesTracker {
	res := bt.result
	res.UnmatchedOpen = nil
	for _, idx := range bt.order {
		res.UnmatchedOpen = append(res.UnmatchedOpen, bt.result.Opens[idx])
	}
	return &res
}

// TrackBrackets runs a tracker over all lines
func TrackBrackets(lines []Line) *types.ParenthesesTracker {
	bt := NewBracketTracker()
	for _, l := range lines {
		bt.Feed(l)
	}
	return bt.Finish()
}

// TrackBracketsInLines runs a tracker over the lines in lr only
func TrackBracketsInLines(lines []Line, lr types.LineRange) *types.ParenthesesTracker {
	bt := NewBracketTracker()
	for n := max(lr.Start, 0); n <= lr.End && n < len(lines); n++ {
		bt.Feed(lines[n])
	}
	return bt.Finish()
}

// BracketDiagnostics converts unmatched and mismatched brackets into
// syntax errors. Brackets for which skip returns true are left out; the
// builder uses this for brackets already reported by an incomplete pattern.
func BracketDiagnostics(t *types.ParenthesesTracker, skip func(types.Position) bool) []*types.ParseError {
	var errs []*types.ParseError
	mismatchedClose := make(map[types.Position]bool, len(t.Mismatched))

	for _, m := range t.Mismatched {
		mismatchedClose[m.Close.Position] = true
		errs = append(errs, types.NewSyntaxError(types.CodeMismatchedBracket, bracketRange(m.Close),
			"'%s' does not match '%s' opened at %d:%d", m.Close.Char, m.Open.Char,
			m.Open.Position.Line+1, m.Open.Position.Character+1))
	}
	for _, b := range t.UnmatchedClose {
		if mismatchedClose[b.Position] {
			continue
		}
		errs = append(errs, types.NewSyntaxError(types.CodeUnmatchedClose, bracketRange(b),
			"unmatched '%s'", b.Char))
	}
	for _, b := range t.UnmatchedOpen {
		if skip != nil && skip(b.Position) {
			continue
		}
		errs = append(errs, types.NewSyntaxError(types.CodeUnmatchedOpen, bracketRange(b),
			"'%s' is never closed", b.Char))
	}
	return errs
}

func bracketRange(b types.Bracket) types.Range {
	return types.Range{Start: b.Position, End: types.Position{Line: b.Position.Line, Character: b.Position.Character + 1}}
}
