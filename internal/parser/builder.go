package parser

import (
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// Builder turns scanned lines into top-level AST nodes
type Builder struct {
	registry *Registry
}

// NewBuilder creates a new builder with the given registry
func NewBuilder(registry *Registry) *Builder {
	return &Builder{
		registry: registry,
	}
}

// buildCallbacks controls the build loop behavior.
type buildCallbacks struct {
	// resync is called at every line where a new top-level construct may
	// start. Returning true stops the loop there. May be nil.
	resync func(line int) bool
}

// buildLines runs the core line-by-line loop from line from. It returns
// the nodes found and the line where it stopped.
func (b *Builder) buildLines(ctx *ParseContext, from int, cb buildCallbacks) ([]types.Node, int) {
	var nodes []types.Node
	matchers := b.registry.Matchers()

	// consecutive unknown lines are reported once
	var stray *types.Range
	flushStray := func() {
		if stray != nil {
			ctx.Report(types.NewStructuralError(types.CodeUnexpectedText, types.SeverityWarning, *stray,
				"unexpected text outside of any declaration"))
			stray = nil
		}
	}

	ctx.LineNum = from
	for ctx.LineNum < len(ctx.Lines) {
		if cb.resync != nil && cb.resync(ctx.LineNum) {
			flushStray()
			return nodes, ctx.LineNum
		}

		line := ctx.Line()
		if line.IsBlank() {
			ctx.LineNum++
			continue
		}

		matched := false
		for _, matcher := range matchers {
			result := matcher.Match(line, ctx)
			if result == nil {
				continue
			}
			flushStray()
			if result.Node != nil {
				nodes = append(nodes, result.Node)
			}
			// forward progress
			ctx.LineNum = max(result.NextLine, line.Number+1)
			matched = true
			break
		}
		if matched {
			continue
		}

		r := lineRange(line)
		if stray == nil {
			stray = &r
		} else {
			stray.End = r.End
		}
		ctx.LineNum++
	}
	flushStray()
	return nodes, ctx.LineNum
}

// assemble builds the file root from nodes in document order
func assemble(nodes []types.Node, lines []Line, comments []types.Range) *types.DroolsFile {
	file := &types.DroolsFile{Comments: comments}
	for _, n := range nodes {
		file.Add(n)
	}
	if len(lines) > 0 {
		file.Range = types.Range{End: eof(lines)}
	}
	return file
}

// accumulator follows a bracketed construct across lines, starting at an
// opening bracket
type accumulator struct {
	lines  []Line
	origin types.Position
}

func newAccumulator(lines []Line, origin types.Position) *accumulator {
	return &accumulator{lines: lines, origin: origin}
}

// scan feeds characters from pos on until done reports true for the
// character just fed. It stops before a line starting a new top-level
// construct, returning the end of the consumed code and false.
func (a *accumulator) scan(pos types.Position, done func(types.Position, byte, *BracketTracker) bool) (types.Position, bool) {
	bt := NewBracketTracker()
	for n := pos.Line; n < len(a.lines); n++ {
		line := a.lines[n]
		col := 0
		if n == pos.Line {
			col = pos.Character
		} else if isTopLevelBoundary(line) {
			return lastCodeEnd(a.lines, pos, types.Position{Line: n - 1, Character: len(a.lines[n-1].Text)}), false
		}
		for ; col < len(line.Code); col++ {
			at := types.Position{Line: n, Character: col}
			bt.FeedChar(line.Code[col], at)
			if done(at, line.Code[col], bt) {
				return at, true
			}
		}
	}
	return lastCodeEnd(a.lines, pos, eof(a.lines)), false
}

// closeOf finds the bracket closing the one at origin
func (a *accumulator) closeOf(kind types.BracketKind) (types.Position, bool) {
	return a.scan(a.origin, func(_ types.Position, ch byte, bt *BracketTracker) bool {
		k, open, ok := types.BracketKindOf(ch)
		return ok && !open && k == kind && bt.Depth(kind) == 0
	})
}

// braceBody finds the first `{ ... }` block at or after from. It returns
// the trimmed body, whether the block was closed and where it ends.
func (a *accumulator) braceBody(from types.Position) (string, bool, types.Position) {
	open, ok := a.scan(from, func(_ types.Position, ch byte, _ *BracketTracker) bool {
		return ch == '{'
	})
	if !ok {
		return "", false, open
	}
	body := newAccumulator(a.lines, open)
	end, closed := body.closeOf(types.BracketBrace)
	if !closed {
		return strings.TrimSpace(textBetween(a.lines, advance(open, 1), end)), false, end
	}
	return strings.TrimSpace(textBetween(a.lines, advance(open, 1), end)), true, advance(end, 1)
}
