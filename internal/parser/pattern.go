package parser

import (
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

// DefaultMaxPatternDepth bounds how deep nested patterns are searched
const DefaultMaxPatternDepth = 10

// ComplexityFunc flags a recognized pattern as too complex. It runs once
// the pattern's content and nested patterns are known.
type ComplexityFunc func(p *types.MultiLinePattern, maxDepth int) bool

// DepthComplexity flags patterns nested deeper than maxDepth
func DepthComplexity(p *types.MultiLinePattern, maxDepth int) bool {
	return p.Depth > maxDepth
}

// PatternRecognizer finds keyword-introduced parenthesized constructs
// (exists, not, eval, forall, collect, accumulate) that may span lines
type PatternRecognizer struct {
	MaxDepth   int
	TooComplex ComplexityFunc
	// StopAtBoundary ends an unclosed pattern before a line starting with
	// a recovery keyword instead of running on to EOF
	StopAtBoundary bool
}

// Recognition is the outcome of one Recognize call
type Recognition struct {
	Pattern *types.MultiLinePattern
	// End is just past the closing ')' or the last consumed character
	End types.Position
	// Malformed is set when bracket kinds were mismatched in the body
	Malformed bool
	// Incomplete lists every unclosed pattern, outermost first
	Incomplete []*types.MultiLinePattern
	// Complex lists every pattern flagged too complex
	Complex []*types.MultiLinePattern
}

// frame is one open pattern on the explicit recognition stack
type frame struct {
	pat    *types.MultiLinePattern
	body   types.Position // just past the opening '('
	level  int            // paren depth once the opening '(' is counted
	search bool           // whether nested keywords are looked for
}

// NewPatternRecognizer creates a recognizer; maxDepth <= 0 takes the default
func NewPatternRecognizer(maxDepth int, tooComplex ComplexityFunc) *PatternRecognizer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPatternDepth
	}
	return &PatternRecognizer{MaxDepth: maxDepth, TooComplex: tooComplex, StopAtBoundary: true}
}

// IsPatternKeyword reports whether kw introduces a multi-line pattern
func IsPatternKeyword(kw string) bool {
	switch kw {
	case "exists", "not", "eval", "forall", "collect", "accumulate":
		return true
	}
	return false
}

// patternStart checks for a pattern keyword at pos followed, possibly on
// a later line, by '('
func patternStart(lines []Line, pos types.Position) (string, types.Position, bool) {
	kw := wordAt(lines, pos)
	if !IsPatternKeyword(kw) {
		return "", types.Position{}, false
	}
	paren, ok := skipSpace(lines, advance(pos, len(kw)))
	if !ok || charAt(lines, paren) != '(' {
		return "", types.Position{}, false
	}
	return kw, paren, true
}

// Recognize consumes the pattern whose keyword starts at start. It
// returns false when start is not a keyword followed by '('.
func (r *PatternRecognizer) Recognize(lines []Line, start types.Position) (*Recognition, bool) {
	kw, paren, ok := patternStart(lines, start)
	if !ok {
		return nil, false
	}

	bt := NewBracketTracker()
	stack := []*frame{r.open(bt, kw, start, paren, 0)}
	rec := &Recognition{Pattern: stack[0].pat}

	pos := advance(paren, 1)
	for len(stack) > 0 {
		code := lines[pos.Line].Code
		if pos.Character >= len(code) {
			next := pos.Line + 1
			if next >= len(lines) {
				break
			}
			if r.StopAtBoundary && boundaryKeyword(lines[next]) != "" {
				break
			}
			pos = types.Position{Line: next}
			continue
		}

		top := stack[len(stack)-1]
		if w := wordAt(lines, pos); w != "" {
			if top.search {
				if kw, p, ok := patternStart(lines, pos); ok {
					child := r.open(bt, kw, pos, p, top.pat.Depth+1)
					stack = append(stack, child)
					pos = advance(p, 1)
					continue
				}
			}
			pos = advance(pos, len(w))
			continue
		}

		ch := code[pos.Character]
		mismatches := bt.MismatchCount()
		pairs := len(bt.result.Pairs)
		bt.FeedChar(ch, pos)
		if bt.MismatchCount() > mismatches {
			rec.Malformed = true
		}

		if ch == ')' && len(bt.result.Pairs) > pairs {
			pair := bt.result.Pairs[len(bt.result.Pairs)-1]
			top.pat.Parentheses = append(top.pat.Parentheses, pair.Range())
			if bt.Depth(types.BracketParen) < top.level {
				r.finish(lines, top, pos, true)
				stack = stack[:len(stack)-1]
				if len(stack) > 0 {
					parent := stack[len(stack)-1].pat
					parent.Nested = append(parent.Nested, top.pat)
				}
			}
		}
		pos = advance(pos, 1)
	}

	rec.End = pos
	if len(stack) > 0 {
		// ran into EOF or a boundary: close every open frame where the
		// consumed text ends
		rec.End = lastCodeEnd(lines, start, pos)
		for i := len(stack) - 1; i >= 0; i-- {
			f := stack[i]
			r.finish(lines, f, rec.End, false)
			if i > 0 {
				parent := stack[i-1].pat
				parent.Nested = append(parent.Nested, f.pat)
			}
		}
		for _, f := range stack {
			rec.Incomplete = append(rec.Incomplete, f.pat)
		}
	}

	rec.Pattern.Walk(func(p *types.MultiLinePattern) bool {
		if p.TooComplex {
			rec.Complex = append(rec.Complex, p)
		}
		return true
	})
	return rec, true
}

func (r *PatternRecognizer) open(bt *BracketTracker, kw string, at, paren types.Position, depth int) *frame {
	bt.FeedChar('(', paren)
	t, _ := types.ConditionTypeFromKeyword(kw)
	return &frame{
		pat: &types.MultiLinePattern{
			Type:    t,
			Keyword: kw,
			Depth:   depth,
			Range:   types.Range{Start: at, End: at},
		},
		body:   advance(paren, 1),
		level:  bt.Depth(types.BracketParen),
		search: depth <= r.MaxDepth,
	}
}

// finish fills in a pattern once its extent is known. For a complete
// pattern end is the closing ')'; otherwise it is where consumption stopped.
func (r *PatternRecognizer) finish(lines []Line, f *frame, end types.Position, complete bool) {
	p := f.pat
	p.IsComplete = complete
	p.Range.End = end
	if complete {
		p.Range.End = advance(end, 1)
	}
	p.Content = strings.TrimSpace(textBetween(lines, f.body, end))
	p.InnerConditions = innerConditions(lines, f.body, end, p.Nested, complete)
	p.TooComplex = p.Depth > r.MaxDepth || (r.TooComplex != nil && r.TooComplex(p, r.MaxDepth))
}

// innerConditions splits a pattern body on and/or/commas/semicolons at
// depth 0. Unbalanced segments of an incomplete body are dropped.
func innerConditions(lines []Line, from, to types.Position, nested []*types.MultiLinePattern, complete bool) []*types.Condition {
	var out []*types.Condition
	for _, seg := range splitSegments(lines, from, to, true) {
		if !complete && !seg.balanced {
			continue
		}
		out = append(out, buildCondition(lines, seg.start, seg.end, nested))
	}
	return out
}

// FindPatterns recognizes every top-level pattern whose keyword starts in
// lr. Patterns found inside an earlier pattern are not reported again.
func FindPatterns(lines []Line, lr types.LineRange, r *PatternRecognizer) []*types.MultiLinePattern {
	var out []*types.MultiLinePattern
	var resume types.Position
	for n := max(lr.Start, 0); n <= lr.End && n < len(lines); n++ {
		code := lines[n].Code
		for col := 0; col < len(code); col++ {
			pos := types.Position{Line: n, Character: col}
			if pos.Less(resume) {
				continue
			}
			rec, ok := r.Recognize(lines, pos)
			if !ok {
				continue
			}
			out = append(out, rec.Pattern)
			resume = rec.End
		}
	}
	return out
}
