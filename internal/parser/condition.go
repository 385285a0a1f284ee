package parser

import (
	"regexp"
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

var (
	// $p : Person( or org.acme.Person(
	factHeadPattern = regexp.MustCompile(`^(?:(\$\w+)\s*:\s*)?([A-Za-z_][\w.]*)\s*\(`)
	// $b : Type with no parenthesized constraints
	bareBindingPattern = regexp.MustCompile(`^(\$\w+)\s*:\s*([A-Za-z_][\w.]*)\s*$`)

	constraintPattern = regexp.MustCompile(`(?s)^(?:(\$\w+)\s*:\s*)?(\S.*?)\s*(==|!=|>=|<=|>|<|\b(?:not\s+)?(?:matches|contains|memberOf|soundslike|in)\b)\s*(.*)$`)
	bindingPattern    = regexp.MustCompile(`^(\$\w+)\s*:\s*([\w.]+)$`)
)

// segment is a [start, end) slice of a condition list with surrounding
// whitespace removed
type segment struct {
	start    types.Position
	end      types.Position
	balanced bool
}

// splitSegments splits [from, to) on ',' and ';' at bracket depth 0 and,
// when logical is set, on the words "and" and "or" too
func splitSegments(lines []Line, from, to types.Position, logical bool) []segment {
	var (
		out     []segment
		cur     *segment
		depth   int
		minimum int
		skipTo  types.Position
	)
	flush := func() {
		if cur != nil {
			cur.balanced = depth == 0 && minimum >= 0
			out = append(out, *cur)
		}
		cur = nil
		minimum = depth
	}

	walk(lines, from, to, func(pos types.Position, ch byte) bool {
		if pos.Less(skipTo) {
			return true
		}
		if depth == 0 {
			if ch == ',' || (logical && ch == ';') {
				flush()
				return true
			}
			if logical && (ch == 'a' || ch == 'o') {
				if w := wordAt(lines, pos); w == "and" || w == "or" {
					flush()
					skipTo = advance(pos, len(w))
					return true
				}
			}
		}
		if _, open, ok := types.BracketKindOf(ch); ok {
			if open {
				depth++
			} else {
				depth--
				minimum = min(minimum, depth)
			}
		}
		if ch == ' ' || ch == '\t' {
			return true
		}
		if cur == nil {
			cur = &segment{start: pos}
		}
		cur.end = advance(pos, 1)
		return true
	})
	flush()
	return out
}

// buildCondition parses one condition segment. A pattern from nested that
// starts inside the segment is attached and decides the condition type.
func buildCondition(lines []Line, from, to types.Position, nested []*types.MultiLinePattern) *types.Condition {
	r := types.Range{Start: from, End: to}

	var pat *types.MultiLinePattern
	for _, n := range nested {
		if !n.Range.Start.Less(from) && n.Range.Start.Less(to) {
			pat = n
			break
		}
	}

	var cond *types.Condition
	switch {
	case pat != nil && pat.Range.Start == from:
		cond = &types.Condition{Type: pat.Type, Content: textBetween(lines, from, to), Range: r}
		if pat.Type == types.ConditionNot || pat.Type == types.ConditionExists {
			// not( $p : Person() ) reads like the fact pattern it wraps
			if len(pat.InnerConditions) == 1 {
				inner := pat.InnerConditions[0]
				cond.Variable = inner.Variable
				cond.FactType = inner.FactType
				cond.Constraints = inner.Constraints
			}
		}
	case pat != nil:
		// $l : List() from collect( ... )
		cond = parseFactPattern(lines, from, to)
		cond.Type = pat.Type
	default:
		cond = parseFactPattern(lines, from, to)
	}

	cond.Pattern = pat
	cond.SpannedLines = spannedLines(r)
	cond.IsMultiLine = r.SpansMultipleLines() || pat != nil
	return cond
}

// parseFactPattern reads `$var : Type( constraints )` from [from, to)
func parseFactPattern(lines []Line, from, to types.Position) *types.Condition {
	raw := textBetween(lines, from, to)
	code := codeBetween(lines, from, to)
	r := types.Range{Start: from, End: to}
	cond := &types.Condition{
		Type:         types.ConditionPattern,
		Content:      raw,
		Range:        r,
		SpannedLines: spannedLines(r),
		IsMultiLine:  r.SpansMultipleLines(),
	}

	m := factHeadPattern.FindStringSubmatchIndex(code)
	if m == nil {
		if b := bareBindingPattern.FindStringSubmatch(code); b != nil {
			cond.Variable = b[1]
			cond.FactType = b[2]
		}
		return cond
	}
	if m[2] >= 0 {
		cond.Variable = raw[m[2]:m[3]]
	}
	cond.FactType = raw[m[4]:m[5]]

	open := m[1] - 1
	end := matchingParen(code, open)
	if end < 0 {
		end = len(code)
	}
	cond.Constraints = parseConstraints(raw, code, from, open+1, end)
	return cond
}

// matchingParen returns the index of the ')' closing the '(' at open, or -1
func matchingParen(code string, open int) int {
	depth := 0
	for i := open; i < len(code); i++ {
		switch code[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseConstraints splits raw[lo:hi] on commas at depth 0. raw and code
// share offsets; origin is the document position of offset 0.
func parseConstraints(raw, code string, origin types.Position, lo, hi int) []*types.Constraint {
	var out []*types.Constraint
	depth := 0
	start := lo
	emit := func(a, b int) {
		for a < b && isSpace(code[a]) {
			a++
		}
		for b > a && isSpace(code[b-1]) {
			b--
		}
		if a == b {
			return
		}
		out = append(out, parseConstraint(raw[a:b], types.Range{
			Start: offsetPosition(origin, raw, a),
			End:   offsetPosition(origin, raw, b),
		}))
	}
	for i := lo; i < hi; i++ {
		switch code[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				emit(start, i)
				start = i + 1
			}
		}
	}
	emit(start, hi)
	return out
}

func parseConstraint(text string, r types.Range) *types.Constraint {
	c := &types.Constraint{Text: text, Range: r}
	if m := constraintPattern.FindStringSubmatch(text); m != nil {
		c.Binding = m[1]
		c.Field = strings.TrimSpace(m[2])
		c.Operator = strings.Join(strings.Fields(m[3]), " ")
		c.Value = strings.TrimSpace(m[4])
		return c
	}
	if m := bindingPattern.FindStringSubmatch(text); m != nil {
		c.Binding = m[1]
		c.Field = m[2]
	}
	return c
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
