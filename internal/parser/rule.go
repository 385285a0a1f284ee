package parser

import (
	"regexp"
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

var (
	// rule "Adult check" extends "Base"
	// rule adultCheck
	rulePattern = regexp.MustCompile(`^\s*rule(?:\s+(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|([^\s"']+)))?(?:\s+extends\s+(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|(\S+)))?`)

	// query "people over" (int age)
	queryPattern = regexp.MustCompile(`^\s*query\s+(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|([\w.]+))\s*(?:\((.*)\))?`)
)

// ruleState tracks where the rule parser is inside a rule body
type ruleState int

const (
	ruleStart ruleState = iota
	ruleExpectWhen
	ruleInWhen
	ruleExpectThen
	ruleInThen
	ruleExpectEnd
	ruleDone
)

func (s ruleState) String() string {
	switch s {
	case ruleStart:
		return "start"
	case ruleExpectWhen:
		return "expect-when"
	case ruleInWhen:
		return "in-when"
	case ruleExpectThen:
		return "expect-then"
	case ruleInThen:
		return "in-then"
	case ruleExpectEnd:
		return "expect-end"
	case ruleDone:
		return "done"
	default:
		return "unknown"
	}
}

// firstMatch returns the first non-empty capture group
func firstMatch(match []string, groups ...int) string {
	for _, g := range groups {
		if g < len(match) && match[g] != "" {
			return match[g]
		}
	}
	return ""
}

// RuleMatcher extracts rules
type RuleMatcher struct{}

func (m *RuleMatcher) Name() string  { return "rule" }
func (m *RuleMatcher) Priority() int { return 80 }

func (m *RuleMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	if !keywordAt(line, "rule") {
		return nil
	}
	rule, next := ctx.parseRule(line)
	return &MatchResult{Node: rule, NextLine: next}
}

// parseRule runs the rule state machine from the header line. It returns
// the rule and the line to resume at.
func (ctx *ParseContext) parseRule(header Line) (*types.Rule, int) {
	start := types.Position{Line: header.Number, Character: header.Indent()}
	keyword := types.Range{Start: start, End: advance(start, len("rule"))}

	rule := &types.Rule{}
	match := rulePattern.FindStringSubmatch(header.Text)
	rule.Name = firstMatch(match, 1, 2, 3)
	rule.Extends = firstMatch(match, 4, 5, 6)
	if rule.Name == "" {
		ctx.Report(types.NewStructuralError(types.CodeMissingName, types.SeverityError, keyword,
			"rule without a name"))
	}

	state := ruleStart
	lastLine := header.Number
	n := header.Number + 1
	var thenBody types.Position

loop:
	for n < len(ctx.Lines) {
		line := ctx.Lines[n]
		if line.IsBlank() {
			n++
			continue
		}
		if isTopLevelBoundary(line) {
			break
		}
		kw := boundaryKeyword(line)
		kwPos := types.Position{Line: n, Character: line.Indent()}

		switch {
		case kw == "end":
			if state == ruleInThen {
				rule.Then.Actions = strings.TrimSpace(textBetween(ctx.Lines, thenBody, kwPos))
				rule.Then.Range.End = lastCodeEnd(ctx.Lines, rule.Then.Range.Start, kwPos)
			} else {
				ctx.reportMissingThen(rule, keyword)
			}
			state = ruleDone
			lastLine = n
			rule.Range = types.Range{Start: start, End: advance(kwPos, len("end"))}
			n++
			break loop

		case kw == "when" && state != ruleInThen:
			afterWhen := advance(kwPos, len("when"))
			if rule.When == nil {
				rule.When = &types.WhenClause{Range: types.Range{Start: kwPos, End: afterWhen}}
			}
			state = ruleInWhen
			conds, stop := ctx.parseConditions(afterWhen)
			rule.When.Conditions = append(rule.When.Conditions, conds...)
			if len(rule.When.Conditions) > 0 {
				rule.When.Range.End = rule.When.Conditions[len(rule.When.Conditions)-1].Range.End
			}
			lastLine = max(lastLine, rule.When.Range.End.Line)
			state = ruleExpectThen
			n = stop

		case kw == "then" && state != ruleInThen:
			thenBody = advance(kwPos, len("then"))
			rule.Then = &types.ThenClause{Range: types.Range{Start: kwPos, End: thenBody}}
			state = ruleInThen
			lastLine = n
			n++

		case state == ruleInThen:
			lastLine = n
			n++

		case state == ruleStart || state == ruleExpectWhen:
			state = ruleExpectWhen
			if attr := parseAttribute(line); attr != nil {
				rule.Attributes = append(rule.Attributes, attr)
			} else {
				ctx.Report(types.NewStructuralError(types.CodeUnexpectedText, types.SeverityWarning, lineRange(line),
					"unexpected text before 'when' in rule %q", rule.Name))
			}
			lastLine = n
			n++

		default:
			// text after the conditions that is not 'then'
			ctx.Report(types.NewStructuralError(types.CodeUnexpectedText, types.SeverityWarning, lineRange(line),
				"unexpected text in rule %q, expected 'then'", rule.Name))
			lastLine = n
			n++
		}
	}

	if state != ruleDone {
		end := lastCodeEnd(ctx.Lines, start, lineEnd(ctx.Lines, lastLine))
		if state == ruleInThen {
			rule.Then.Actions = strings.TrimSpace(textBetween(ctx.Lines, thenBody, end))
			rule.Then.Range.End = end
		} else {
			ctx.reportMissingThen(rule, keyword)
		}
		rule.Range = types.Range{Start: start, End: end}
		ctx.Report(types.NewStructuralError(types.CodeMissingEnd, types.SeverityError, keyword,
			"rule %q: missing 'end'", rule.Name))
	}
	return rule, n
}

func (ctx *ParseContext) reportMissingThen(rule *types.Rule, keyword types.Range) {
	ctx.Report(types.NewStructuralError(types.CodeMissingThen, types.SeverityWarning, keyword,
		"rule %q has no 'then'", rule.Name))
}

// QueryMatcher extracts queries
type QueryMatcher struct{}

func (m *QueryMatcher) Name() string  { return "query" }
func (m *QueryMatcher) Priority() int { return 80 }

func (m *QueryMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	if !keywordAt(line, "query") {
		return nil
	}
	start := types.Position{Line: line.Number, Character: line.Indent()}
	keyword := types.Range{Start: start, End: advance(start, len("query"))}

	q := &types.Query{}
	if match := queryPattern.FindStringSubmatch(line.Text); match != nil {
		q.Name = firstMatch(match, 1, 2, 3)
		if match[4] != "" {
			q.Parameters = parseParameters(match[4], match[4])
		}
	}
	if q.Name == "" {
		ctx.Report(types.NewStructuralError(types.CodeMissingName, types.SeverityError, keyword,
			"query without a name"))
	}

	conds, stop := ctx.parseConditions(types.Position{Line: line.Number + 1})
	q.Conditions = conds
	for stop < len(ctx.Lines) {
		l := ctx.Lines[stop]
		switch boundaryKeyword(l) {
		case "end":
			q.Range = types.Range{Start: start, End: lineRange(l).End}
			return &MatchResult{Node: q, NextLine: stop + 1}
		case "rule", "query", "declare":
		default:
			// when/then have no place in a query
			ctx.Report(types.NewStructuralError(types.CodeUnexpectedText, types.SeverityWarning, lineRange(l),
				"unexpected '%s' in query %q", boundaryKeyword(l), q.Name))
			more, next := ctx.parseConditions(types.Position{Line: stop + 1})
			q.Conditions = append(q.Conditions, more...)
			stop = next
			continue
		}
		break
	}

	var end types.Position
	if len(q.Conditions) > 0 {
		end = q.Conditions[len(q.Conditions)-1].Range.End
	} else {
		end = lastCodeEnd(ctx.Lines, start, lineEnd(ctx.Lines, line.Number))
	}
	q.Range = types.Range{Start: start, End: end}
	ctx.Report(types.NewStructuralError(types.CodeMissingEnd, types.SeverityError, keyword,
		"query %q: missing 'end'", q.Name))
	return &MatchResult{Node: q, NextLine: stop}
}

// parseConditions reads conditions from pos until a line starting with a
// recovery keyword or EOF. It returns the line it stopped at.
func (ctx *ParseContext) parseConditions(pos types.Position) ([]*types.Condition, int) {
	var conds []*types.Condition
	first := pos.Line
	for {
		p, ok := skipSpace(ctx.Lines, pos)
		if !ok {
			return conds, len(ctx.Lines)
		}
		line := ctx.Lines[p.Line]
		if (p.Line != first || pos.Character == 0) && p.Character == line.Indent() && boundaryKeyword(line) != "" {
			return conds, p.Line
		}

		if w := wordAt(ctx.Lines, p); w == "and" || w == "or" {
			pos = advance(p, len(w))
			continue
		}
		if code := line.Code[p.Character:]; strings.HasPrefix(code, "&&") || strings.HasPrefix(code, "||") {
			pos = advance(p, 2)
			continue
		}

		cond, next := ctx.parseCondition(p)
		conds = append(conds, cond)
		if !p.Less(next) {
			// never stall
			next = types.Position{Line: p.Line + 1}
		}
		pos = next
	}
}

// parseCondition parses the condition starting at p and returns it along
// with the position just past it
func (ctx *ParseContext) parseCondition(p types.Position) (*types.Condition, types.Position) {
	lines := ctx.Lines

	if rec, ok := ctx.Recognizer.Recognize(lines, p); ok {
		if rec.Malformed {
			return ctx.malformed(p, "mismatched brackets in '%s' pattern", rec.Pattern.Keyword)
		}
		ctx.reportPattern(rec)
		return buildCondition(lines, p, rec.End, []*types.MultiLinePattern{rec.Pattern}), rec.End
	}

	// not Person( ... ) / exists $p : Person( ... )
	if w := wordAt(lines, p); w == "not" || w == "exists" || w == "forall" {
		if inner, ok := skipSpace(lines, advance(p, len(w))); ok && inner.Line == p.Line {
			end, rec, status := ctx.scanPlain(inner)
			if status != plainOK {
				return ctx.malformed(p, "unbalanced brackets in condition")
			}
			cond := ctx.plainCondition(inner, end, rec)
			t, _ := types.ConditionTypeFromKeyword(w)
			cond.Type = t
			cond.Content = textBetween(lines, p, end)
			cond.Range.Start = p
			cond.SpannedLines = spannedLines(cond.Range)
			cond.IsMultiLine = cond.Range.SpansMultipleLines() || cond.Pattern != nil
			return cond, end
		}
	}

	end, rec, status := ctx.scanPlain(p)
	if status != plainOK {
		return ctx.malformed(p, "unbalanced brackets in condition")
	}
	return ctx.plainCondition(p, end, rec), end
}

func (ctx *ParseContext) plainCondition(from, to types.Position, rec *Recognition) *types.Condition {
	var nested []*types.MultiLinePattern
	if rec != nil {
		ctx.reportPattern(rec)
		nested = append(nested, rec.Pattern)
	}
	return buildCondition(ctx.Lines, from, to, nested)
}

// reportPattern emits the diagnostics of a recognized pattern
func (ctx *ParseContext) reportPattern(rec *Recognition) {
	for _, p := range rec.Incomplete {
		kw := types.Range{Start: p.Range.Start, End: advance(p.Range.Start, len(p.Keyword))}
		ctx.Report(types.NewSyntaxError(types.CodeIncompletePattern, kw,
			"incomplete '%s' pattern: missing ')'", p.Keyword))
	}
	for _, p := range rec.Complex {
		kw := types.Range{Start: p.Range.Start, End: advance(p.Range.Start, len(p.Keyword))}
		ctx.Report(&types.ParseError{
			Message:  "'" + p.Keyword + "' pattern is too complex to analyse further",
			Range:    kw,
			Severity: types.SeverityWarning,
			Category: types.CategorySyntax,
			Code:     types.CodePatternTooComplex,
		})
	}
}

// malformed abandons the condition at p: the text up to the next recovery
// boundary becomes one generic condition
func (ctx *ParseContext) malformed(p types.Position, format string, args ...any) (*types.Condition, types.Position) {
	stop := len(ctx.Lines)
	for n := p.Line + 1; n < len(ctx.Lines); n++ {
		if boundaryKeyword(ctx.Lines[n]) != "" {
			stop = n
			break
		}
	}
	end := lastCodeEnd(ctx.Lines, p, lineEnd(ctx.Lines, stop-1))
	r := types.Range{Start: p, End: end}
	ctx.Report(types.NewSyntaxError(types.CodeMalformedCondition, r, format, args...))

	cond := &types.Condition{
		Type:         types.ConditionGeneric,
		Content:      textBetween(ctx.Lines, p, end),
		Range:        r,
		SpannedLines: spannedLines(r),
		IsMultiLine:  r.SpansMultipleLines(),
	}
	if stop >= len(ctx.Lines) {
		return cond, eof(ctx.Lines)
	}
	return cond, types.Position{Line: stop}
}

type plainStatus int

const (
	plainOK plainStatus = iota
	plainUnbalanced
	plainMismatched
)

// scanPlain finds where the plain fact pattern at from ends: at a depth 0
// and/or, at the end of the line once brackets balance, or before a
// recovery boundary. A `from collect(` or `from accumulate(` source is
// recognized as a pattern on the way.
func (ctx *ParseContext) scanPlain(from types.Position) (types.Position, *Recognition, plainStatus) {
	lines := ctx.Lines
	bt := NewBracketTracker()
	var rec *Recognition
	pos := from

	for {
		code := lines[pos.Line].Code
		if pos.Character >= len(code) {
			if bt.OpenDepth() == 0 {
				return lastCodeEnd(lines, from, pos), rec, plainOK
			}
			next := pos.Line + 1
			if next >= len(lines) || boundaryKeyword(lines[next]) != "" {
				return lastCodeEnd(lines, from, pos), rec, plainUnbalanced
			}
			pos = types.Position{Line: next}
			continue
		}

		if w := wordAt(lines, pos); w != "" {
			if bt.OpenDepth() == 0 && pos != from {
				switch w {
				case "and", "or":
					return lastCodeEnd(lines, from, pos), rec, plainOK
				case "collect", "accumulate":
					if r, ok := ctx.Recognizer.Recognize(lines, pos); ok && rec == nil {
						if r.Malformed {
							return r.End, nil, plainMismatched
						}
						rec = r
						pos = r.End
						continue
					}
				}
			}
			pos = advance(pos, len(w))
			continue
		}

		if bt.OpenDepth() == 0 && pos != from {
			if rest := code[pos.Character:]; strings.HasPrefix(rest, "&&") || strings.HasPrefix(rest, "||") {
				return lastCodeEnd(lines, from, pos), rec, plainOK
			}
		}

		bt.FeedChar(code[pos.Character], pos)
		if bt.MismatchCount() > 0 || bt.UnmatchedCloseCount() > 0 {
			return advance(pos, 1), rec, plainMismatched
		}
		pos = advance(pos, 1)
	}
}
