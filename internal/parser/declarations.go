package parser

import (
	"regexp"
	"strings"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

var (
	// package org.acme.rules;
	packagePattern = regexp.MustCompile(`^\s*package\s+([\w.]+)\s*;?\s*$`)

	// import org.acme.Person;
	// import static org.acme.Util.*;
	// import function org.acme.Util.check;
	importPattern = regexp.MustCompile(`^\s*import\s+(?:(static|function)\s+)?([\w.]+(?:\.\*)?)\s*;?\s*$`)

	// global java.util.List<String> names;
	globalPattern = regexp.MustCompile(`^\s*global\s+([\w.]+(?:\s*<[^>]*>)?(?:\[\])*)\s+(\w+)\s*;?\s*$`)

	// salience 10, no-loop, dialect "mvel", ...
	attributePattern = regexp.MustCompile(`^\s*(salience|no-loop|agenda-group|activation-group|ruleflow-group|auto-focus|lock-on-active|dialect|date-effective|date-expires|enabled|duration|timer|calendars|refract|direct)(?:\s+(.+?))?\s*;?\s*$`)

	// @Author("me")
	annotationPattern = regexp.MustCompile(`^\s*(@[\w.]+)(?:\s*\((.*)\))?\s*$`)

	// function String greet(String name) {
	functionPattern = regexp.MustCompile(`^\s*function\s+([\w.]+(?:\s*<[^>]*>)?(?:\[\])*)\s+(\w+)\s*\(`)

	// declare Person extends Base
	// declare trait Named
	declarePattern = regexp.MustCompile(`^\s*declare\s+(?:(trait|enum)\s+)?([\w.]+)(?:\s+extends\s+([\w.]+))?`)

	// name : String @key
	fieldPattern = regexp.MustCompile(`^\s*(\w+)\s*:\s*([\w.]+(?:\s*<[^>]*>)?(?:\[\])*)\s*((?:@.*)?)\s*;?\s*$`)
)

// lineRange covers the code of a line without indentation or trailing space
func lineRange(l Line) types.Range {
	return types.NewRange(l.Number, l.Indent(), l.Number, len(strings.TrimRight(l.Text, " \t")))
}

// PackageMatcher extracts the package declaration
type PackageMatcher struct{}

func (m *PackageMatcher) Name() string  { return "package" }
func (m *PackageMatcher) Priority() int { return 100 }

func (m *PackageMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	if !keywordAt(line, "package") {
		return nil
	}
	match := packagePattern.FindStringSubmatch(line.Code)
	if match == nil {
		ctx.Report(types.NewStructuralError(types.CodeMissingName, types.SeverityError, lineRange(line),
			"package declaration without a name"))
		return &MatchResult{NextLine: line.Number + 1}
	}
	return &MatchResult{
		Node:     &types.Package{Name: match[1], Range: lineRange(line)},
		NextLine: line.Number + 1,
	}
}

// ImportMatcher extracts imports
type ImportMatcher struct{}

func (m *ImportMatcher) Name() string  { return "import" }
func (m *ImportMatcher) Priority() int { return 95 }

func (m *ImportMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	if !keywordAt(line, "import") {
		return nil
	}
	match := importPattern.FindStringSubmatch(line.Code)
	if match == nil {
		ctx.Report(types.NewStructuralError(types.CodeMissingName, types.SeverityError, lineRange(line),
			"import without a target"))
		return &MatchResult{NextLine: line.Number + 1}
	}
	return &MatchResult{
		Node: &types.Import{
			Target:   match[2],
			Static:   match[1] == "static",
			Function: match[1] == "function",
			Range:    lineRange(line),
		},
		NextLine: line.Number + 1,
	}
}

// GlobalMatcher extracts global declarations
type GlobalMatcher struct{}

func (m *GlobalMatcher) Name() string  { return "global" }
func (m *GlobalMatcher) Priority() int { return 90 }

func (m *GlobalMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	if !keywordAt(line, "global") {
		return nil
	}
	match := globalPattern.FindStringSubmatch(line.Code)
	if match == nil {
		ctx.Report(types.NewStructuralError(types.CodeMissingName, types.SeverityError, lineRange(line),
			"global needs a type and a name"))
		return &MatchResult{NextLine: line.Number + 1}
	}
	return &MatchResult{
		Node:     &types.Global{Type: strings.Join(strings.Fields(match[1]), ""), Name: match[2], Range: lineRange(line)},
		NextLine: line.Number + 1,
	}
}

// AttributeMatcher extracts package level attributes such as dialect
type AttributeMatcher struct{}

func (m *AttributeMatcher) Name() string  { return "attribute" }
func (m *AttributeMatcher) Priority() int { return 50 }

func (m *AttributeMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	attr := parseAttribute(line)
	if attr == nil {
		return nil
	}
	return &MatchResult{Node: attr, NextLine: line.Number + 1}
}

// parseAttribute reads a rule attribute or annotation from one line
func parseAttribute(line Line) *types.RuleAttribute {
	// Code keeps the quotes, so matching on it and slicing Text at the same
	// offsets recovers string values
	if m := attributePattern.FindStringSubmatchIndex(line.Code); m != nil {
		attr := &types.RuleAttribute{Name: line.Text[m[2]:m[3]], Range: lineRange(line)}
		if m[4] >= 0 {
			attr.Value = line.Text[m[4]:m[5]]
		}
		return attr
	}
	if m := annotationPattern.FindStringSubmatchIndex(line.Code); m != nil {
		attr := &types.RuleAttribute{Name: line.Text[m[2]:m[3]], Range: lineRange(line)}
		if m[4] >= 0 {
			attr.Value = line.Text[m[4]:m[5]]
		}
		return attr
	}
	return nil
}

// FunctionMatcher extracts function blocks
type FunctionMatcher struct{}

func (m *FunctionMatcher) Name() string  { return "function" }
func (m *FunctionMatcher) Priority() int { return 85 }

func (m *FunctionMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	if !keywordAt(line, "function") {
		return nil
	}
	match := functionPattern.FindStringSubmatchIndex(line.Code)
	if match == nil {
		ctx.Report(types.NewStructuralError(types.CodeMissingName, types.SeverityError, lineRange(line),
			"function needs a return type and a name"))
		return &MatchResult{NextLine: line.Number + 1}
	}

	fn := &types.Function{
		ReturnType: strings.Join(strings.Fields(line.Text[match[2]:match[3]]), ""),
		Name:       line.Text[match[4]:match[5]],
	}
	start := types.Position{Line: line.Number, Character: line.Indent()}

	acc := newAccumulator(ctx.Lines, types.Position{Line: line.Number, Character: match[1] - 1})
	paramsEnd, ok := acc.closeOf(types.BracketParen)
	if ok {
		fn.Parameters = parseParameters(codeBetween(ctx.Lines, advance(acc.origin, 1), paramsEnd),
			textBetween(ctx.Lines, advance(acc.origin, 1), paramsEnd))
	}

	body, closed, end := acc.braceBody(paramsEnd)
	fn.Body = body
	fn.Range = types.Range{Start: start, End: end}
	if !closed {
		ctx.Report(types.NewStructuralError(types.CodeMissingEnd, types.SeverityError,
			types.Range{Start: start, End: advance(start, len("function"))},
			"function %s: missing closing '}'", fn.Name))
	}
	return &MatchResult{Node: fn, NextLine: end.Line + 1}
}

// parseParameters splits "Type a, Type b" into parameters. code and raw
// have the same layout; code is used to find separators.
func parseParameters(code, raw string) []types.Parameter {
	var params []types.Parameter
	depth, start := 0, 0
	emit := func(piece string) {
		fields := strings.Fields(piece)
		switch len(fields) {
		case 0:
		case 1:
			params = append(params, types.Parameter{Name: fields[0]})
		default:
			params = append(params, types.Parameter{
				Type: strings.Join(fields[:len(fields)-1], " "),
				Name: fields[len(fields)-1],
			})
		}
	}
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		case ',':
			if depth == 0 {
				emit(raw[start:i])
				start = i + 1
			}
		}
	}
	emit(raw[start:])
	return params
}

// DeclareMatcher extracts type declarations
type DeclareMatcher struct{}

func (m *DeclareMatcher) Name() string  { return "declare" }
func (m *DeclareMatcher) Priority() int { return 80 }

func (m *DeclareMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	if !keywordAt(line, "declare") {
		return nil
	}
	start := types.Position{Line: line.Number, Character: line.Indent()}
	decl := &types.Declaration{}
	if match := declarePattern.FindStringSubmatch(line.Code); match != nil {
		decl.Name = match[2]
		decl.SuperType = match[3]
		if match[1] != "" {
			decl.Annotations = append(decl.Annotations, "@"+match[1])
		}
	} else {
		ctx.Report(types.NewStructuralError(types.CodeMissingName, types.SeverityError, lineRange(line),
			"declare without a type name"))
	}

	n := line.Number + 1
	for ; n < len(ctx.Lines); n++ {
		l := ctx.Lines[n]
		if l.IsBlank() {
			continue
		}
		if keywordAt(l, "end") {
			decl.Range = types.Range{Start: start, End: lineRange(l).End}
			return &MatchResult{Node: decl, NextLine: n + 1}
		}
		if isTopLevelBoundary(l) {
			break
		}
		if f := fieldPattern.FindStringSubmatchIndex(l.Code); f != nil {
			field := &types.Field{
				Name:  l.Text[f[2]:f[3]],
				Type:  strings.Join(strings.Fields(l.Text[f[4]:f[5]]), ""),
				Range: lineRange(l),
			}
			field.Annotations = splitAnnotations(l.Text[f[6]:f[7]])
			decl.Fields = append(decl.Fields, field)
			continue
		}
		if a := annotationPattern.FindStringSubmatch(l.Code); a != nil && len(decl.Fields) == 0 {
			decl.Annotations = append(decl.Annotations, strings.TrimSpace(l.Text[l.Indent():]))
			continue
		}
		ctx.Report(types.NewStructuralError(types.CodeUnexpectedText, types.SeverityWarning, lineRange(l),
			"unexpected text in declare %s", decl.Name))
	}

	end := lastCodeEnd(ctx.Lines, start, lineEnd(ctx.Lines, n-1))
	decl.Range = types.Range{Start: start, End: end}
	ctx.Report(types.NewStructuralError(types.CodeMissingEnd, types.SeverityError,
		types.Range{Start: start, End: advance(start, len("declare"))},
		"declare %s: missing 'end'", decl.Name))
	return &MatchResult{Node: decl, NextLine: n}
}

// splitAnnotations turns `@key @position(1)` into its annotations
func splitAnnotations(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, "@") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, "@"+part)
		}
	}
	return out
}

// FragmentMatcher keeps conditions typed outside any rule, so unfinished
// edits still get pattern diagnostics
type FragmentMatcher struct{}

func (m *FragmentMatcher) Name() string  { return "fragment" }
func (m *FragmentMatcher) Priority() int { return 10 }

func (m *FragmentMatcher) Match(line Line, ctx *ParseContext) *MatchResult {
	pos := types.Position{Line: line.Number, Character: line.Indent()}
	if _, _, ok := patternStart(ctx.Lines, pos); !ok {
		return nil
	}
	cond, next := ctx.parseCondition(pos)
	return &MatchResult{Node: cond, NextLine: nextLineAfter(next)}
}

// nextLineAfter is the first line starting at or after pos
func nextLineAfter(pos types.Position) int {
	if pos.Character == 0 {
		return pos.Line
	}
	return pos.Line + 1
}
