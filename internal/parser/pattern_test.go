package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarredhawkins/drl-lsp/internal/types"
)

func recognize(t *testing.T, r *PatternRecognizer, text string) *Recognition {
	t.Helper()
	lines, _ := ScanLines(text)
	rec, ok := r.Recognize(lines, types.Position{})
	require.True(t, ok, "no pattern at start of %q", text)
	return rec
}

func TestRecognize_MultiLine(t *testing.T) {
	rec := recognize(t, NewPatternRecognizer(0, nil), "exists(\n  Person(age > 18)\n)")
	p := rec.Pattern

	assert.Equal(t, types.ConditionExists, p.Type)
	assert.Equal(t, "exists", p.Keyword)
	assert.True(t, p.IsComplete)
	assert.False(t, rec.Malformed)
	assert.Empty(t, rec.Incomplete)
	assert.Equal(t, 0, p.Depth)
	assert.Equal(t, types.NewRange(0, 0, 2, 1), p.Range)
	assert.Equal(t, types.Position{Line: 2, Character: 1}, rec.End)
	assert.Equal(t, "Person(age > 18)", p.Content)
	assert.Equal(t, []types.Range{
		types.NewRange(1, 8, 1, 18),
		types.NewRange(0, 6, 2, 1),
	}, p.Parentheses)

	require.Len(t, p.InnerConditions, 1)
	inner := p.InnerConditions[0]
	assert.Equal(t, types.ConditionPattern, inner.Type)
	assert.Equal(t, "Person", inner.FactType)
	require.Len(t, inner.Constraints, 1)
	assert.Equal(t, "age", inner.Constraints[0].Field)
	assert.Equal(t, ">", inner.Constraints[0].Operator)
	assert.Equal(t, "18", inner.Constraints[0].Value)
	assert.Equal(t, types.NewRange(1, 9, 1, 17), inner.Constraints[0].Range)
}

func TestRecognize_Nested(t *testing.T) {
	rec := recognize(t, NewPatternRecognizer(0, nil), "not(exists(Person()))")
	p := rec.Pattern

	assert.Equal(t, types.ConditionNot, p.Type)
	assert.True(t, p.IsComplete)
	require.Len(t, p.Nested, 1)
	child := p.Nested[0]
	assert.Equal(t, "exists", child.Keyword)
	assert.Equal(t, 1, child.Depth)
	assert.True(t, child.IsComplete)
	assert.Equal(t, types.NewRange(0, 4, 0, 20), child.Range)
	assert.Len(t, child.Parentheses, 2)
	assert.Len(t, p.Parentheses, 1)

	// not( exists(...) ) reads as the exists condition
	require.Len(t, p.InnerConditions, 1)
	inner := p.InnerConditions[0]
	assert.Equal(t, types.ConditionExists, inner.Type)
	assert.Same(t, child, inner.Pattern)
	assert.Equal(t, "Person", inner.FactType)
}

func TestRecognize_InnerConditions(t *testing.T) {
	rec := recognize(t, NewPatternRecognizer(0, nil), "exists(A() and $b : B(x == 1, y != \"z\"))")
	conds := rec.Pattern.InnerConditions
	require.Len(t, conds, 2)

	assert.Equal(t, "A", conds[0].FactType)
	assert.Equal(t, "$b", conds[1].Variable)
	assert.Equal(t, "B", conds[1].FactType)
	require.Len(t, conds[1].Constraints, 2)
	assert.Equal(t, "x", conds[1].Constraints[0].Field)
	assert.Equal(t, "==", conds[1].Constraints[0].Operator)
	assert.Equal(t, `"z"`, conds[1].Constraints[1].Value)
}

func TestRecognize_DepthBound(t *testing.T) {
	rec := recognize(t, NewPatternRecognizer(1, nil), "not(not(not(not(A()))))")

	var depths []int
	rec.Pattern.Walk(func(p *types.MultiLinePattern) bool {
		depths = append(depths, p.Depth)
		return true
	})
	// nothing is searched below a pattern past the bound
	assert.Equal(t, []int{0, 1, 2}, depths)
	assert.True(t, rec.Pattern.IsComplete)

	require.Len(t, rec.Complex, 1)
	assert.Equal(t, 2, rec.Complex[0].Depth)
	assert.True(t, rec.Complex[0].TooComplex)
	assert.False(t, rec.Pattern.TooComplex)
}

func TestRecognize_CustomComplexity(t *testing.T) {
	long := func(p *types.MultiLinePattern, _ int) bool {
		return strings.Count(p.Content, ",") > 2
	}
	r := NewPatternRecognizer(0, long)

	rec := recognize(t, r, "eval(f(a, b, c, d))")
	assert.True(t, rec.Pattern.TooComplex)
	assert.Len(t, rec.Complex, 1)

	rec = recognize(t, r, "eval(f(a, b))")
	assert.False(t, rec.Pattern.TooComplex)
	assert.Empty(t, rec.Complex)
}

func TestRecognize_Incomplete(t *testing.T) {
	rec := recognize(t, NewPatternRecognizer(0, nil), "exists(\n  Person(age > 18")
	p := rec.Pattern

	assert.False(t, p.IsComplete)
	require.Len(t, rec.Incomplete, 1)
	assert.Same(t, p, rec.Incomplete[0])
	assert.Equal(t, types.Position{Line: 1, Character: 17}, rec.End)
	assert.Equal(t, types.NewRange(0, 0, 1, 17), p.Range)
	assert.Equal(t, "Person(age > 18", p.Content)
	// the unbalanced tail is not a condition
	assert.Empty(t, p.InnerConditions)
}

func TestRecognize_IncompleteNested(t *testing.T) {
	rec := recognize(t, NewPatternRecognizer(0, nil), "not(\n  exists(\n    A()")

	require.Len(t, rec.Incomplete, 2)
	assert.Equal(t, "not", rec.Incomplete[0].Keyword)
	assert.Equal(t, "exists", rec.Incomplete[1].Keyword)
	require.Len(t, rec.Pattern.Nested, 1)
	assert.Same(t, rec.Incomplete[1], rec.Pattern.Nested[0])
	assert.Equal(t, types.Position{Line: 2, Character: 7}, rec.Incomplete[1].Range.End)
}

func TestRecognize_Boundary(t *testing.T) {
	text := "exists(\n  Person()\nthen\n  x();"

	rec := recognize(t, NewPatternRecognizer(0, nil), text)
	assert.False(t, rec.Pattern.IsComplete)
	assert.Equal(t, types.Position{Line: 1, Character: 10}, rec.End)

	r := NewPatternRecognizer(0, nil)
	r.StopAtBoundary = false
	rec = recognize(t, r, text)
	assert.False(t, rec.Pattern.IsComplete)
	assert.Equal(t, 3, rec.End.Line)
}

func TestRecognize_Malformed(t *testing.T) {
	rec := recognize(t, NewPatternRecognizer(0, nil), "exists(A(]\n)")
	assert.True(t, rec.Malformed)
}

func TestRecognize_NotAPattern(t *testing.T) {
	tests := []string{
		"Person(x)",
		"exists Person()",
		"existsX(",
		"",
	}
	r := NewPatternRecognizer(0, nil)
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			lines, _ := ScanLines(text)
			_, ok := r.Recognize(lines, types.Position{})
			assert.False(t, ok)
		})
	}
}

func TestFindPatterns(t *testing.T) {
	lines, _ := ScanLines("exists(A())\nnot(B()) and eval(x > 1)\nnot(exists(C()))")
	r := NewPatternRecognizer(0, nil)

	all := FindPatterns(lines, types.LineRange{Start: 0, End: 2}, r)
	require.Len(t, all, 4)
	var kws []string
	for _, p := range all {
		kws = append(kws, p.Keyword)
	}
	assert.Equal(t, []string{"exists", "not", "eval", "not"}, kws)
	assert.Len(t, all[3].Nested, 1)

	second := FindPatterns(lines, types.LineRange{Start: 1, End: 1}, r)
	assert.Len(t, second, 2)
}

func TestIsPatternKeyword(t *testing.T) {
	for _, kw := range []string{"exists", "not", "eval", "forall", "collect", "accumulate"} {
		assert.True(t, IsPatternKeyword(kw), kw)
	}
	assert.False(t, IsPatternKeyword("from"))
	assert.False(t, IsPatternKeyword("Exists"))
}
